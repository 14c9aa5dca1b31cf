package hcl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

// AssertDefinitionsEquivalent builds both definitions with fresh id registries
// and the same default start time and compares the resulting timelines
func AssertDefinitionsEquivalent(t *testing.T, expected, actual *Definition) {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	expTL, expIx, expWs, err := expected.BuildWith(timeline.NewIDRegistry(), WithDefaultStartTime(start))
	require.NoError(t, err)
	actTL, actIx, actWs, err := actual.BuildWith(timeline.NewIDRegistry(), WithDefaultStartTime(start))
	require.NoError(t, err)

	assert.Equal(t, expIx, actIx)
	assert.Equal(t, expWs.Strings(), actWs.Strings())
	AssertSnapshotsEqual(t, expTL.Snapshot(timeline.WithTimestamps()), actTL.Snapshot(timeline.WithTimestamps()))
}

// AssertSnapshotsEqual compares two snapshots field by field
func AssertSnapshotsEqual(t *testing.T, expected, actual timeline.Snapshot) {
	t.Helper()
	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.Unit, actual.Unit)

	// Compare times, allowing for potential timezone differences
	assert.Equal(t, expected.StartTime.UTC().Format(time.RFC3339), actual.StartTime.UTC().Format(time.RFC3339))

	assert.InDelta(t, expected.SamplingRate, actual.SamplingRate, 1e-9)
	assert.Equal(t, expected.Uniform, actual.Uniform)
	assert.Equal(t, expected.TimeMultiplier, actual.TimeMultiplier)
	assert.InDelta(t, expected.Init, actual.Init, 1e-9)
	assert.InDelta(t, expected.End, actual.End, 1e-9)
	assert.Equal(t, expected.Length, actual.Length)
	assert.InDeltaSlice(t, expected.Timestamps, actual.Timestamps, 1e-9)

	assert.Equal(t, len(expected.Events), len(actual.Events))
	for i := 0; i < len(expected.Events) && i < len(actual.Events); i++ {
		exp, act := expected.Events[i], actual.Events[i]
		assert.Equal(t, exp.ID, act.ID)
		assert.InDelta(t, exp.Onset, act.Onset, 1e-9)
		assert.InDelta(t, exp.Duration, act.Duration, 1e-9)
		assert.Equal(t, exp.Unit, act.Unit)
		assert.Equal(t, exp.Payload, act.Payload)
	}
	assert.Equal(t, expected.Conditions, actual.Conditions)
	assert.Equal(t, expected.OverlapPermissions, actual.OverlapPermissions)
}
