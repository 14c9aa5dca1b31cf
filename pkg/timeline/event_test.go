package timeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	tests := []struct {
		name         string
		opts         []EventOption
		wantOnset    float64
		wantDuration float64
		wantErr      error
	}{
		{
			name: "defaults to instantaneous at zero",
		},
		{
			name:         "onset and duration",
			opts:         []EventOption{WithOnset(3), WithDuration(5)},
			wantOnset:    3,
			wantDuration: 5,
		},
		{
			name:         "onset and end",
			opts:         []EventOption{WithOnset(3), WithEventEnd(8)},
			wantOnset:    3,
			wantDuration: 5,
		},
		{
			name:         "duration and end",
			opts:         []EventOption{WithDuration(5), WithEventEnd(8)},
			wantOnset:    3,
			wantDuration: 5,
		},
		{
			name:         "end only",
			opts:         []EventOption{WithEventEnd(4)},
			wantOnset:    4,
			wantDuration: 0,
		},
		{
			name:         "consistent triple",
			opts:         []EventOption{WithOnset(1), WithDuration(2), WithEventEnd(3)},
			wantOnset:    1,
			wantDuration: 2,
		},
		{
			name:    "inconsistent triple",
			opts:    []EventOption{WithOnset(1), WithDuration(2), WithEventEnd(4)},
			wantErr: ErrInvalidValue,
		},
		{
			name:    "negative onset",
			opts:    []EventOption{WithOnset(-1)},
			wantErr: ErrInvalidValue,
		},
		{
			name:    "end before onset",
			opts:    []EventOption{WithOnset(5), WithEventEnd(2)},
			wantErr: ErrInvalidValue,
		},
		{
			name:         "samples are rounded",
			opts:         []EventOption{WithOnset(2.6), WithDuration(1.4)},
			wantOnset:    3,
			wantDuration: 1,
		},
		{
			name:         "seconds are kept as given",
			opts:         []EventOption{InSeconds(-3), WithOnset(2.6), WithDuration(1.4)},
			wantOnset:    2.6,
			wantDuration: 1.4,
		},
		{
			name:    "unknown unit",
			opts:    []EventOption{InUnit("Minute", 0)},
			wantErr: ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NewEvent(append(tt.opts, WithEventRegistry(NewIDRegistry()))...)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOnset, ev.Onset())
			assert.Equal(t, tt.wantDuration, ev.Duration())
			assert.Equal(t, tt.wantOnset+tt.wantDuration, ev.End())
		})
	}
}

func TestEventIDsIncrease(t *testing.T) {
	a := MustNewEvent()
	b := MustNewEvent()
	c := NewCondition("x", "")
	d := NewCondition("y", "")

	assert.Greater(t, b.ID(), a.ID())
	assert.Greater(t, d.ID(), c.ID())
	assert.Equal(t, a.ID(), a.Clone().ID())
	assert.Equal(t, "0.1", a.Version())
}

func TestEventSetters(t *testing.T) {
	ev := MustNewEvent(WithOnset(2), WithDuration(3))

	require.NoError(t, ev.SetEnd(10))
	assert.Equal(t, 8.0, ev.Duration())

	err := ev.SetEnd(1)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, 10.0, ev.End())

	assert.ErrorIs(t, ev.SetOnset(-0.5), ErrInvalidValue)
	assert.ErrorIs(t, ev.SetDuration(-1), ErrInvalidValue)

	require.NoError(t, ev.SetOnset(4.4))
	assert.Equal(t, 4.0, ev.Onset())
	assert.Equal(t, 12.0, ev.End(), "moving the onset keeps the duration")
}

func TestEventHasOverlap(t *testing.T) {
	reg := NewIDRegistry()
	mk := func(opts ...EventOption) *Event {
		return MustNewEvent(append(opts, WithEventRegistry(reg))...)
	}

	tests := []struct {
		name string
		a, b *Event
		want bool
	}{
		{
			name: "touching boundaries overlap",
			a:    mk(WithOnset(3), WithDuration(5)),
			b:    mk(WithOnset(8), WithDuration(3)),
			want: true,
		},
		{
			name: "disjoint",
			a:    mk(WithOnset(0), WithDuration(2)),
			b:    mk(WithOnset(3), WithDuration(1)),
			want: false,
		},
		{
			name: "contained",
			a:    mk(WithOnset(0), WithDuration(10)),
			b:    mk(WithOnset(3), WithDuration(1)),
			want: true,
		},
		{
			name: "instantaneous at end",
			a:    mk(WithOnset(0), WithDuration(4)),
			b:    mk(WithOnset(4)),
			want: true,
		},
		{
			name: "seconds with different multipliers",
			a:    mk(InSeconds(0), WithOnset(1), WithDuration(1)),
			b:    mk(InSeconds(-3), WithOnset(1500), WithDuration(100)),
			want: true,
		},
		{
			name: "seconds with different multipliers disjoint",
			a:    mk(InSeconds(0), WithOnset(1), WithDuration(1)),
			b:    mk(InSeconds(-3), WithOnset(2500), WithDuration(100)),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab, err := tt.a.HasOverlap(tt.b)
			require.NoError(t, err)
			ba, err := tt.b.HasOverlap(tt.a)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ab)
			assert.Equal(t, ab, ba, "overlap must be symmetric")
		})
	}

	t.Run("different units", func(t *testing.T) {
		_, err := mk(WithOnset(1)).HasOverlap(mk(InSeconds(0), WithOnset(1)))
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestEventConversion(t *testing.T) {
	ev := MustNewEvent(InSeconds(0), WithOnset(1.5), WithDuration(0.25))

	require.NoError(t, ev.ToSamples(10))
	assert.True(t, ev.IsInSamples())
	assert.Equal(t, 15.0, ev.Onset())
	assert.Equal(t, 3.0, ev.Duration())
	assert.True(t, ev.Unit().Equal(SampleUnit()))

	require.NoError(t, ev.ToSamples(10), "already in samples")
	assert.Equal(t, 15.0, ev.Onset())

	require.NoError(t, ev.ToSeconds(10, -3))
	assert.True(t, ev.IsInSeconds())
	assert.InDelta(t, 1500, ev.Onset(), 1e-9)
	assert.InDelta(t, 300, ev.Duration(), 1e-9)
	assert.Equal(t, -3.0, ev.Unit().Multiplier())

	assert.ErrorIs(t, ev.ToSamples(0), ErrInvalidValue)
	assert.ErrorIs(t, ev.ToSeconds(-1, 0), ErrInvalidValue)
}

func TestEventSampleRoundTrip(t *testing.T) {
	for _, onset := range []float64{0, 1, 7, 42, 99} {
		ev := MustNewEvent(WithOnset(onset), WithDuration(3))
		require.NoError(t, ev.ToSeconds(4, 0))
		require.NoError(t, ev.ToSamples(4))
		assert.Equal(t, onset, ev.Onset())
		assert.Equal(t, 3.0, ev.Duration())
	}
}

func TestEventEqualValue(t *testing.T) {
	a := MustNewEvent(WithOnset(1), WithDuration(2), WithPayload(map[string]interface{}{"k": []int{1, 2}}))
	b := a.Clone()
	b.SetPayload(map[string]interface{}{"k": []int{1, 2}})

	assert.True(t, a.EqualValue(b))
	assert.NotSame(t, a, b)

	b.SetPayload("other")
	assert.False(t, a.EqualValue(b))

	c := MustNewEvent(WithOnset(1), WithDuration(2), WithPayload(a.Payload()))
	assert.False(t, a.EqualValue(c), "ids differ")
}
