package timeline

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementUnit(t *testing.T) {
	u, err := NewMeasurementUnit("Second", "s", -3, true)
	require.NoError(t, err)
	assert.Equal(t, "Second", u.Name())
	assert.Equal(t, "s", u.Acronym())
	assert.Equal(t, -3.0, u.Multiplier())
	assert.True(t, u.IsStandard())
	assert.InDelta(t, 0.001, u.Scale(), 1e-15)
	assert.Equal(t, Second, u.Kind())
	assert.True(t, u.Equal(SecondUnit(-3)))
	assert.False(t, u.Equal(SecondUnit(0)))

	custom, err := NewMeasurementUnit("Minute", "min", 0, false)
	require.NoError(t, err)
	assert.Equal(t, TimeUnit(""), custom.Kind())

	_, err = NewMeasurementUnit("", "x", 0, false)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = NewMeasurementUnit("x", "x", math.Inf(1), false)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestParseTimeUnit(t *testing.T) {
	u, err := ParseTimeUnit("")
	require.NoError(t, err)
	assert.Equal(t, Sample, u)

	u, err = ParseTimeUnit("Second")
	require.NoError(t, err)
	assert.Equal(t, Second, u)

	_, err = ParseTimeUnit("second")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestIDRegistry(t *testing.T) {
	reg := NewIDRegistry()
	assert.Equal(t, 1, reg.Next(KindEvent))
	assert.Equal(t, 2, reg.Next(KindEvent))
	assert.Equal(t, 1, reg.Next(KindCondition), "kinds have independent counters")
	assert.Equal(t, 2, reg.Peek(KindEvent))

	reg.Reset()
	assert.Equal(t, 0, reg.Peek(KindEvent))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Next(KindTimeline)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, reg.Peek(KindTimeline))

	evs := []*Event{
		MustNewEvent(WithEventRegistry(reg)),
		MustNewEvent(WithEventRegistry(reg)),
		MustNewEvent(WithEventID(77)),
	}
	assert.Equal(t, []int{1, 2, 77}, IDsOf(evs...))

	c := NewCondition("t", "", WithConditionRegistry(reg))
	assert.Equal(t, 1, c.ID())
	c.SetID(9)
	assert.Equal(t, 9, c.ID())
}

func TestErrorClassification(t *testing.T) {
	err := newError(KindOverlapConflict, "Timeline.ForbidOverlap", "conditions %d and %d", 1, 2)
	wrapped := fmt.Errorf("apply command: %w", err)

	assert.True(t, errors.Is(wrapped, ErrOverlapConflict))
	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindOverlapConflict, kind)
	assert.Equal(t, "overlap_conflict", kind.String())
	assert.Equal(t, "Timeline.ForbidOverlap: overlap conflict: conditions 1 and 2", err.Error())

	kind, ok = KindOf(fmt.Errorf("decode: %w", ErrTypeMismatch))
	require.True(t, ok)
	assert.Equal(t, KindTypeMismatch, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)

	assert.ErrorIs(t, NewTypeMismatch("decode", "want number"), ErrTypeMismatch)
	assert.True(t, KindTrimmed.Soft())
	assert.False(t, KindInvalidValue.Soft())
}

func TestSortEventsByOnset(t *testing.T) {
	reg := NewIDRegistry()
	a := MustNewEvent(WithOnset(5), WithDuration(1), WithEventRegistry(reg))
	b := MustNewEvent(WithOnset(1), WithDuration(4), WithEventRegistry(reg))
	c := MustNewEvent(WithOnset(1), WithDuration(2), WithEventRegistry(reg))
	d := MustNewEvent(WithOnset(1), WithDuration(2), WithEventRegistry(reg))

	input := []*Event{d, a, b, c}
	sorted := SortEventsByOnset(input)
	assert.Equal(t, []int{c.ID(), d.ID(), b.ID(), a.ID()}, IDsOf(sorted...))
	assert.Equal(t, []int{d.ID(), a.ID(), b.ID(), c.ID()}, IDsOf(input...), "input is not reordered")

	assert.Equal(t, []int{a.ID(), b.ID(), c.ID(), d.ID()}, IDsOf(SortEventsByID(input)...))

	words := SortStable([]string{"bb", "a", "cc", "d"}, func(x, y string) bool { return len(x) < len(y) })
	assert.Equal(t, []string{"a", "d", "bb", "cc"}, words)
}
