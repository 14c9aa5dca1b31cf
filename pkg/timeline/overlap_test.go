package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type overlapFixture struct {
	tl     *Timeline
	c1, c2 *Condition
	e1, e2 *Event
}

// newOverlapFixture builds a timeline with two conditions and two events
// [3,8] and [8,11] that touch at 8
func newOverlapFixture(t *testing.T) overlapFixture {
	t.Helper()
	tl, err := New(WithLength(20))
	require.NoError(t, err)
	f := overlapFixture{
		tl: tl,
		c1: NewCondition("c1", ""),
		c2: NewCondition("c2", ""),
		e1: MustNewEvent(WithOnset(3), WithDuration(5)),
		e2: MustNewEvent(WithOnset(8), WithDuration(3)),
	}
	_, err = tl.AddConditions(f.c1, f.c2)
	require.NoError(t, err)
	_, err = tl.AddEvents(f.e1, f.e2)
	require.NoError(t, err)
	return f
}

func TestAssociateRejectsTouchingEvents(t *testing.T) {
	f := newOverlapFixture(t)

	_, err := f.tl.AssociateEvents([]int{f.e1.ID()}, []int{f.c1.ID()})
	require.NoError(t, err)
	before := f.tl.Clone()

	_, err = f.tl.AssociateEvents([]int{f.e2.ID()}, []int{f.c2.ID()})
	assert.ErrorIs(t, err, ErrOverlapConflict)
	assert.True(t, before.EqualValue(f.tl))
	assert.Empty(t, f.tl.ConditionEventMap()[f.c2.ID()])
}

func TestAllowThenForbidOverlap(t *testing.T) {
	f := newOverlapFixture(t)
	pair := NewConditionPair(f.c2.ID(), f.c1.ID())

	ws, err := f.tl.AllowOverlap(pair)
	require.NoError(t, err)
	assert.Empty(t, ws)

	_, err = f.tl.AssociateEvents([]int{f.e1.ID()}, []int{f.c1.ID()})
	require.NoError(t, err)
	_, err = f.tl.AssociateEvents([]int{f.e2.ID()}, []int{f.c2.ID()})
	require.NoError(t, err)

	_, err = f.tl.ForbidOverlap(pair)
	require.ErrorIs(t, err, ErrOverlapConflict)
	assert.Equal(t, []ConditionPair{pair}, f.tl.OverlapPermissions(), "permissions restored")

	_, err = f.tl.SetOverlapPermissions()
	assert.ErrorIs(t, err, ErrOverlapConflict)
	assert.True(t, f.tl.IsOverlapAllowed(f.c1.ID(), f.c2.ID()))

	f.tl.DissociateEvents([]int{f.e2.ID()}, []int{f.c2.ID()})
	_, err = f.tl.ForbidOverlap(pair)
	require.NoError(t, err)
	assert.Empty(t, f.tl.OverlapPermissions())
}

func TestSelfPairIsChecked(t *testing.T) {
	f := newOverlapFixture(t)

	_, err := f.tl.AssociateEvents([]int{f.e1.ID(), f.e2.ID()}, []int{f.c1.ID()})
	assert.ErrorIs(t, err, ErrOverlapConflict)

	_, err = f.tl.AllowOverlap(NewConditionPair(f.c1.ID(), f.c1.ID()))
	require.NoError(t, err)
	_, err = f.tl.AssociateEvents([]int{f.e1.ID(), f.e2.ID()}, []int{f.c1.ID()})
	require.NoError(t, err)
	assert.Equal(t, []int{f.e1.ID(), f.e2.ID()}, f.tl.ConditionEventMap()[f.c1.ID()])
}

func TestSharedEventConflictsAcrossConditions(t *testing.T) {
	f := newOverlapFixture(t)
	before := f.tl.Clone()

	_, err := f.tl.AssociateEvents([]int{f.e1.ID()}, []int{f.c1.ID(), f.c2.ID()})
	assert.ErrorIs(t, err, ErrOverlapConflict)
	assert.True(t, before.EqualValue(f.tl))

	_, err = f.tl.AllowOverlap(NewConditionPair(f.c1.ID(), f.c2.ID()))
	require.NoError(t, err)
	ws, err := f.tl.AssociateEvents([]int{f.e1.ID()}, []int{f.c1.ID(), f.c2.ID()})
	require.NoError(t, err)
	assert.Empty(t, ws)
	assert.Empty(t, f.tl.Conflicts())

	_, err = f.tl.ForbidOverlap(NewConditionPair(f.c1.ID(), f.c2.ID()))
	assert.ErrorIs(t, err, ErrOverlapConflict)
	f.tl.DissociateEvents([]int{f.e1.ID()}, []int{f.c2.ID()})
	_, err = f.tl.ForbidOverlap(NewConditionPair(f.c1.ID(), f.c2.ID()))
	require.NoError(t, err)
	assert.Empty(t, f.tl.Conflicts())
}

func TestOverlapUnknownReferences(t *testing.T) {
	f := newOverlapFixture(t)

	ws, err := f.tl.AllowOverlap(NewConditionPair(f.c1.ID(), -1), NewConditionPair(f.c1.ID(), f.c2.ID()))
	require.NoError(t, err)
	assert.Equal(t, []int{-1}, ws.Refs(KindUnknownReference))
	assert.Len(t, f.tl.OverlapPermissions(), 1)

	ws, err = f.tl.AssociateEvents([]int{f.e1.ID(), -5}, []int{-6, f.c1.ID()})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{-5, -6}, ws.Refs(KindUnknownReference))
	assert.Equal(t, []int{f.e1.ID()}, f.tl.ConditionEventMap()[f.c1.ID()])

	ws = f.tl.DissociateEvents([]int{-5}, []int{f.c1.ID()})
	assert.Equal(t, []int{-5}, ws.Refs(KindUnknownReference))
}

func TestConditionEvents(t *testing.T) {
	f := newOverlapFixture(t)
	_, err := f.tl.AssociateEvents([]int{f.e1.ID()}, []int{f.c1.ID()})
	require.NoError(t, err)

	evs, ws := f.tl.ConditionEvents(f.c1.ID())
	assert.Empty(t, ws)
	require.Len(t, evs, 1)
	assert.Equal(t, f.e1.ID(), evs[0].ID())

	evs, ws = f.tl.ConditionEvents(f.c2.ID(), 12345)
	assert.Empty(t, evs)
	assert.Equal(t, []int{12345}, ws.Refs(KindUnknownReference))

	evs, _ = f.tl.ConditionEvents()
	assert.Len(t, evs, 1)
}
