package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgraph/internal/scheduler"
	"taskgraph/internal/unit"
)

// fakeView is a hand-built GraphView independent of internal/graph, so the
// control loop's readiness/stranding logic can be exercised in isolation.
type fakeView struct {
	units      []*unit.Unit
	sources    []string
	successors map[string][]string
	ordering   map[string][]string
	data       map[string][]string
}

func (v *fakeView) Units() []*unit.Unit       { return v.units }
func (v *fakeView) Sources() []string         { return v.sources }
func (v *fakeView) Successors(id string) []string {
	return v.successors[id]
}
func (v *fakeView) Predecessors(id string) (ordering []string, data []string) {
	return v.ordering[id], v.data[id]
}

func TestControlLoopRunsSingleUnitToCompletion(t *testing.T) {
	u := unit.New(func(args []any, kwargs map[string]any) (any, error) { return "done", nil })
	view := &fakeView{
		units:      []*unit.Unit{u},
		sources:    []string{u.ID()},
		successors: map[string][]string{},
		ordering:   map[string][]string{},
		data:       map[string][]string{},
	}

	loop := scheduler.New(view, scheduler.Options{})
	loop.Start()
	loop.Wait(context.Background())

	assert.Equal(t, "done", loop.Results()[u.ID()])
	assert.NoError(t, loop.Errors())
}

func TestControlLoopOrderingPredecessorGatesRegardlessOfOutcome(t *testing.T) {
	boom := errors.New("boom")
	a := unit.New(func(args []any, kwargs map[string]any) (any, error) { return nil, boom })
	var bRan bool
	b := unit.New(func(args []any, kwargs map[string]any) (any, error) { bRan = true; return nil, nil })

	view := &fakeView{
		units:      []*unit.Unit{a, b},
		sources:    []string{a.ID()},
		successors: map[string][]string{a.ID(): {b.ID()}},
		ordering:   map[string][]string{b.ID(): {a.ID()}},
		data:       map[string][]string{},
	}

	loop := scheduler.New(view, scheduler.Options{})
	loop.Start()
	loop.Wait(context.Background())

	assert.True(t, bRan, "ordering-only predecessor failing must not strand its successor")
	require.Error(t, loop.Errors())
	assert.True(t, errors.Is(loop.Errors(), boom))
}

func TestControlLoopDataPredecessorFailureStrandsSuccessor(t *testing.T) {
	boom := errors.New("boom")
	a := unit.New(func(args []any, kwargs map[string]any) (any, error) { return nil, boom })
	var bRan bool
	b := unit.New(func(args []any, kwargs map[string]any) (any, error) { bRan = true; return nil, nil })

	view := &fakeView{
		units:      []*unit.Unit{a, b},
		sources:    []string{a.ID()},
		successors: map[string][]string{a.ID(): {b.ID()}},
		ordering:   map[string][]string{},
		data:       map[string][]string{b.ID(): {a.ID()}},
	}

	loop := scheduler.New(view, scheduler.Options{})
	loop.Start()
	loop.Wait(context.Background())

	assert.False(t, bRan, "data predecessor failing must strand its successor")
	_, ok := loop.Results()[b.ID()]
	assert.False(t, ok)
}

func TestControlLoopDataFailureStrandsTransitivelyThroughChainOfThree(t *testing.T) {
	boom := errors.New("boom")
	a := unit.New(func(args []any, kwargs map[string]any) (any, error) { return nil, boom })
	var bRan, cRan bool
	b := unit.New(func(args []any, kwargs map[string]any) (any, error) { bRan = true; return nil, nil })
	c := unit.New(func(args []any, kwargs map[string]any) (any, error) { cRan = true; return nil, nil })

	view := &fakeView{
		units:      []*unit.Unit{a, b, c},
		sources:    []string{a.ID()},
		successors: map[string][]string{a.ID(): {b.ID()}, b.ID(): {c.ID()}},
		ordering:   map[string][]string{},
		data:       map[string][]string{b.ID(): {a.ID()}, c.ID(): {b.ID()}},
	}

	loop := scheduler.New(view, scheduler.Options{})
	loop.Start()

	done := make(chan struct{})
	go func() {
		loop.Wait(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait never returned: stranding did not propagate past the chain's first successor")
	}

	assert.False(t, bRan, "b must be stranded by a's failure")
	assert.False(t, cRan, "c must be stranded transitively through b")
}

func TestControlLoopCancelDuringFirstUnitStopsChainWithoutHanging(t *testing.T) {
	var loop *scheduler.ControlLoop
	a := unit.New(func(args []any, kwargs map[string]any) (any, error) {
		loop.Cancel()
		return "a", nil
	})
	var bRan, cRan bool
	b := unit.New(func(args []any, kwargs map[string]any) (any, error) { bRan = true; return nil, nil })
	c := unit.New(func(args []any, kwargs map[string]any) (any, error) { cRan = true; return nil, nil })

	view := &fakeView{
		units:      []*unit.Unit{a, b, c},
		sources:    []string{a.ID()},
		successors: map[string][]string{a.ID(): {b.ID()}, b.ID(): {c.ID()}},
		ordering:   map[string][]string{b.ID(): {a.ID()}, c.ID(): {b.ID()}},
		data:       map[string][]string{},
	}

	loop = scheduler.New(view, scheduler.Options{})
	loop.Start()

	done := make(chan struct{})
	go func() {
		loop.Wait(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait never returned: cancellation did not propagate past the chain's first successor")
	}

	assert.False(t, bRan)
	assert.False(t, cRan)
	assert.True(t, loop.Cancelled())
}

func TestControlLoopSerialModeRunsOneAtATime(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32
	work := func(args []any, kwargs map[string]any) (any, error) {
		concurrent++
		if concurrent > maxConcurrent {
			maxConcurrent = concurrent
		}
		concurrent--
		return nil, nil
	}
	a := unit.New(work)
	b := unit.New(work)
	view := &fakeView{
		units:      []*unit.Unit{a, b},
		sources:    []string{a.ID(), b.ID()},
		successors: map[string][]string{},
		ordering:   map[string][]string{},
		data:       map[string][]string{},
	}

	loop := scheduler.New(view, scheduler.Options{Mode: scheduler.ModeSerial})
	loop.Start()
	loop.Wait(context.Background())

	assert.LessOrEqual(t, maxConcurrent, int32(1))
}
