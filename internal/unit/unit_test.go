package unit_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskgraph/internal/unit"
)

func namedBar(args []any, kwargs map[string]any) (any, error) { return nil, nil }

func TestConstructDefaultCallableAndName(t *testing.T) {
	u := unit.New(nil)
	assert.True(t, strings.HasPrefix(u.String(), "Unit[lambda:"))
	assert.True(t, strings.HasSuffix(u.String(), "]"))
}

func TestConstructExplicitName(t *testing.T) {
	u := unit.New(nil, unit.WithName("foo"))
	assert.Equal(t, "Unit[foo]", u.String())
}

func TestConstructDerivedNameFromNamedFunction(t *testing.T) {
	u := unit.New(namedBar)
	assert.Equal(t, "Unit[namedBar]", u.String())
}

func TestStartWaitEmptyUnitFiresOnSuccessWithNil(t *testing.T) {
	u := unit.New(nil)

	var mu sync.Mutex
	var gotID string
	var gotPayload any
	var called bool
	require.NoError(t, u.AddHook(unit.HookOnSuccess, func(unitID string, payload any) {
		mu.Lock()
		defer mu.Unlock()
		called = true
		gotID = unitID
		gotPayload = payload
	}))

	u.Start(nil, nil)
	outcome, ok := u.Wait(0)
	require.True(t, ok)
	require.NoError(t, outcome.Err)
	assert.Nil(t, outcome.Value)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, called)
	assert.Equal(t, u.ID(), gotID)
	assert.Nil(t, gotPayload)
}

func TestSideEffectCallable(t *testing.T) {
	var flag bool
	u := unit.New(func(args []any, kwargs map[string]any) (any, error) {
		flag = true
		return nil, nil
	})
	u.Start(nil, nil)
	_, ok := u.Wait(0)
	require.True(t, ok)
	assert.True(t, flag)
}

func TestCallableFailureFiresOnException(t *testing.T) {
	boom := errors.New("boom")
	u := unit.New(func(args []any, kwargs map[string]any) (any, error) {
		return nil, boom
	})

	var got error
	require.NoError(t, u.AddHook(unit.HookOnException, func(unitID string, payload any) {
		got = payload.(error)
	}))

	u.Start(nil, nil)
	outcome, ok := u.Wait(0)
	require.True(t, ok)
	assert.ErrorIs(t, outcome.Err, boom)
	assert.ErrorIs(t, got, boom)
}

func TestRestartProducesDistinctWorkers(t *testing.T) {
	u := unit.New(nil)
	u.Start(nil, nil)
	_, ok := u.Wait(0)
	require.True(t, ok)
	first := u.Worker().ID()

	u.Start(nil, nil)
	_, ok = u.Wait(0)
	require.True(t, ok)
	second := u.Worker().ID()

	assert.NotEqual(t, first, second)
}

func TestHookSetsDeduplicateIdenticalRegistration(t *testing.T) {
	u := unit.New(nil)
	var count int
	var mu sync.Mutex
	fn := func(unitID string, payload any) {
		mu.Lock()
		defer mu.Unlock()
		count++
	}
	require.NoError(t, u.AddHook(unit.HookOnSuccess, fn))
	require.NoError(t, u.AddHook(unit.HookOnSuccess, fn))

	u.Start(nil, nil)
	_, ok := u.Wait(0)
	require.True(t, ok)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestRemoveAbsentHookIsNoOp(t *testing.T) {
	u := unit.New(nil)
	fn := func(unitID string, payload any) {}
	require.NoError(t, u.RemoveHook(unit.HookOnSuccess, fn))
}

func TestUnknownHookErrors(t *testing.T) {
	u := unit.New(nil)
	err := u.AddHook("bogus", func(string, any) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `add unknown hook "bogus"`)

	err = u.RemoveHook("bogus", func(string, any) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `remove unknown hook "bogus"`)
}

func TestSetArgsReplacesSlotsWholesale(t *testing.T) {
	u := unit.New(nil, unit.WithArgs("a", "b"), unit.WithKwargs(map[string]any{"x": 1}))
	assert.Equal(t, []any{"a", "b"}, u.Args())

	u.SetArgs([]any{"c"}, map[string]any{"y": 2})
	assert.Equal(t, []any{"c"}, u.Args())
	assert.Equal(t, map[string]any{"y": 2}, u.Kwargs())
}
