package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/shopsynth/internal/condition"
)

func TestCompileSetReportsEveryBadRule(t *testing.T) {
	_, err := condition.CompileSet(map[string][]string{
		"orders": {"payload.total_amount >=", "payload.total_amount >= 0"},
		"users":  {`payload.email matches "["`},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders: rule")
	assert.Contains(t, err.Error(), "users: rule")
}

func TestViolation(t *testing.T) {
	set, err := condition.CompileSet(map[string][]string{
		"users": {
			`payload.email contains "@"`,
			`NOT payload.first_name contains "INVALID_"`,
		},
	})
	require.NoError(t, err)

	good := condition.Fields{"payload": map[string]any{"email": "a@b.c", "first_name": "Anne"}}
	r, err := set.Violation("users", good)
	require.NoError(t, err)
	assert.Nil(t, r)

	bad := condition.Fields{"payload": map[string]any{"email": "a@b.c", "first_name": "INVALID_Anne"}}
	r, err = set.Violation("users", bad)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, `NOT payload.first_name contains "INVALID_"`, r.String())

	r, err = set.Violation("orders", bad)
	assert.NoError(t, err)
	assert.Nil(t, r, "topics without rules pass")
}

func TestViolationReturnsEvaluationError(t *testing.T) {
	set, err := condition.CompileSet(map[string][]string{"orders": {"payload.status > 1"}})
	require.NoError(t, err)

	r, err := set.Violation("orders", condition.Fields{"payload": map[string]any{"status": "pending"}})
	assert.Error(t, err)
	assert.NotNil(t, r)
}

func TestFieldsResolve(t *testing.T) {
	f := condition.Fields{"payload": map[string]any{"order": map[string]any{"id": "o1"}}}
	v, ok := f.Resolve([]string{"payload", "order", "id"})
	assert.True(t, ok)
	assert.Equal(t, "o1", v)

	_, ok = f.Resolve([]string{"payload", "order", "id", "deeper"})
	assert.False(t, ok)
}
