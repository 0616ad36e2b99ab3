package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUUIDArrayValueAndScan(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	value, err := UUIDArray{a, b}.Value()
	require.NoError(t, err)

	var out UUIDArray
	require.NoError(t, out.Scan([]byte(value.(string))))
	require.Equal(t, UUIDArray{a, b}, out)

	require.NoError(t, out.Scan("{}"))
	require.Empty(t, out)

	require.Error(t, out.Scan("{not-a-uuid}"))
	require.Error(t, out.Scan(42))
}

func TestUUIDArrayDedupe(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := UUIDArray{a, uuid.Nil, b, a}.Dedupe()
	require.Equal(t, UUIDArray{a, b}, got)
}
