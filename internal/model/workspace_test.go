package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeListPersistsThroughJSONB(t *testing.T) {
	scopes := ScopeList{"chat:write", "users:read.email"}

	v, err := scopes.Value()
	require.NoError(t, err)

	var restored ScopeList
	require.NoError(t, restored.Scan(v))
	assert.Equal(t, scopes, restored)
}

func TestScopeListNilStoresEmptyArray(t *testing.T) {
	var scopes ScopeList

	v, err := scopes.Value()
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(v.([]byte)))

	var restored ScopeList
	require.NoError(t, restored.Scan(nil))
	assert.Nil(t, restored)
}
