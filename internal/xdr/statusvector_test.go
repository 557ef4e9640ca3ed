package xdr

import (
	"bytes"
	"testing"

	"github.com/fbremote/fbremote/internal/protoerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusVectorRoundTrip(t *testing.T) {
	sv := protoerr.NewStatusVector(335544569, "SYSDBA")
	sv.AddWarning(335740540)

	var buf bytes.Buffer
	require.NoError(t, PutStatusVector(NewEncoder(&buf), sv))

	got, err := GetStatusVector(NewDecoder(&buf))
	require.NoError(t, err)

	assert.Equal(t, sv.Entries, got.Entries)
	assert.True(t, got.HasError())
	assert.True(t, got.HasWarning())
}

func TestStatusVectorRoundTrip_EmptyVector(t *testing.T) {
	sv := &protoerr.StatusVector{}

	var buf bytes.Buffer
	require.NoError(t, PutStatusVector(NewEncoder(&buf), sv))

	got, err := GetStatusVector(NewDecoder(&buf))
	require.NoError(t, err)
	assert.False(t, got.HasError())
}
