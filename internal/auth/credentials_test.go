package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore_DefaultSysdbaAuthenticatesThroughEveryPlugin(t *testing.T) {
	store, err := NewCredentialStore()
	require.NoError(t, err)

	ctx := context.Background()

	for _, tc := range []struct {
		name          string
		sha256Variant bool
		lookup        func(string) (SRPVerifier, error)
	}{
		{"Srp256", true, store.SRP256Lookup},
		{"Srp", false, store.SRPLookup},
	} {
		server := &srpServerPlugin{pluginName: tc.name, sha256Variant: tc.sha256Variant, lookup: tc.lookup}
		client := NewSRPClientPlugin(tc.name, tc.sha256Variant, "SYSDBA", "masterkey")

		c1, err := client.Step(ctx, nil)
		require.NoError(t, err)
		s1, err := server.Step(ctx, c1.DataOut)
		require.NoError(t, err)
		c2, err := client.Step(ctx, s1.DataOut)
		require.NoError(t, err)
		s2, err := server.Step(ctx, c2.DataOut)
		require.NoError(t, err)
		assert.Equal(t, "SYSDBA", s2.Identity.Username)
	}

	hash, err := store.LegacyLookup("SYSDBA")
	require.NoError(t, err)
	assert.Equal(t, HashLegacyPassword("SYSDBA", "masterkey"), hash)
}

func TestCredentialStore_UnknownUserFails(t *testing.T) {
	store, err := NewCredentialStore()
	require.NoError(t, err)

	_, err = store.SRP256Lookup("nobody")
	assert.Error(t, err)
	_, err = store.LegacyLookup("nobody")
	assert.Error(t, err)
}

func TestCredentialStore_AddUserIsDiscoverableAcrossPlugins(t *testing.T) {
	store, err := NewCredentialStore()
	require.NoError(t, err)
	require.NoError(t, store.AddUser("alice", "hunter2"))

	_, err = store.SRP256Lookup("alice")
	assert.NoError(t, err)
	_, err = store.LegacyLookup("alice")
	assert.NoError(t, err)
}

func TestCredentialStore_DefaultServerPluginsNamesAllThree(t *testing.T) {
	store, err := NewCredentialStore()
	require.NoError(t, err)

	plugins := store.DefaultServerPlugins()
	for _, name := range []string{"Srp256", "Srp", "Legacy_Auth"} {
		factory, ok := plugins[name]
		require.Truef(t, ok, "missing plugin %s", name)
		p, err := factory()
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
}
