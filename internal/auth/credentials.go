package auth

import "fmt"

// CredentialStore resolves a username to the stored credential each
// server-side plugin needs: an SRP verifier or a legacy password hash. A
// freshly constructed store carries only the well-known SYSDBA/masterkey
// account the engine ships as its default administrative login, the same
// way a fresh install's security database does until an operator changes
// it; callers that need more users populate it with AddUser.
type CredentialStore struct {
	srp    map[string]SRPVerifier
	srp256 map[string]SRPVerifier
	legacy map[string]LegacyHash
}

// NewCredentialStore returns a store seeded with the default SYSDBA
// account, with its Srp256 verifier, Srp verifier and Legacy_Auth hash
// all computed up front.
func NewCredentialStore() (*CredentialStore, error) {
	s := &CredentialStore{
		srp:    map[string]SRPVerifier{},
		srp256: map[string]SRPVerifier{},
		legacy: map[string]LegacyHash{},
	}
	if err := s.AddUser("SYSDBA", "masterkey"); err != nil {
		return nil, err
	}
	return s, nil
}

// AddUser computes and stores every plugin's credential for username and
// password in one call, so the server's Srp256/Srp/Legacy_Auth factories
// all resolve the same account consistently.
func (s *CredentialStore) AddUser(username, password string) error {
	v256, err := ComputeSRPVerifier(username, password, true)
	if err != nil {
		return fmt.Errorf("credentials: derive srp256 verifier for %s: %w", username, err)
	}
	v1, err := ComputeSRPVerifier(username, password, false)
	if err != nil {
		return fmt.Errorf("credentials: derive srp verifier for %s: %w", username, err)
	}
	s.srp256[username] = v256
	s.srp[username] = v1
	s.legacy[username] = HashLegacyPassword(username, password)
	return nil
}

// SRP256Lookup returns the lookup function for an Srp256 server plugin.
func (s *CredentialStore) SRP256Lookup(username string) (SRPVerifier, error) {
	return s.lookupSRP(s.srp256, username)
}

// SRPLookup returns the lookup function for an Srp (legacy group) server
// plugin.
func (s *CredentialStore) SRPLookup(username string) (SRPVerifier, error) {
	return s.lookupSRP(s.srp, username)
}

func (s *CredentialStore) lookupSRP(table map[string]SRPVerifier, username string) (SRPVerifier, error) {
	v, ok := table[username]
	if !ok {
		return SRPVerifier{}, fmt.Errorf("credentials: unknown user")
	}
	return v, nil
}

// LegacyLookup returns the lookup function for a Legacy_Auth server
// plugin.
func (s *CredentialStore) LegacyLookup(username string) (LegacyHash, error) {
	h, ok := s.legacy[username]
	if !ok {
		return nil, fmt.Errorf("credentials: unknown user")
	}
	return h, nil
}

// DefaultServerPlugins builds the server-side plugin factories this store
// can back: Srp256 and Srp against their verifier tables, Legacy_Auth
// against the password-hash table. Kerberos is assembled separately since
// it has no username/password credential of its own to seed here.
func (s *CredentialStore) DefaultServerPlugins() map[string]ServerFactory {
	return map[string]ServerFactory{
		"Srp256":      NewSRPServerPlugin("Srp256", true, s.SRP256Lookup),
		"Srp":         NewSRPServerPlugin("Srp", false, s.SRPLookup),
		"Legacy_Auth": NewLegacyServerPlugin(s.LegacyLookup),
	}
}
