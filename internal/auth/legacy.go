package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// LegacyHash is the stored credential for Legacy_Auth: a salted SHA-256
// digest of the password. The protocol's original Legacy_Auth plugin used
// a DES-based crypt(3) digest; this engine keeps the same single
// round-trip "send password hash, compare" shape but modernizes the
// digest, since crypt(3)-compatible hashing has no maintained Go library
// and reimplementing DES-crypt by hand would be the less idiomatic choice.
type LegacyHash []byte

// HashLegacyPassword derives the stored hash for a plaintext password.
func HashLegacyPassword(username, password string) LegacyHash {
	h := sha256.New()
	h.Write([]byte(username))
	h.Write([]byte{0})
	h.Write([]byte(password))
	return h.Sum(nil)
}

type legacyServerPlugin struct {
	lookup func(username string) (LegacyHash, error)
}

// NewLegacyServerPlugin returns a ServerFactory for Legacy_Auth. lookup
// resolves a username to its stored hash.
func NewLegacyServerPlugin(lookup func(username string) (LegacyHash, error)) ServerFactory {
	return func() (Plugin, error) {
		return &legacyServerPlugin{lookup: lookup}, nil
	}
}

func (p *legacyServerPlugin) Name() string { return "Legacy_Auth" }

// Step is a single round: dataIn is "username\x00password-hash" from the
// client's first (and only) message.
func (p *legacyServerPlugin) Step(_ context.Context, dataIn []byte) (Step, error) {
	idx := indexByte(dataIn, 0)
	if idx < 0 {
		return Step{}, errors.New("legacy_auth: malformed credential")
	}
	username := string(dataIn[:idx])
	submitted := dataIn[idx+1:]

	stored, err := p.lookup(username)
	if err != nil {
		return Step{}, err
	}
	if subtle.ConstantTimeCompare(stored, submitted) != 1 {
		return Step{}, errors.New("legacy_auth: password mismatch")
	}

	return Step{Done: true, Identity: &Identity{Username: username}}, nil
}

type legacyClientPlugin struct {
	username string
	password string
}

// NewLegacyClientPlugin returns the client side of Legacy_Auth.
func NewLegacyClientPlugin(username, password string) Plugin {
	return &legacyClientPlugin{username: username, password: password}
}

func (p *legacyClientPlugin) Name() string { return "Legacy_Auth" }

func (p *legacyClientPlugin) Step(_ context.Context, _ []byte) (Step, error) {
	hash := HashLegacyPassword(p.username, p.password)
	out := append([]byte(p.username), 0)
	out = append(out, hash...)
	return Step{Done: true, DataOut: out, Identity: &Identity{Username: p.username}}, nil
}
