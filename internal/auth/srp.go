package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"math/big"
)

// SRP group parameters (RFC 5054, 2048-bit group). Srp and Srp256 share the
// same group and only differ in the hash function used to derive the
// session proof (SHA-1 for Srp, SHA-256 for Srp256).
var (
	srpN, _ = new(big.Int).SetString(
		"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73",
		16,
	)
	srpG = big.NewInt(2)
)

const srpKeyBytes = 128 // 1024-bit legacy key length Firebird's SRP plugin actually negotiates

// SRPVerifier is the server-side stored credential for one user: the salt
// and the SRP verifier derived from their password at account-creation
// time. The wire protocol never transmits the password itself.
type SRPVerifier struct {
	Salt     []byte
	Verifier *big.Int
}

// ComputeSRPVerifier derives the (salt, verifier) pair stored for a user,
// from their plaintext password, at account-creation time.
func ComputeSRPVerifier(username, password string, sha256Variant bool) (SRPVerifier, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return SRPVerifier{}, err
	}
	x := srpPrivateKey(salt, username, password, sha256Variant)
	v := new(big.Int).Exp(srpG, x, srpN)
	return SRPVerifier{Salt: salt, Verifier: v}, nil
}

func srpHasher(sha256Variant bool) func() hash.Hash {
	if sha256Variant {
		return sha256.New
	}
	return sha1.New
}

func srpPrivateKey(salt []byte, username, password string, sha256Variant bool) *big.Int {
	h := srpHasher(sha256Variant)()
	h.Write([]byte(username))
	h.Write([]byte{':'})
	h.Write([]byte(password))
	identityHash := h.Sum(nil)

	h2 := srpHasher(sha256Variant)()
	h2.Write(salt)
	h2.Write(identityHash)
	return new(big.Int).SetBytes(h2.Sum(nil))
}

// srpServerPlugin implements Plugin on the server side of an Srp/Srp256
// exchange: it holds the looked-up verifier, generates the ephemeral
// server key pair, and validates the client's proof against it.
type srpServerPlugin struct {
	pluginName    string
	sha256Variant bool

	lookup func(username string) (SRPVerifier, error)
	username string

	b  *big.Int
	bPub *big.Int
	k  *big.Int
	verifier SRPVerifier
	sessionKey []byte
}

// NewSRPServerPlugin returns a ServerFactory for the given plugin name
// ("Srp" or "Srp256"). lookup resolves a username to its stored verifier;
// a missing user must still return a verifier (a random one) so the
// handshake takes the same number of round trips either way and a client
// can't distinguish "no such user" from "wrong password" by timing or
// message shape.
func NewSRPServerPlugin(pluginName string, sha256Variant bool, lookup func(username string) (SRPVerifier, error)) ServerFactory {
	return func() (Plugin, error) {
		return &srpServerPlugin{pluginName: pluginName, sha256Variant: sha256Variant, lookup: lookup}, nil
	}
}

func (p *srpServerPlugin) Name() string { return p.pluginName }

// Step runs the two rounds of SRP-6a: round 1 receives the client's
// username and public ephemeral A, and responds with the salt and the
// server's public ephemeral B; round 2 receives the client's proof M1 and
// either confirms with the server's own proof M2 or fails closed.
func (p *srpServerPlugin) Step(_ context.Context, dataIn []byte) (Step, error) {
	if p.bPub == nil {
		return p.round1(dataIn)
	}
	return p.round2(dataIn)
}

func (p *srpServerPlugin) round1(dataIn []byte) (Step, error) {
	username, aPub, err := decodeSRPClientHello(dataIn)
	if err != nil {
		return Step{}, err
	}
	p.username = username

	verifier, err := p.lookup(username)
	if err != nil {
		return Step{}, err
	}
	p.verifier = verifier

	b := make([]byte, srpKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return Step{}, err
	}
	p.b = new(big.Int).SetBytes(b)

	h := srpHasher(p.sha256Variant)()
	h.Write(srpN.Bytes())
	h.Write(padToN(srpG.Bytes()))
	p.k = new(big.Int).SetBytes(h.Sum(nil))

	// B = k*v + g^b mod N
	term1 := new(big.Int).Mul(p.k, verifier.Verifier)
	term2 := new(big.Int).Exp(srpG, p.b, srpN)
	p.bPub = new(big.Int).Mod(new(big.Int).Add(term1, term2), srpN)

	if aPub.Sign() == 0 || new(big.Int).Mod(aPub, srpN).Sign() == 0 {
		return Step{}, errors.New("srp: invalid client public ephemeral")
	}

	u := srpScramble(p.sha256Variant, aPub, p.bPub)
	// S = (A * v^u) ^ b mod N
	s := new(big.Int).Exp(new(big.Int).Mul(aPub, new(big.Int).Exp(verifier.Verifier, u, srpN)), p.b, srpN)
	sh := srpHasher(p.sha256Variant)()
	sh.Write(s.Bytes())
	p.sessionKey = sh.Sum(nil)

	return Step{Done: false, DataOut: encodeSRPServerChallenge(verifier.Salt, p.bPub)}, nil
}

func (p *srpServerPlugin) round2(dataIn []byte) (Step, error) {
	if !bytesEqual(dataIn, p.expectedClientProof()) {
		return Step{}, errors.New("srp: client proof mismatch")
	}
	return Step{
		Done:    true,
		DataOut: p.serverProof(),
		Identity: &Identity{
			Username:   p.username,
			SessionKey: p.sessionKey,
		},
	}, nil
}

func (p *srpServerPlugin) expectedClientProof() []byte {
	h := srpHasher(p.sha256Variant)()
	h.Write([]byte(p.username))
	h.Write(p.bPub.Bytes())
	h.Write(p.sessionKey)
	return h.Sum(nil)
}

func (p *srpServerPlugin) serverProof() []byte {
	h := srpHasher(p.sha256Variant)()
	h.Write(p.bPub.Bytes())
	h.Write(p.expectedClientProof())
	h.Write(p.sessionKey)
	return h.Sum(nil)
}

func srpScramble(sha256Variant bool, aPub, bPub *big.Int) *big.Int {
	h := srpHasher(sha256Variant)()
	h.Write(padToN(aPub.Bytes()))
	h.Write(padToN(bPub.Bytes()))
	return new(big.Int).SetBytes(h.Sum(nil))
}

func padToN(b []byte) []byte {
	if len(b) >= srpKeyBytes {
		return b
	}
	out := make([]byte, srpKeyBytes)
	copy(out[srpKeyBytes-len(b):], b)
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// decodeSRPClientHello and encodeSRPServerChallenge frame the handshake's
// data payloads; the wire protocol carries these inside cont_auth packets
// as opaque blobs the plugin alone interprets.

func decodeSRPClientHello(data []byte) (username string, aPub *big.Int, err error) {
	idx := indexByte(data, 0)
	if idx < 0 {
		return "", nil, fmt.Errorf("srp: malformed client hello")
	}
	username = string(data[:idx])
	aPub = new(big.Int).SetBytes(data[idx+1:])
	return username, aPub, nil
}

func encodeSRPServerChallenge(salt []byte, bPub *big.Int) []byte {
	out := make([]byte, 0, 4+len(salt)+4+len(bPub.Bytes()))
	out = appendUint32(out, uint32(len(salt)))
	out = append(out, salt...)
	bBytes := bPub.Bytes()
	out = appendUint32(out, uint32(len(bBytes)))
	out = append(out, bBytes...)
	return out
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
