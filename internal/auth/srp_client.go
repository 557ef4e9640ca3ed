package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
)

// srpClientPlugin is the client side of the Srp/Srp256 exchange, used by
// the attachment manager when connecting to a remote server rather than
// acting as one.
type srpClientPlugin struct {
	pluginName    string
	sha256Variant bool
	username      string
	password      string

	a    *big.Int
	aPub *big.Int
	bPub *big.Int
	salt []byte
	sessionKey []byte
}

// NewSRPClientPlugin returns a client-side Plugin for the given plugin
// name, username, and password.
func NewSRPClientPlugin(pluginName string, sha256Variant bool, username, password string) Plugin {
	return &srpClientPlugin{pluginName: pluginName, sha256Variant: sha256Variant, username: username, password: password}
}

func (p *srpClientPlugin) Name() string { return p.pluginName }

func (p *srpClientPlugin) Step(_ context.Context, dataIn []byte) (Step, error) {
	if p.aPub == nil {
		return p.round1()
	}
	return p.round2(dataIn)
}

func (p *srpClientPlugin) round1() (Step, error) {
	a := make([]byte, srpKeyBytes)
	if _, err := rand.Read(a); err != nil {
		return Step{}, err
	}
	p.a = new(big.Int).SetBytes(a)
	p.aPub = new(big.Int).Exp(srpG, p.a, srpN)

	hello := append([]byte(p.username), 0)
	hello = append(hello, p.aPub.Bytes()...)
	return Step{Done: false, DataOut: hello}, nil
}

func (p *srpClientPlugin) round2(dataIn []byte) (Step, error) {
	salt, bPub, err := decodeSRPServerChallenge(dataIn)
	if err != nil {
		return Step{}, err
	}
	p.salt = salt
	p.bPub = bPub

	if bPub.Sign() == 0 || new(big.Int).Mod(bPub, srpN).Sign() == 0 {
		return Step{}, errors.New("srp: invalid server public ephemeral")
	}

	x := srpPrivateKey(salt, p.username, p.password, p.sha256Variant)
	u := srpScramble(p.sha256Variant, p.aPub, bPub)

	h := srpHasher(p.sha256Variant)()
	h.Write(srpN.Bytes())
	h.Write(padToN(srpG.Bytes()))
	k := new(big.Int).SetBytes(h.Sum(nil))

	// S = (B - k*g^x) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(srpG, x, srpN)
	term := new(big.Int).Mod(new(big.Int).Sub(bPub, new(big.Int).Mul(k, gx)), srpN)
	exp := new(big.Int).Add(p.a, new(big.Int).Mul(u, x))
	s := new(big.Int).Exp(term, exp, srpN)

	sh := srpHasher(p.sha256Variant)()
	sh.Write(s.Bytes())
	p.sessionKey = sh.Sum(nil)

	proofHash := srpHasher(p.sha256Variant)()
	proofHash.Write([]byte(p.username))
	proofHash.Write(bPub.Bytes())
	proofHash.Write(p.sessionKey)
	clientProof := proofHash.Sum(nil)

	return Step{Done: true, DataOut: clientProof, Identity: &Identity{Username: p.username, SessionKey: p.sessionKey}}, nil
}

func decodeSRPServerChallenge(data []byte) (salt []byte, bPub *big.Int, err error) {
	if len(data) < 4 {
		return nil, nil, errors.New("srp: truncated server challenge")
	}
	saltLen := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	if 4+saltLen+4 > len(data) {
		return nil, nil, errors.New("srp: truncated salt")
	}
	salt = data[4 : 4+saltLen]
	rest := data[4+saltLen:]
	if len(rest) < 4 {
		return nil, nil, errors.New("srp: truncated B length")
	}
	bLen := int(rest[0])<<24 | int(rest[1])<<16 | int(rest[2])<<8 | int(rest[3])
	if 4+bLen > len(rest) {
		return nil, nil, errors.New("srp: truncated B")
	}
	bPub = new(big.Int).SetBytes(rest[4 : 4+bLen])
	return salt, bPub, nil
}
