// Package auth implements the Auth Sub-protocol: the pluggable handshake
// that runs inside the connect/accept/cont_auth/accept_data exchange to
// establish the client's identity and, optionally, a wire-encryption key.
package auth

import (
	"context"
	"fmt"

	"github.com/fbremote/fbremote/internal/protoerr"
)

// Identity is the authenticated principal the session layer attaches to
// an Attachment once a plugin's handshake completes.
type Identity struct {
	Username string
	Realm    string
	// SessionKey is wire-encryption key material the plugin negotiated, or
	// nil if the plugin does not support crypt-key exchange.
	SessionKey []byte
}

// Step is one round of a (possibly multi-round) plugin handshake. Done
// indicates the plugin has reached a verdict; DataOut carries the bytes the
// session layer must send back to the peer before the next Step call (for
// a client-side plugin) or as part of the accept/cont_auth reply (for a
// server-side plugin).
type Step struct {
	Done     bool
	DataOut  []byte
	Identity *Identity
}

// Plugin is one entry in the client's or server's plugin list (Srp256,
// Srp, Legacy_Auth, Kerberos, ...). Step is called once per round of
// cont_auth with the data the peer just sent; an empty DataIn on the first
// call carries whatever the connect packet's client data already held.
type Plugin interface {
	Name() string
	Step(ctx context.Context, dataIn []byte) (Step, error)
}

// ServerFactory constructs a fresh server-side Plugin instance for one
// connection attempt. It takes no arguments; the plugin learns the
// username from the data of its first Step.
type ServerFactory func() (Plugin, error)

// Negotiate walks clientOrder (the plugin names the client offered, most
// preferred first) and returns the first one the server also supports.
// The server never reveals which specific plugin or username caused a
// rejection; failure at this layer always surfaces as a single
// authentication error so a guesser can't fingerprint valid usernames.
func Negotiate(clientOrder []string, serverPlugins map[string]ServerFactory) (string, Plugin, error) {
	for _, name := range clientOrder {
		factory, ok := serverPlugins[name]
		if !ok {
			continue
		}
		plugin, err := factory()
		if err != nil {
			return "", nil, protoerr.NewAuthenticationError(err)
		}
		return name, plugin, nil
	}
	return "", nil, protoerr.NewAuthenticationError(fmt.Errorf("no mutually supported auth plugin among %v", clientOrder))
}
