package auth

import (
	"context"
	"fmt"

	"github.com/fbremote/fbremote/internal/protoerr"
)

// CryptKey is one wire-encryption key a completed plugin made available,
// tagged with the plugin that produced it so a client trying keys against
// the port can match the plugin it actually negotiated.
type CryptKey struct {
	PluginName string
	Key        []byte
}

// ServerHandshake drives a server-side plugin through the multi-round
// handshake loop: start on the client's most-preferred mutually-supported
// plugin, and if that plugin rejects the client's data, advance to the
// next candidate on the client's offered list rather than failing the
// whole connection outright - mirroring a client that sent continuation
// data for a plugin the server also supports under a different name
// ordering.
type ServerHandshake struct {
	available  map[string]ServerFactory
	candidates []string // remaining client-offered names, most preferred first
	name       string
	plugin     Plugin
	keys       []CryptKey
}

// NewServerHandshake selects the first of clientOrder the server also
// supports and constructs its plugin. An empty intersection is reported
// as a single authentication error, same as Negotiate.
func NewServerHandshake(available map[string]ServerFactory, clientOrder []string) (*ServerHandshake, error) {
	h := &ServerHandshake{available: available}
	for _, name := range clientOrder {
		if _, ok := available[name]; ok {
			h.candidates = append(h.candidates, name)
		}
	}
	if err := h.advance(); err != nil {
		return nil, err
	}
	return h, nil
}

// PluginName is the plugin currently driving the handshake; the session
// layer names it in the accept/cont_auth reply so the client knows which
// plugin to switch to if it isn't already using it.
func (h *ServerHandshake) PluginName() string { return h.name }

func (h *ServerHandshake) advance() error {
	if len(h.candidates) == 0 {
		return protoerr.NewAuthenticationError(fmt.Errorf("no mutually supported auth plugin left to try"))
	}
	h.name, h.candidates = h.candidates[0], h.candidates[1:]
	plugin, err := h.available[h.name]()
	if err != nil {
		return protoerr.NewAuthenticationError(err)
	}
	h.plugin = plugin
	return nil
}

// Step advances the handshake by one round. If the active plugin rejects
// dataIn outright, Step switches to the next candidate plugin and retries
// with a fresh (empty) first round rather than surfacing the rejection
// immediately - the client list may still have a plugin this data never
// applied to. Once every candidate has been exhausted the failure
// surfaces as a single authentication error, never distinguishing which
// plugin or step rejected it. switched reports whether the active plugin
// changed during this call, which the caller must relay to the peer as a
// new plugin name in its next reply.
func (h *ServerHandshake) Step(ctx context.Context, dataIn []byte) (step Step, switched bool, err error) {
	before := h.name
	step, err = h.plugin.Step(ctx, dataIn)
	for err != nil {
		if advErr := h.advance(); advErr != nil {
			return Step{}, false, protoerr.NewAuthenticationError(err)
		}
		step, err = h.plugin.Step(ctx, nil)
	}
	if step.Done && step.Identity != nil && len(step.Identity.SessionKey) > 0 {
		h.keys = append(h.keys, CryptKey{PluginName: h.name, Key: step.Identity.SessionKey})
	}
	return step, h.name != before, nil
}

// Keys returns the wire-crypt keys accumulated by every plugin round that
// completed with session key material, most recent last.
func (h *ServerHandshake) Keys() []CryptKey { return h.keys }

// ClientPluginFactory constructs the client-side Plugin for a named
// plugin, used by ClientHandshake to switch plugins mid-handshake when
// the server names one different from the currently active one.
type ClientPluginFactory func(name string) (Plugin, error)

// ClientHandshake is the symmetric driver for a client-side plugin,
// switching plugins when the server's cont_auth/accept reply names a
// different one than whichever is currently active.
type ClientHandshake struct {
	factory ClientPluginFactory
	name    string
	plugin  Plugin
}

// NewClientHandshake starts the handshake on the named plugin.
func NewClientHandshake(name string, factory ClientPluginFactory) (*ClientHandshake, error) {
	p, err := factory(name)
	if err != nil {
		return nil, err
	}
	return &ClientHandshake{factory: factory, name: name, plugin: p}, nil
}

// PluginName is the plugin currently driving the handshake.
func (h *ClientHandshake) PluginName() string { return h.name }

// Switch changes the active plugin when the server named a different one
// than what this handshake is currently running; a blank or matching name
// is a no-op, mirroring the server never bothering to repeat the name
// when it hasn't changed.
func (h *ClientHandshake) Switch(switchTo string) error {
	if switchTo == "" || switchTo == h.name {
		return nil
	}
	p, err := h.factory(switchTo)
	if err != nil {
		return err
	}
	h.name, h.plugin = switchTo, p
	return nil
}

// Step advances the handshake by one round.
func (h *ClientHandshake) Step(ctx context.Context, dataIn []byte) (Step, error) {
	return h.plugin.Step(ctx, dataIn)
}
