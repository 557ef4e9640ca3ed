package server

import (
	"context"
	"sync"

	"github.com/fbremote/fbremote/internal/transport"
)

// auxRendezvous matches a freshly accepted connection carrying an
// op_aux_connect token back to the primary Connection that handed that
// token out in its attach response, mirroring the teacher's pattern of a
// short-lived correlation map for out-of-band callbacks (SMB's session
// binding, generalized here to the aux-port reconnect spec.md describes).
// Only Resolve consumes a token, and only while Await is waiting on it; a
// Resolve that arrives before Await has registered the token fails.
type auxRendezvous struct {
	mu      sync.Mutex
	waiting map[string]chan *transport.Port
}

func newAuxRendezvous() *auxRendezvous {
	return &auxRendezvous{waiting: make(map[string]chan *transport.Port)}
}

// Await blocks until a connection presents token via Resolve or ctx is
// cancelled.
func (r *auxRendezvous) Await(ctx context.Context, token string) (*transport.Port, error) {
	ch := make(chan *transport.Port, 1)

	r.mu.Lock()
	r.waiting[token] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.waiting, token)
		r.mu.Unlock()
	}()

	select {
	case port := <-ch:
		return port, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve hands port to whoever is awaiting token, reporting false if the
// token is unknown (already claimed, expired, or never issued).
func (r *auxRendezvous) Resolve(token string, port *transport.Port) bool {
	r.mu.Lock()
	ch, ok := r.waiting[token]
	if ok {
		delete(r.waiting, token)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	ch <- port
	return true
}
