// Package listener implements the Multiplexed Listener: the TCP accept loop
// that turns each inbound connection into a transport.Port and hands it to a
// protocol-specific ConnectionFactory, plus the keepalive tick that scans
// every live port for a due dummy packet and the dead-socket detection that
// backs graceful-versus-forced shutdown.
package listener

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fbremote/fbremote/internal/logger"
	"github.com/fbremote/fbremote/internal/transport"
	"github.com/fbremote/fbremote/internal/wire"
	"github.com/fbremote/fbremote/internal/xdr"
	"github.com/fbremote/fbremote/pkg/config"
	"github.com/fbremote/fbremote/pkg/metrics"
)

// ConnectionHandler serves one accepted port until it closes or ctx is
// cancelled. Serve must return once the port breaks; it owns the port for
// its whole lifetime.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory builds the protocol-specific handler for a freshly
// accepted port. Implemented by the package that drives the Session State
// Machine on top of it.
type ConnectionFactory interface {
	NewConnection(port *transport.Port) ConnectionHandler
}

// Listener runs the shared TCP accept loop for the engine: one listener per
// configured transport, each port wrapped and handed to factory, with
// connection limiting, a keepalive/dummy-packet tick, and graceful shutdown
// shared across every caller regardless of which transport kind is in use.
type Listener struct {
	cfg             config.ListenerConfig
	shutdownTimeout time.Duration

	// Metrics is an optional recorder for connection lifecycle metrics. A
	// nil Metrics means collection is off.
	Metrics metrics.Recorder

	netListener net.Listener
	listenerMu  sync.RWMutex

	activeConns  sync.WaitGroup
	connCount    atomic.Int32
	connSema     chan struct{}
	activePorts  sync.Map // remote addr (string) -> *transport.Port

	shutdownOnce sync.Once
	shutdown     chan struct{}

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// Ready is closed once the listener is bound and accepting. Tests use
	// this to synchronize with startup instead of sleeping.
	Ready chan struct{}
}

// New returns a Listener in the stopped state. Call Serve to start it.
// rec may be nil, in which case no metrics are collected.
func New(cfg config.ListenerConfig, shutdownTimeout time.Duration, rec metrics.Recorder) *Listener {
	var sema chan struct{}
	if cfg.MaxConnections > 0 {
		sema = make(chan struct{}, cfg.MaxConnections)
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())

	return &Listener{
		cfg:             cfg,
		shutdownTimeout: shutdownTimeout,
		Metrics:         rec,
		connSema:        sema,
		shutdown:        make(chan struct{}),
		shutdownCtx:     shutdownCtx,
		cancelRequests:  cancel,
		Ready:           make(chan struct{}),
	}
}

// Serve binds the configured address and port, accepting connections until
// ctx is cancelled, then waits for active connections to drain (or forces
// them closed past the configured shutdown timeout).
func (l *Listener) Serve(ctx context.Context, factory ConnectionFactory) error {
	network := "tcp"
	switch l.cfg.Transport {
	case "inet4":
		network = "tcp4"
	case "inet6":
		network = "tcp6"
	case "xnet", "wnet":
		return fmt.Errorf("listener: transport %q is not implemented over TCP", l.cfg.Transport)
	}

	addr := fmt.Sprintf("%s:%d", l.cfg.BindAddress, l.cfg.Port)
	nl, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("listener: bind %s: %w", addr, err)
	}

	l.listenerMu.Lock()
	l.netListener = nl
	l.listenerMu.Unlock()
	close(l.Ready)

	logger.Info("listener accepting", "transport", l.cfg.Transport, "address", addr)

	go func() {
		<-ctx.Done()
		l.initiateShutdown()
	}()

	if l.cfg.DummyPacketInterval > 0 {
		go l.runDummyTick(ctx)
	}

	for {
		if l.connSema != nil {
			select {
			case l.connSema <- struct{}{}:
			case <-l.shutdown:
				return l.drain()
			}
		}

		conn, err := nl.Accept()
		if err != nil {
			if l.connSema != nil {
				<-l.connSema
			}
			select {
			case <-l.shutdown:
				return l.drain()
			default:
				logger.Debug("listener: accept error", "error", err)
				continue
			}
		}

		if l.cfg.NoDelay {
			if tcp, ok := conn.(*net.TCPConn); ok {
				if err := tcp.SetNoDelay(true); err != nil {
					logger.Debug("listener: SetNoDelay failed", "error", err)
				}
			}
		}

		port := transport.NewPort(conn, portKind(l.cfg.Transport))
		if l.cfg.DummyPacketInterval > 0 {
			port.SetDummyInterval(l.cfg.DummyPacketInterval)
		}

		l.activeConns.Add(1)
		l.connCount.Add(1)
		addr := conn.RemoteAddr().String()
		l.activePorts.Store(addr, port)

		if l.Metrics != nil {
			l.Metrics.RecordConnectionAccepted()
			l.Metrics.SetActiveConnections(l.connCount.Load())
		}
		logger.Debug("listener: connection accepted", "address", addr, "active", l.connCount.Load())

		handler := factory.NewConnection(port)
		go func(addr string, port *transport.Port) {
			defer func() {
				l.activePorts.Delete(addr)
				l.activeConns.Done()
				l.connCount.Add(-1)
				if l.connSema != nil {
					<-l.connSema
				}
				if l.Metrics != nil {
					l.Metrics.RecordConnectionClosed()
					l.Metrics.SetActiveConnections(l.connCount.Load())
				}
				logger.Debug("listener: connection closed", "address", addr, "active", l.connCount.Load())
			}()
			handler.Serve(l.shutdownCtx)
		}(addr, port)
	}
}

// Addr returns the bound listener address once Serve has started it; it
// blocks until Ready closes.
func (l *Listener) Addr() net.Addr {
	<-l.Ready
	l.listenerMu.RLock()
	defer l.listenerMu.RUnlock()
	return l.netListener.Addr()
}

// portKind maps a configured transport name to the Kind a Port is tagged
// with; xnet/wnet are rejected before Serve reaches here.
func portKind(transportName string) transport.Kind {
	switch transportName {
	case "inet4":
		return transport.KindInet4
	case "inet6":
		return transport.KindInet6
	default:
		return transport.KindInet
	}
}

// runDummyTick scans every live port once per tick and writes a dummy
// packet to any that has gone quiet past its configured interval, detecting
// a dead peer ahead of the OS keepalive timer. A send failure marks the
// port broken; its own Serve goroutine observes that on its next op and
// tears down.
func (l *Listener) runDummyTick(ctx context.Context) {
	interval := l.cfg.DummyPacketInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			return
		case <-ticker.C:
			l.activePorts.Range(func(_, v any) bool {
				port, ok := v.(*transport.Port)
				if !ok || !port.DummyDue() {
					return true
				}
				enc := xdr.NewEncoder(port)
				if err := wire.Encode(enc, &wire.Packet{Op: wire.OpDummy}); err != nil {
					logger.Debug("listener: dummy packet failed", "error", err)
				}
				return true
			})
		}
	}
}

// initiateShutdown stops accepting new connections and interrupts any
// blocking reads on connections still active, idempotently.
func (l *Listener) initiateShutdown() {
	l.shutdownOnce.Do(func() {
		logger.Debug("listener: shutdown initiated")
		close(l.shutdown)

		l.listenerMu.Lock()
		if l.netListener != nil {
			if err := l.netListener.Close(); err != nil {
				logger.Debug("listener: close failed", "error", err)
			}
		}
		l.listenerMu.Unlock()

		l.interruptBlockingReads()
		l.cancelRequests()
	})
}

// interruptBlockingReads sets a near-term read deadline on every active
// port's underlying connection so a handler's Recv unblocks promptly during
// shutdown rather than waiting for its own timeout.
func (l *Listener) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)
	l.activePorts.Range(func(_, v any) bool {
		if port, ok := v.(*transport.Port); ok {
			if err := port.Conn().SetReadDeadline(deadline); err != nil {
				logger.Debug("listener: set shutdown deadline failed", "error", err)
			}
		}
		return true
	})
}

// drain waits for every accepted connection's Serve to return, forcibly
// closing any still open past the configured shutdown timeout.
func (l *Listener) drain() error {
	active := l.connCount.Load()
	logger.Info("listener: draining", "active", active, "timeout", l.shutdownTimeout)

	done := make(chan struct{})
	go func() {
		l.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("listener: drained cleanly")
		return nil
	case <-time.After(l.shutdownTimeout):
		remaining := l.connCount.Load()
		logger.Warn("listener: shutdown timeout exceeded, forcing closure", "remaining", remaining)
		l.activePorts.Range(func(_, v any) bool {
			if port, ok := v.(*transport.Port); ok {
				_ = port.Close(false)
				if l.Metrics != nil {
					l.Metrics.RecordConnectionForceClosed()
				}
			}
			return true
		})
		<-done
		return fmt.Errorf("listener: %d connection(s) force-closed past shutdown timeout", remaining)
	}
}
