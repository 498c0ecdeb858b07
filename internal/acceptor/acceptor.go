// Package acceptor runs the TLS accept loop: one goroutine per accepted
// connection supervised by a sync.WaitGroup, graceful shutdown on
// context cancellation, and teardown of the shared-memory regions on
// exit.
package acceptor

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/cardserver/internal/counters"
	"github.com/marmos91/cardserver/internal/logger"
	"github.com/marmos91/cardserver/internal/session"
	"github.com/marmos91/cardserver/internal/shm"
	"github.com/marmos91/cardserver/internal/transport"
	"github.com/marmos91/cardserver/internal/worker"
	"github.com/marmos91/cardserver/pkg/metrics"
)

// Config carries everything the acceptor needs to stand up the listener
// and its shared backing stores.
type Config struct {
	Addr             string
	TLS              transport.Config
	CountersPath     string
	SessionStorePath string
	ReadTimeout      time.Duration
	// MetricsSampleInterval governs how often Serve mirrors the shared
	// counters and session store occupancy into Gauges. Zero disables
	// sampling even when Gauges is non-nil.
	MetricsSampleInterval time.Duration
}

// Acceptor owns the listener and the shared session/counters regions for
// the process's lifetime.
type Acceptor struct {
	cfg       Config
	listener  net.Listener
	tlsConfig *tls.Config
	store     *session.Store
	counters  *counters.Counters
	gauges    *metrics.Gauges
	wg        sync.WaitGroup
}

// Open initialises the TLS context, session store, and counters, and
// opens the listening socket.
func Open(cfg Config) (*Acceptor, error) {
	tlsConfig, err := transport.LoadServerTLSConfig(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("acceptor: tls config: %w", err)
	}

	store, err := session.Open(cfg.SessionStorePath)
	if err != nil {
		return nil, fmt.Errorf("acceptor: session store: %w", err)
	}

	ctrs, err := counters.Open(cfg.CountersPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("acceptor: counters: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		store.Close()
		ctrs.Close()
		return nil, fmt.Errorf("acceptor: listen %s: %w", cfg.Addr, err)
	}

	return &Acceptor{
		cfg:       cfg,
		listener:  ln,
		tlsConfig: tlsConfig,
		store:     store,
		counters:  ctrs,
		gauges:    metrics.NewGauges(),
	}, nil
}

// Serve accepts connections until ctx is cancelled, spawning one
// goroutine per connection. Shutdown is cooperative: Serve stops
// accepting and waits for in-flight workers to finish their current
// step before returning.
func (a *Acceptor) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		a.listener.Close()
	}()

	if a.cfg.MetricsSampleInterval > 0 {
		go a.sampleMetrics(ctx)
	}

	for {
		raw, err := a.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				a.wg.Wait()
				return nil
			default:
				return fmt.Errorf("acceptor: accept: %w", err)
			}
		}

		a.wg.Add(1)
		go a.handle(ctx, raw)
	}
}

// sampleMetrics mirrors the shared counters and session store occupancy
// into the process's Gauges until ctx is cancelled. It is a pure reader
// of the shared-memory regions: an external monitor reading them
// directly would observe the same values.
func (a *Acceptor) sampleMetrics(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.MetricsSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.gauges.SetConnections(float64(a.counters.Connections()))
			a.gauges.SetPackets(float64(a.counters.Packets()))
			a.gauges.SetActiveSessions(float64(a.store.Count()))
		}
	}
}

func (a *Acceptor) handle(ctx context.Context, raw net.Conn) {
	defer a.wg.Done()

	conn, err := transport.Handshake(raw, a.tlsConfig, a.cfg.ReadTimeout)
	if err != nil {
		logger.Warn("tls handshake failed", logger.KeyClientIP, raw.RemoteAddr().String(), logger.Err(err))
		raw.Close()
		return
	}
	defer conn.Close()

	a.counters.IncConnections()

	w := worker.New(conn, a.store, func() { a.counters.IncPackets() })
	w.Run(ctx)
}

// Close stops the listener (if not already closed by Serve's shutdown
// path), unmaps the shared regions, and unlinks their backing files.
func (a *Acceptor) Close() error {
	a.listener.Close()
	a.wg.Wait()

	storeErr := a.store.Close()
	ctrErr := a.counters.Close()
	unlinkStoreErr := shm.Unlink(a.cfg.SessionStorePath)
	unlinkCtrErr := shm.Unlink(a.cfg.CountersPath)

	for _, err := range []error{storeErr, ctrErr, unlinkStoreErr, unlinkCtrErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
