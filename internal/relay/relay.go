package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/idanmel/skyarena/internal/protocol"
	"github.com/idanmel/skyarena/internal/world"
)

// Config holds configuration for the UDP relay
type Config struct {
	// BroadcastInterval is the cadence of world snapshot broadcasts.
	BroadcastInterval time.Duration

	// ReadTimeout bounds each UDP read so the ingest loop can observe
	// shutdown without a pending datagram.
	ReadTimeout time.Duration

	// MaxDatagram is the receive buffer size.
	MaxDatagram int
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		BroadcastInterval: 50 * time.Millisecond,
		ReadTimeout:       200 * time.Millisecond,
		MaxDatagram:       2048,
	}
}

// Relay runs the two world-channel loops over one UDP socket: ingest applies
// address bindings and position updates to the registry, broadcast publishes
// a combined snapshot to every bound address on a fixed interval.
type Relay struct {
	conn     *net.UDPConn
	registry *world.Registry
	logger   *slog.Logger
	cfg      Config
}

// New creates a relay over an already-bound UDP socket.
func New(conn *net.UDPConn, registry *world.Registry, logger *slog.Logger, cfg Config) *Relay {
	if cfg.BroadcastInterval == 0 {
		cfg.BroadcastInterval = DefaultConfig().BroadcastInterval
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if cfg.MaxDatagram == 0 {
		cfg.MaxDatagram = DefaultConfig().MaxDatagram
	}
	return &Relay{
		conn:     conn,
		registry: registry,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run starts both loops and blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		r.ingestLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		r.broadcastLoop(ctx)
	}()

	wg.Wait()
}

func (r *Relay) ingestLoop(ctx context.Context) {
	buf := make([]byte, r.cfg.MaxDatagram)

	for {
		if ctx.Err() != nil {
			return
		}

		_ = r.conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("udp read failed", slog.String("error", err.Error()))
			continue
		}

		r.handleDatagram(buf[:n], addr)
	}
}

// handleDatagram applies one ingest message. Stale or forged tokens are
// logged and dropped; nothing on this path can take down the loop.
func (r *Relay) handleDatagram(payload []byte, addr *net.UDPAddr) {
	msg, err := protocol.ParseDatagram(payload)
	if err != nil {
		r.logger.Warn("dropping malformed datagram",
			slog.String("from", addr.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	switch m := msg.(type) {
	case protocol.AddrRegister:
		if !r.registry.BindAddress(m.Token, addr) {
			r.logger.Warn("dropping address registration for unknown token",
				slog.String("from", addr.String()),
			)
			return
		}
		if _, err := r.conn.WriteToUDP(protocol.FormatAddrConfirm(), addr); err != nil {
			r.logger.Warn("failed to confirm address binding",
				slog.String("to", addr.String()),
				slog.String("error", err.Error()),
			)
		}
	case protocol.PosUpdate:
		if !r.registry.UpdateTransform(m.Token, m.Transform) {
			r.logger.Warn("dropping position update for unknown token",
				slog.String("from", addr.String()),
			)
		}
	}
}

func (r *Relay) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.broadcastOnce()
		}
	}
}

// broadcastOnce snapshots the registry and sends the combined position
// message to every resolved address.
func (r *Relay) broadcastOnce() {
	records, addrs := r.registry.Snapshot()
	if len(records) == 0 || len(addrs) == 0 {
		return
	}

	msg := protocol.FormatBroadcast(records)
	for _, addr := range addrs {
		if _, err := r.conn.WriteToUDP(msg, addr); err != nil {
			r.logger.Warn("broadcast send failed",
				slog.String("to", addr.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
