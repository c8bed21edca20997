package udp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"viatrack/internal/domain"
	"viatrack/internal/fanout"
	"viatrack/internal/health"
	"viatrack/internal/storage"
)

// MaxDatagramSize bounds a single read. GPS fix payloads are tiny; anything
// larger is garbage from an unknown sender.
const MaxDatagramSize = 2048

// datagram is the inbound wire shape. Latitude and longitude are pointers so
// that an absent field is distinguishable from zero.
type datagram struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp string   `json:"timestamp"`
}

type Config struct {
	Address string
}

// Listener receives GPS fix datagrams, persists them, and hands each stored
// fix to the hub. Datagrams are processed sequentially on a single loop: id
// assignment and broadcast order stay consistent without any locking, and
// the kernel socket buffer is the only queue (no backpressure by design).
type Listener struct {
	cfg    Config
	store  storage.FixStore
	hub    *fanout.Hub
	state  *health.State
	conn   net.PacketConn
	addr   atomic.Value
	closed atomic.Bool
}

func NewListener(cfg Config, store storage.FixStore, hub *fanout.Hub, state *health.State) *Listener {
	if cfg.Address == "" {
		cfg.Address = ":6001"
	}
	return &Listener{cfg: cfg, store: store, hub: hub, state: state}
}

// Addr reports the bound address once Start has bound the socket.
func (l *Listener) Addr() string {
	if v := l.addr.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// Start binds the UDP socket and runs the receive loop until ctx is done or
// Close is called. UDP is connectionless: the loop is per-datagram, there is
// no accept step and no per-sender state.
func (l *Listener) Start(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("bind udp %s: %w", l.cfg.Address, err)
	}
	l.conn = conn
	l.addr.Store(conn.LocalAddr().String())
	log.Printf("udp ingest listening on %s", conn.LocalAddr())

	go func() { <-ctx.Done(); _ = l.Close() }()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, sender, err := conn.ReadFrom(buf)
		if err != nil {
			if l.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			// A dead socket is an ingest-path fault, not a reason to
			// crash: flag it and let health/read traffic keep serving.
			l.state.MarkDegraded(fmt.Sprintf("udp receive: %v", err))
			return err
		}
		l.handleDatagram(ctx, buf[:n], sender)
	}
}

func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

// handleDatagram runs one datagram through parse -> persist -> broadcast.
// A panic anywhere in the pipeline is a persistence-class event: the flag
// flips, the process keeps serving health and read traffic.
func (l *Listener) handleDatagram(ctx context.Context, raw []byte, sender net.Addr) {
	defer func() {
		if r := recover(); r != nil {
			l.state.MarkDegraded(fmt.Sprintf("panic in ingest path: %v", r))
		}
	}()

	if !l.state.Active() {
		log.Printf("udp ingest inactive, dropping datagram from %s", sender)
		return
	}

	fix, ts, err := parseDatagram(raw)
	if err != nil {
		// Malformed input from a possibly misbehaving sender must not
		// take down ingestion: drop and log only.
		log.Printf("udp ingest: malformed datagram from %s: %v", sender, err)
		return
	}

	stored, err := l.store.Insert(ctx, fix.Latitude, fix.Longitude, ts)
	if err != nil {
		l.state.MarkDegraded(fmt.Sprintf("insert fix: %v", err))
		return
	}

	l.hub.Broadcast(stored)
}

// parseDatagram decodes the JSON payload and validates required fields.
// The returned *time.Time is nil when the sender supplied no timestamp.
func parseDatagram(raw []byte) (domain.Point, *time.Time, error) {
	var d datagram
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Point{}, nil, fmt.Errorf("decode: %w", err)
	}
	if d.Latitude == nil || d.Longitude == nil {
		return domain.Point{}, nil, fmt.Errorf("latitude and longitude are required")
	}
	var ts *time.Time
	if d.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, d.Timestamp)
		if err != nil {
			return domain.Point{}, nil, fmt.Errorf("timestamp: %w", err)
		}
		utc := parsed.UTC()
		ts = &utc
	}
	return domain.Point{Latitude: *d.Latitude, Longitude: *d.Longitude}, ts, nil
}
