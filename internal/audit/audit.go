// Package audit implements the append-only audit event log (§3): actor,
// deployment_hash, action code, outcome, timestamp, freeform detail. Entries
// reference deployments by hash, not by foreign key, so they survive a
// deployment's cascade delete.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trydirect/stacker/pkg/authn"
)

// Entry represents a single audit log entry to be written.
type Entry struct {
	Actor          string // agent id or user id, per §3
	DeploymentHash string
	Action         string
	Outcome        string
	Detail         json.RawMessage
	IPAddress      *netip.Addr
	UserAgent      *string
}

// Writer is an async, buffered audit log writer. A failed write never fails
// the surrounding business operation (§7); it is logged.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start begins the background goroutine that flushes audit entries to the database.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Write enqueues an audit entry for async writing. It never blocks the
// caller; if the buffer is full the entry is dropped and a warning is logged.
func (w *Writer) Write(_ context.Context, entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"action", entry.Action, "deployment_hash", entry.DeploymentHash)
	}
}

// WriteFromRequest is a convenience method that extracts the authenticated
// actor, IP, and user agent from the request, then enqueues the entry.
func (w *Writer) WriteFromRequest(r *http.Request, deploymentHash, action, outcome string, detail json.RawMessage) {
	entry := Entry{
		DeploymentHash: deploymentHash,
		Action:         action,
		Outcome:        outcome,
		Detail:         detail,
	}

	if id := authn.FromContext(r.Context()); id != nil {
		switch {
		case id.Agent != nil:
			entry.Actor = id.Agent.AgentID.String()
		case id.User != nil:
			entry.Actor = id.User.UserID
		}
	}

	ip := clientIP(r)
	if ip.IsValid() {
		entry.IPAddress = &ip
	}

	if ua := r.Header.Get("User-Agent"); ua != "" {
		entry.UserAgent = &ua
	}

	w.Write(r.Context(), entry)
}

// run is the background loop that drains the entries channel.
func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of entries to the database in a single statement per entry.
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		detail := e.Detail
		if detail == nil {
			detail = json.RawMessage(`{}`)
		}

		_, err := w.pool.Exec(ctx, `
			INSERT INTO audit_event (actor, deployment_hash, action, outcome, detail)
			VALUES ($1, $2, $3, $4, $5)
		`, e.Actor, e.DeploymentHash, e.Action, e.Outcome, detail)
		if err != nil {
			w.logger.Error("writing audit log entry", "error", err,
				"action", e.Action, "deployment_hash", e.DeploymentHash)
		}
	}
}

// clientIP extracts the client IP address from the request, preferring
// X-Forwarded-For and X-Real-IP headers over RemoteAddr.
func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
