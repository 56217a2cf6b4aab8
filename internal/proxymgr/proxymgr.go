// Package proxymgr rotates download proxies and benches the ones that keep failing.
package proxymgr

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/url"
	"sync"
	"time"
)

// State is the availability of a proxy.
type State int

const (
	// StateAvailable means the proxy can be handed out.
	StateAvailable State = iota
	// StateBenched means the proxy failed too often and waits out its backoff.
	StateBenched
)

func (s State) String() string {
	if s == StateBenched {
		return "benched"
	}

	return "available"
}

const (
	probeTimeout = 10 * time.Second
	maxBackoff   = time.Hour
)

// Options configures a Manager.
type Options struct {
	Proxies []string
	// MaxFailures is how many consecutive failures bench a proxy.
	MaxFailures int
	// FailureBackoff is the first bench duration; it doubles per further failure.
	FailureBackoff time.Duration
}

type proxy struct {
	url          string
	state        State
	failures     int
	lastFailure  time.Time
	benchedUntil time.Time
}

// Stats is a point in time view of one proxy.
type Stats struct {
	State        State     `json:"state"`
	Failures     int       `json:"failures"`
	LastFailure  time.Time `json:"lastFailure"`
	BenchedUntil time.Time `json:"benchedUntil"`
}

// Manager hands out proxies for fetch attempts. It is safe for concurrent use.
type Manager struct {
	log *slog.Logger
	opt Options

	mu      sync.Mutex
	proxies map[string]*proxy
	order   []string
}

// New creates a new proxy manager. Duplicate proxy URLs are collapsed.
func New(log *slog.Logger, opt Options) *Manager {
	if opt.MaxFailures < 1 {
		opt.MaxFailures = 1
	}

	mgr := &Manager{
		log:     log.With(slog.String("package", "proxymgr")),
		opt:     opt,
		proxies: make(map[string]*proxy, len(opt.Proxies)),
		order:   make([]string, 0, len(opt.Proxies)),
	}

	for _, u := range opt.Proxies {
		if _, dup := mgr.proxies[u]; dup || u == "" {
			continue
		}

		mgr.proxies[u] = &proxy{url: u}
		mgr.order = append(mgr.order, u)
	}

	return mgr
}

// GetRandomProxy returns a random available proxy URL, or "" when none is available.
func (m *Manager) GetRandomProxy() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	available := m.available(time.Now())
	if len(available) == 0 {
		return ""
	}

	return available[rand.IntN(len(available))]
}

// MarkFailed records a failed attempt through proxyURL.
// After MaxFailures consecutive failures the proxy is benched with exponential backoff.
func (m *Manager) MarkFailed(proxyURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proxies[proxyURL]
	if !ok {
		return
	}

	now := time.Now()

	p.failures++
	p.lastFailure = now

	if p.failures < m.opt.MaxFailures {
		return
	}

	backoff := min(m.opt.FailureBackoff<<(p.failures-m.opt.MaxFailures), maxBackoff)
	if backoff <= 0 {
		backoff = maxBackoff
	}

	p.state = StateBenched
	p.benchedUntil = now.Add(backoff)

	m.log.Warn("proxy benched",
		slog.String("proxy", proxyURL),
		slog.Int("failures", p.failures),
		slog.Duration("backoff", backoff))
}

// MarkSuccess resets the failure streak of proxyURL.
func (m *Manager) MarkSuccess(proxyURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proxies[proxyURL]
	if !ok {
		return
	}

	p.state = StateAvailable
	p.failures = 0
	p.benchedUntil = time.Time{}
}

// Probe dials every proxy once and marks unreachable ones as failed.
// It returns the number of proxies that answered.
func (m *Manager) Probe(ctx context.Context) int {
	m.mu.Lock()
	urls := append([]string(nil), m.order...)
	m.mu.Unlock()

	reachable := 0

	for _, proxyURL := range urls {
		if ctx.Err() != nil {
			break
		}

		if err := dial(ctx, proxyURL); err != nil {
			m.log.WarnContext(ctx, "proxy unreachable", slog.String("proxy", proxyURL), slog.Any("error", err))
			m.MarkFailed(proxyURL)

			continue
		}

		reachable++
	}

	return reachable
}

func dial(ctx context.Context, proxyURL string) error {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("parse proxy URL: %w", err)
	}

	if parsed.Host == "" {
		return fmt.Errorf("parse proxy URL: missing host in %q", proxyURL)
	}

	dialer := &net.Dialer{Timeout: probeTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", parsed.Host)
	if err != nil {
		return fmt.Errorf("dial proxy: %w", err)
	}

	return conn.Close()
}

// Stats returns the current state of every proxy keyed by URL.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]Stats, len(m.proxies))
	for u, p := range m.proxies {
		stats[u] = Stats{
			State:        p.state,
			Failures:     p.failures,
			LastFailure:  p.lastFailure,
			BenchedUntil: p.benchedUntil,
		}
	}

	return stats
}

// Count returns the number of configured proxies.
func (m *Manager) Count() int {
	return len(m.order)
}

// AvailableCount returns the number of proxies that can be handed out now.
func (m *Manager) AvailableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.available(time.Now()))
}

// available must be called with mu held. A benched proxy whose backoff has
// passed is handed out again but keeps its failure streak.
func (m *Manager) available(now time.Time) []string {
	out := make([]string, 0, len(m.order))

	for _, u := range m.order {
		p := m.proxies[u]
		if p.state == StateAvailable || now.After(p.benchedUntil) {
			out = append(out, u)
		}
	}

	return out
}
