package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-moisture/internal/layer"
	"github.com/joeblew999/plat-moisture/internal/metrics"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 30 * time.Minute

// SessionManager owns the open map sessions.
type SessionManager struct {
	cfg      SessionConfig
	ttl      time.Duration
	stations *StationService
	settings *SettingsService
	bus      *EventBus
	log      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*MapSession
}

// NewSessionManager creates a session manager. ttl <= 0 uses DefaultIdleTTL.
func NewSessionManager(cfg SessionConfig, ttl time.Duration, stations *StationService, settings *SettingsService, bus *EventBus, log *slog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Icons == nil {
		cfg.Icons = layer.DefaultIconMapping()
	}
	return &SessionManager{
		cfg:      cfg,
		ttl:      ttl,
		stations: stations,
		settings: settings,
		bus:      bus,
		log:      log,
		sessions: make(map[string]*MapSession),
	}
}

// Create opens a session at the initial view and mounts its layer.
func (m *SessionManager) Create() *MapSession {
	s := newMapSession(uuid.NewString(), m.cfg, m.stations, m.settings, m.log)
	s.Refresh()

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	m.log.Info("map session opened", "session", s.ID, "sessions", n)
	m.bus.Publish(Event{Resource: ResourceSessions, Action: "created", ID: s.ID})
	return s
}

// Get returns a session and marks it as in use.
func (m *SessionManager) Get(id string) (*MapSession, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.Touch(time.Now())
	}
	return s, ok
}

// Close removes a session.
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if ok {
		metrics.ActiveSessions.Set(float64(n))
		m.bus.Publish(Event{Resource: ResourceSessions, Action: "closed", ID: id})
	}
	return ok
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now-ttl and returns their ids.
func (m *SessionManager) Sweep(now time.Time) []string {
	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.ttl {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	for _, id := range expired {
		m.log.Info("map session expired", "session", id)
		m.bus.Publish(Event{Resource: ResourceSessions, Action: "expired", ID: id})
	}
	return expired
}

// Run sweeps idle sessions until ctx is done.
func (m *SessionManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}
