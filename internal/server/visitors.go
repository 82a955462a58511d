package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"resumefit/internal/errors"
	"resumefit/internal/session"
	"resumefit/internal/workflow"
)

// VisitorCookie carries the visitor id of a browser
const VisitorCookie = "resumefit_visitor"

// BackendStatus reports the health of one visitor's backend client
type BackendStatus interface {
	IsHealthy() bool
	Stats() map[string]any
}

// VisitorFactory builds the controller and backend client of a new visitor
type VisitorFactory func() (*workflow.Controller, BackendStatus)

// VisitorGauge is notified when the number of live visitors changes
type VisitorGauge interface {
	VisitorsChanged(ctx context.Context, delta int64)
}

// Visitor is one browser session: its workflow state and the controller
// bound to its own backend session.
type Visitor struct {
	ID         string
	Controller *workflow.Controller
	Backend    BackendStatus

	mu    sync.Mutex
	state session.State
}

// State returns a snapshot of the visitor's state
func (v *Visitor) State() session.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Update replaces the visitor's state with fn applied to the current one
func (v *Visitor) Update(fn func(session.State) session.State) session.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = fn(v.state)
	return v.state
}

// VisitorManager tracks visitors by cookie and evicts idle ones
type VisitorManager struct {
	mu       sync.Mutex
	visitors map[string]*Visitor
	lastSeen map[string]time.Time
	ttl      time.Duration
	secure   bool
	factory  VisitorFactory
	gauge    VisitorGauge
	done     chan struct{}
	once     sync.Once
	logger   *errors.Logger
}

// NewVisitorManager creates a manager and starts its eviction goroutine.
// A zero ttl disables eviction.
func NewVisitorManager(ttl time.Duration, secure bool, factory VisitorFactory, gauge VisitorGauge, logger *errors.Logger) *VisitorManager {
	m := &VisitorManager{
		visitors: make(map[string]*Visitor),
		lastSeen: make(map[string]time.Time),
		ttl:      ttl,
		secure:   secure,
		factory:  factory,
		gauge:    gauge,
		done:     make(chan struct{}),
		logger:   logger,
	}

	if ttl > 0 {
		go m.cleanupRoutine(cleanupInterval(ttl))
	}
	return m
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	return interval
}

// Get returns the visitor of r, creating one and setting its cookie when
// r carries no known visitor id. created reports whether it is new.
func (m *VisitorManager) Get(w http.ResponseWriter, r *http.Request) (v *Visitor, created bool) {
	if c, err := r.Cookie(VisitorCookie); err == nil {
		if v := m.lookup(c.Value); v != nil {
			return v, false
		}
	}

	v = m.create()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    v.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return v, true
}

func (m *VisitorManager) lookup(id string) *Visitor {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.visitors[id]
	if !ok {
		return nil
	}
	m.lastSeen[id] = time.Now()
	return v
}

func (m *VisitorManager) create() *Visitor {
	controller, backend := m.factory()
	v := &Visitor{
		ID:         uuid.NewString(),
		Controller: controller,
		Backend:    backend,
		state:      session.New(),
	}

	m.mu.Lock()
	m.visitors[v.ID] = v
	m.lastSeen[v.ID] = time.Now()
	count := len(m.visitors)
	m.mu.Unlock()

	if m.gauge != nil {
		m.gauge.VisitorsChanged(context.Background(), 1)
	}
	m.logger.Debug("Visitor session created", "visitor", v.ID, "active_visitors", count)
	return v
}

// Len returns the number of live visitors
func (m *VisitorManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visitors)
}

// BackendHealth returns the number of visitors whose backend client has
// at least one open circuit breaker.
func (m *VisitorManager) BackendHealth() (unhealthy int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.visitors {
		if v.Backend != nil && !v.Backend.IsHealthy() {
			unhealthy++
		}
	}
	return unhealthy
}

// GetStats returns visitor statistics
func (m *VisitorManager) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	uploaded := 0
	for _, v := range m.visitors {
		if v.State().Uploaded {
			uploaded++
		}
	}
	return map[string]any{
		"active_visitors":   len(m.visitors),
		"uploaded_visitors": uploaded,
		"ttl_seconds":       m.ttl.Seconds(),
	}
}

// cleanupRoutine periodically removes idle visitors
func (m *VisitorManager) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup(m.ttl)
		case <-m.done:
			return
		}
	}
}

// cleanup removes visitors that haven't been seen for the specified duration
func (m *VisitorManager) cleanup(evictionAge time.Duration) {
	m.mu.Lock()
	now := time.Now()
	evicted := 0
	for id, lastSeen := range m.lastSeen {
		if now.Sub(lastSeen) > evictionAge {
			delete(m.visitors, id)
			delete(m.lastSeen, id)
			evicted++
		}
	}
	remaining := len(m.visitors)
	m.mu.Unlock()

	if evicted > 0 && m.gauge != nil {
		m.gauge.VisitorsChanged(context.Background(), -int64(evicted))
	}
	m.logger.Debug("Visitor cleanup completed",
		"evicted", evicted,
		"remaining_visitors", remaining)
}

// Close stops the eviction goroutine
func (m *VisitorManager) Close() {
	m.once.Do(func() { close(m.done) })
}
