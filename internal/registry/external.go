package registry

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ExternalClient is a single namespaced MCP server reachable from the
// coprocessor: ctx7 (documentation), gh (GitHub), registry (package
// registry lookups).
type ExternalClient interface {
	// Namespace is the tool-name prefix this client owns, e.g. "ctx7.".
	Namespace() string
	// Tools returns the descriptors this client currently contributes.
	Tools() []ToolDescriptor
	// Ping checks connectivity; a non-nil error marks the client unhealthy.
	Ping(ctx context.Context) error
}

// ExternalManager tracks a fixed set of named external clients and their
// health, refreshed on a timer via a concurrent fan-out, grounded on the
// pack's named-region connection/health map.
type ExternalManager struct {
	mu      sync.RWMutex
	clients map[string]ExternalClient
	health  map[string]bool
	stopCh  chan struct{}
}

// NewExternalManager builds a manager over clients and starts a
// background health-check loop at the given interval. A zero interval
// disables the background loop; callers can still invoke RefreshHealth
// manually (e.g. from a readiness probe).
func NewExternalManager(clients []ExternalClient, checkInterval time.Duration) *ExternalManager {
	m := &ExternalManager{
		clients: make(map[string]ExternalClient, len(clients)),
		health:  make(map[string]bool, len(clients)),
		stopCh:  make(chan struct{}),
	}

	for _, c := range clients {
		m.clients[c.Namespace()] = c
		m.health[c.Namespace()] = true
	}

	if checkInterval > 0 {
		go m.healthLoop(checkInterval)
	}

	return m
}

// List returns every healthy client's current tools.
func (m *ExternalManager) List() []ToolDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ToolDescriptor
	for ns, c := range m.clients {
		if !m.health[ns] {
			continue
		}
		out = append(out, c.Tools()...)
	}
	return out
}

// Resolve finds the descriptor for name by matching it against each
// healthy client's namespace prefix.
func (m *ExternalManager) Resolve(name string) (ToolDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for ns, c := range m.clients {
		if !m.health[ns] || !strings.HasPrefix(name, ns) {
			continue
		}
		for _, t := range c.Tools() {
			if t.Name == name {
				return t, true
			}
		}
	}
	return ToolDescriptor{}, false
}

// HealthStatus returns a snapshot of each client's last known health.
func (m *ExternalManager) HealthStatus() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool, len(m.health))
	for k, v := range m.health {
		out[k] = v
	}
	return out
}

// RefreshHealth pings every client concurrently and updates the health
// map with the results.
func (m *ExternalManager) RefreshHealth(ctx context.Context) {
	m.mu.RLock()
	clients := make([]ExternalClient, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	results := make(map[string]bool, len(clients))
	var resultsMu sync.Mutex

	for _, c := range clients {
		wg.Add(1)
		go func(c ExternalClient) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			err := c.Ping(pingCtx)

			resultsMu.Lock()
			results[c.Namespace()] = err == nil
			resultsMu.Unlock()
		}(c)
	}
	wg.Wait()

	m.mu.Lock()
	for ns, ok := range results {
		m.health[ns] = ok
	}
	m.mu.Unlock()
}

func (m *ExternalManager) healthLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.RefreshHealth(context.Background())
		}
	}
}

// Close stops the background health-check loop.
func (m *ExternalManager) Close() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
}
