package service

import (
	"context"
	"sync"

	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/models"
)

// subscriberBuffer is the number of events a slow subscriber may lag behind
// before further events are dropped for it.
const subscriberBuffer = 64

// ConnectionManager fans progress events out to the WebSocket connections
// watching a run.
type ConnectionManager struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan models.ProgressEvent
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		subs: make(map[string]map[int]chan models.ProgressEvent),
	}
}

// Subscribe registers a watcher for runID. The returned channel is closed
// after the run's terminal event or when cancel is called.
func (m *ConnectionManager) Subscribe(runID string) (<-chan models.ProgressEvent, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan models.ProgressEvent, subscriberBuffer)
	if m.subs[runID] == nil {
		m.subs[runID] = make(map[int]chan models.ProgressEvent)
	}
	m.subs[runID][id] = ch

	return ch, func() { m.remove(runID, id) }
}

func (m *ConnectionManager) remove(runID string, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subs[runID][id]; ok {
		close(ch)
		delete(m.subs[runID], id)
		if len(m.subs[runID]) == 0 {
			delete(m.subs, runID)
		}
	}
}

// Subscribers returns the number of watchers of runID.
func (m *ConnectionManager) Subscribers(runID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[runID])
}

// Report delivers ev to every watcher of its run without blocking. A
// terminal event closes the run's subscriptions.
func (m *ConnectionManager) Report(_ context.Context, ev models.ProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
		}
	}
	if ev.Status.Terminal() {
		for id, ch := range m.subs[ev.RunID] {
			close(ch)
			delete(m.subs[ev.RunID], id)
		}
		delete(m.subs, ev.RunID)
	}
	return nil
}

var _ interfaces.ProgressReporter = (*ConnectionManager)(nil)
