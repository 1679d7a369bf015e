package session

import (
	"context"
	"sync"

	"github.com/okoro-dev/translingo/internal/core"
)

// Manager hands out one Coordinator per authenticated user, bootstrapping it
// from the store on first use. Coordinators live for the process lifetime;
// there is no per-request teardown because each one owns live stream state.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry

	store      core.StoreClient
	translator core.Translator
	extractor  core.Extractor
	model      string
	fromLang   string
	toLang     string
}

// sessionEntry holds the coordinator together with its bootstrap state.
// ready closes once Load has finished, successfully or not, so concurrent
// first requests for the same user all wait for one bootstrap instead of
// seeing a coordinator with no active chat.
type sessionEntry struct {
	coord *Coordinator
	ready chan struct{}
	err   error
}

func NewManager(store core.StoreClient, tr core.Translator, ex core.Extractor, model, fromLang, toLang string) *Manager {
	return &Manager{
		sessions:   make(map[string]*sessionEntry),
		store:      store,
		translator: tr,
		extractor:  ex,
		model:      model,
		fromLang:   fromLang,
		toLang:     toLang,
	}
}

// Session returns the user's coordinator, creating and loading it when the
// user shows up for the first time. A failed bootstrap is forgotten so the
// next request retries it.
func (m *Manager) Session(ctx context.Context, userID string) (*Coordinator, error) {
	m.mu.Lock()
	entry, ok := m.sessions[userID]
	if !ok {
		entry = &sessionEntry{
			coord: NewCoordinator(userID, m.store, m.translator, m.extractor, m.model, m.fromLang, m.toLang),
			ready: make(chan struct{}),
		}
		m.sessions[userID] = entry
	}
	m.mu.Unlock()

	if !ok {
		entry.err = entry.coord.Load(ctx)
		if entry.err != nil {
			m.mu.Lock()
			delete(m.sessions, userID)
			m.mu.Unlock()
		}
		close(entry.ready)
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.coord, nil
	}

	select {
	case <-entry.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.coord, nil
}
