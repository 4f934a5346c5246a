// Package clientpref remembers which client identity last worked for an item
// and moves it to the front of the trial order.
package clientpref

import (
	"fmt"
	"strings"
	"sync"

	"yt-resolver/internal/model"
)

// Store persists one preferred client name per item key.
type Store interface {
	PreferredClient(itemKey string) (string, error)
	RecordClient(itemKey, client string) error
}

type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{store: store}
}

func (t *Tracker) Record(itemKey, client string) error {
	key := strings.TrimSpace(itemKey)
	name := strings.TrimSpace(client)
	if key == "" || name == "" {
		return fmt.Errorf("record client: item key and client name are required")
	}
	if err := t.store.RecordClient(key, name); err != nil {
		return fmt.Errorf("record client %s for %s: %w", name, key, err)
	}
	return nil
}

// OrderedClients returns a copy of defaults with the recorded client first.
// A store error falls back to the default order.
func (t *Tracker) OrderedClients(itemKey string, defaults []model.ClientIdentity) []model.ClientIdentity {
	preferred, err := t.store.PreferredClient(strings.TrimSpace(itemKey))
	if err != nil {
		preferred = ""
	}
	return Reorder(defaults, preferred)
}

// Reorder never adds, drops or mutates entries of defaults.
func Reorder(defaults []model.ClientIdentity, preferred string) []model.ClientIdentity {
	out := make([]model.ClientIdentity, 0, len(defaults))
	name := strings.ToLower(strings.TrimSpace(preferred))
	idx := -1
	if name != "" {
		for i, c := range defaults {
			if strings.ToLower(c.Name) == name {
				idx = i
				break
			}
		}
	}
	if idx >= 0 {
		out = append(out, cloneIdentity(defaults[idx]))
	}
	for i, c := range defaults {
		if i == idx {
			continue
		}
		out = append(out, cloneIdentity(c))
	}
	return out
}

func cloneIdentity(c model.ClientIdentity) model.ClientIdentity {
	if c.ExtraArguments != nil {
		c.ExtraArguments = append([]string(nil), c.ExtraArguments...)
	}
	return c
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clients: map[string]string{}}
}

func (m *MemoryStore) PreferredClient(itemKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[itemKey], nil
}

func (m *MemoryStore) RecordClient(itemKey, client string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[itemKey] = client
	return nil
}
