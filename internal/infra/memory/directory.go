package memory

import (
	"context"
	"sync"
)

// Membership is a static group membership table, useful for tests and demos.
type Membership struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
}

func NewMembership() *Membership {
	return &Membership{members: make(map[string]map[string]struct{})}
}

// Add registers uid as a member of groupRef.
func (m *Membership) Add(groupRef, uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[groupRef]; !ok {
		m.members[groupRef] = make(map[string]struct{})
	}
	m.members[groupRef][uid] = struct{}{}
}

func (m *Membership) IsMember(_ context.Context, groupRef, principal string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[groupRef][principal]
	return ok, nil
}

// StaticNames is a fixed uid -> display name source.
type StaticNames map[string]string

func (n StaticNames) LookupName(_ context.Context, uid string) (string, error) {
	return n[uid], nil
}
