// internal/session/registry.go
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jason-s-yu/wizard/internal/models"
	"github.com/jason-s-yu/wizard/internal/protocol"
)

var (
	ErrRegistryFull = errors.New("the server is full")
	ErrDuplicateID  = errors.New("session already registered")
)

// Registry holds the accepted sessions of the match, in order of acceptance.
type Registry struct {
	mu       sync.Mutex
	capacity int
	sessions map[models.SessionID]*Session
	order    []models.SessionID
}

// NewRegistry returns an empty registry for capacity players.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		sessions: make(map[models.SessionID]*Session),
	}
}

// Add registers an accepted session.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.capacity {
		return ErrRegistryFull
	}
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, s.ID)
	}
	if r.usernameTakenLocked(s.Username()) {
		return fmt.Errorf("%w: %s", ErrTakenUsername, s.Username())
	}
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	return nil
}

// Admit registers s and tells everyone about it. The new user first receives
// its own NewUser, then one per user already present; the others receive the newcomer.
func (r *Registry) Admit(s *Session) error {
	existing := r.Sessions()
	if err := r.Add(s); err != nil {
		return err
	}
	s.SendMsg(protocol.NewUserNotice{Username: s.Username()})
	for _, other := range existing {
		s.SendMsg(protocol.NewUserNotice{Username: other.Username()})
	}
	r.BroadcastToOthers(s.ID, protocol.NewUserNotice{Username: s.Username()})
	return nil
}

// Remove drops a session. Returns false if it was not registered.
func (r *Registry) Remove(id models.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get retrieves a registered session.
func (r *Registry) Get(id models.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Capacity() int {
	return r.capacity
}

func (r *Registry) IsFull() bool {
	return r.Count() >= r.capacity
}

// UsernameTaken compares case-insensitively against registered usernames.
func (r *Registry) UsernameTaken(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usernameTakenLocked(name)
}

func (r *Registry) usernameTakenLocked(name string) bool {
	for _, s := range r.sessions {
		if strings.EqualFold(s.Username(), name) {
			return true
		}
	}
	return false
}

// Sessions returns a snapshot in order of acceptance.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

// Send writes msg to one registered session.
func (r *Registry) Send(id models.SessionID, msg protocol.Outbound) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	return s.SendMsg(msg)
}

// BroadcastToAll writes msg to every registered session.
func (r *Registry) BroadcastToAll(msg protocol.Outbound) {
	r.broadcast(msg, nil)
}

// BroadcastToOthers writes msg to every registered session except exclude.
func (r *Registry) BroadcastToOthers(exclude models.SessionID, msg protocol.Outbound) {
	r.broadcast(msg, func(s *Session) bool { return s.ID == exclude })
}

// broadcast iterates a snapshot; sessions whose connection is gone are skipped.
func (r *Registry) broadcast(msg protocol.Outbound, skip func(*Session) bool) {
	line := protocol.Encode(msg)
	for _, s := range r.Sessions() {
		if skip != nil && skip(s) {
			continue
		}
		if !s.Send(line) {
			s.Logger().WithField("message", msg.Kind()).Debug("skipped unreachable session")
		}
	}
}
