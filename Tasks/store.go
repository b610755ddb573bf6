package Tasks

import (
	"context"
	"strings"
	"sync"

	"Anvil/Models"
)

// SessionFactory builds a fresh session for a caller.
type SessionFactory func(caller Models.RoleContext, anchor string) *Session

// SessionStore keeps one session per user.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  SessionFactory
}

func NewSessionStore(factory SessionFactory) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

func sessionKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Open returns the caller's session anchored at anchor, reconciling it. An
// existing session is re-anchored; one opened under a different role is
// replaced.
func (st *SessionStore) Open(ctx context.Context, caller Models.RoleContext, anchor string) (*Session, Snapshot, error) {
	key := sessionKey(caller.Username)

	st.mu.Lock()
	session, ok := st.sessions[key]
	if ok && session.Caller() != caller {
		session.Close()
		ok = false
	}
	if !ok {
		session = st.factory(caller, anchor)
		st.sessions[key] = session
	}
	st.mu.Unlock()

	if ok {
		snap, err := session.SetAnchor(ctx, anchor)
		return session, snap, err
	}
	snap, err := session.Reconcile(ctx)
	return session, snap, err
}

// Get returns the caller's session if one is open under the same role.
func (st *SessionStore) Get(caller Models.RoleContext) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.sessions[sessionKey(caller.Username)]
	if !ok || session.Caller() != caller {
		return nil, false
	}
	return session, true
}

// Close ends the caller's session. It reports whether one was open.
func (st *SessionStore) Close(caller Models.RoleContext) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	key := sessionKey(caller.Username)
	session, ok := st.sessions[key]
	if !ok {
		return false
	}
	session.Close()
	delete(st.sessions, key)
	return true
}

// CloseAll ends every session, used on shutdown.
func (st *SessionStore) CloseAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for key, session := range st.sessions {
		session.Close()
		delete(st.sessions, key)
	}
}
