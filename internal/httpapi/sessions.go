package httpapi

import (
	"slices"
	"strings"
	"sync"

	"lmhost/internal/languagemodel"
	"lmhost/pkg/types"
)

// sessionStore holds the live sessions addressed by /sessions/{id}.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*languagemodel.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*languagemodel.Session)}
}

func (st *sessionStore) put(s *languagemodel.Session) {
	st.mu.Lock()
	st.sessions[s.ID()] = s
	st.mu.Unlock()
}

func (st *sessionStore) get(id string) (*languagemodel.Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	return s, ok
}

// remove destroys and forgets the session; unknown ids are ignored.
func (st *sessionStore) remove(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.Destroy()
	}
}

func (st *sessionStore) len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// list returns sessions ordered by creation time.
func (st *sessionStore) list() []*languagemodel.Session {
	st.mu.RLock()
	out := make([]*languagemodel.Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	st.mu.RUnlock()
	slices.SortFunc(out, func(a, b *languagemodel.Session) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}

// closeAll destroys every session.
func (st *sessionStore) closeAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*languagemodel.Session)
	st.mu.Unlock()
	for _, s := range all {
		s.Destroy()
	}
}

func sessionResponse(s *languagemodel.Session) types.SessionResponse {
	return types.SessionResponse{
		ID:             s.ID(),
		Model:          s.Model(),
		Temperature:    s.Temperature(),
		TopK:           s.TopK(),
		InputUsage:     s.InputUsage(),
		InputQuota:     s.InputQuota(),
		ExpectedInputs: s.ExpectedInputs(),
		CreatedUnix:    s.CreatedAt().Unix(),
	}
}
