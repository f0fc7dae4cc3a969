package server

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/reportal-io/reportal/internal/report"
)

const sessionName = "reportal"

// builderRegistry holds the live builder sessions keyed by the id stored in
// the session cookie. Builders are in-memory only; a lost cookie means a
// fresh draft.
type builderRegistry struct {
	mu       sync.Mutex
	builders map[string]*report.Builder
}

func newBuilderRegistry() *builderRegistry {
	return &builderRegistry{builders: make(map[string]*report.Builder)}
}

func (r *builderRegistry) get(id string) *report.Builder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builders[id]
}

func (r *builderRegistry) put(id string, b *report.Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[id] = b
}

func (r *builderRegistry) remove(id string) *report.Builder {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.builders[id]
	delete(r.builders, id)
	return b
}

// builderForRequest returns the builder session bound to the request cookie,
// creating a new one when absent.
func (s *Server) builderForRequest(w http.ResponseWriter, r *http.Request) (*report.Builder, error) {
	sess, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		// A corrupt cookie means a fresh session, not a failure.
		sess, _ = s.sessionStore.New(r, sessionName)
	}

	id, _ := sess.Values["builder_id"].(string)
	if id != "" {
		if b := s.builders.get(id); b != nil {
			return b, nil
		}
	}

	id = uuid.NewString()
	b := report.NewBuilder(s.catalog, s.query, s.store, s.logger)
	s.builders.put(id, b)

	sess.Values["builder_id"] = id
	if err := sess.Save(r, w); err != nil {
		s.builders.remove(id)
		return nil, err
	}
	return b, nil
}

// closeBuilder tears down the builder bound to the request cookie, if any.
func (s *Server) closeBuilder(r *http.Request) {
	sess, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		return
	}
	id, _ := sess.Values["builder_id"].(string)
	if id == "" {
		return
	}
	if b := s.builders.remove(id); b != nil {
		b.Close()
	}
}
