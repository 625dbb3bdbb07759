// Package forgetest runs a fake code forge for tests.
//
// The server speaks just enough of the GitHub (/api/repos/...) and Gitea
// (/api/v1/repos/...) APIs to list tags and releases, and serves release
// archives under the usual web paths.
package forgetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Release is a release entry served by the fake forge.
type Release struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
}

type tag struct {
	Name string `json:"name"`
}

// Server is a fake forge. Its zero value is unusable; call New.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	tags          []tag
	releases      []Release
	files         map[string][]byte
	listingStatus int
	listingDelay  time.Duration
	hits          map[string]int
}

// New starts a fake forge and stops it when the test ends.
func New(tb testing.TB) *Server {
	tb.Helper()

	s := &Server{
		files: make(map[string][]byte),
		hits:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/repos/{owner}/{repo}/{listing}", s.listing)
	r.Get("/api/v1/repos/{owner}/{repo}/{listing}", s.listing)
	r.Get("/{owner}/{repo}/archive/refs/tags/{file}", s.file)
	r.Get("/{owner}/{repo}/archive/{file}", s.file)
	r.Get("/{owner}/{repo}/releases/download/{tag}/{file}", s.file)

	s.Server = httptest.NewServer(r)
	tb.Cleanup(s.Close)

	return s
}

// RepositoryURL returns the web URL of the fake acme/demo repository.
func (s *Server) RepositoryURL() string {
	return s.URL + "/acme/demo"
}

// GitHubAPIRoot is the APIRoot to give the GitHub dialect.
func (s *Server) GitHubAPIRoot() string {
	return s.URL + "/api"
}

// SetTags replaces the tag listing, newest first.
func (s *Server) SetTags(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tags = s.tags[:0]
	for _, name := range names {
		s.tags = append(s.tags, tag{Name: name})
	}
}

// SetReleases replaces the release listing, newest first.
func (s *Server) SetReleases(releases ...Release) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releases = append([]Release(nil), releases...)
}

// SetFile serves body for every route whose last segment is name.
func (s *Server) SetFile(name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[name] = append([]byte(nil), body...)
}

// FailListings makes listing endpoints answer with status. Zero restores them.
func (s *Server) FailListings(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listingStatus = status
}

// DelayListings holds every listing response for d.
func (s *Server) DelayListings(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listingDelay = d
}

// Hits returns how many requests reached the route of the given kind:
// "tags", "releases" or a file name.
func (s *Server) Hits(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[kind]
}

func (s *Server) listing(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "listing")

	s.mu.Lock()
	s.hits[kind]++
	status, delay := s.listingStatus, s.listingDelay

	var payload any

	switch kind {
	case "tags":
		payload = append([]tag{}, s.tags...)
	case "releases":
		payload = append([]Release{}, s.releases...)
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if payload == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")

	s.mu.Lock()
	s.hits[name]++
	body, ok := s.files[name]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(body)
}
