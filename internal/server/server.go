// Package server serves a previously exported session as a small read-only
// report site: the rendered HTML report plus JSON endpoints for the raw
// document, the clustered legs, and the radial layout.
package server

import (
	"net/http"

	"github.com/sp1nlock/legwork/internal/utils"
	"github.com/sp1nlock/legwork/pkg/export"
)

type Server struct {
	Doc      export.Document
	Username string
	Password string
}

func New(doc export.Document, user, pass string) *Server {
	return &Server{
		Doc:      doc,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Start(addr string) error {
	utils.Log.Infof("Report server for %q running on http://%s", s.Doc.Username, addr)
	if s.Username == "" && s.Password == "" {
		utils.Log.Warn("No credentials configured, the report is open to anyone who can reach this address")
	}
	return http.ListenAndServe(addr, s.Handler())
}

// Handler builds the route table. Split from Start so tests can drive it
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.basicAuth(s.handleReportHTML))
	mux.HandleFunc("GET /api/report", s.basicAuth(s.handleReportJSON))
	mux.HandleFunc("GET /api/legs", s.basicAuth(s.handleLegs))
	mux.HandleFunc("GET /api/layout", s.basicAuth(s.handleLayout))
	return mux
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
