package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sp1nlock/legwork/pkg/cluster"
	"github.com/sp1nlock/legwork/pkg/export"
	"github.com/sp1nlock/legwork/pkg/layout"
	"github.com/sp1nlock/legwork/pkg/rank"
)

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := export.WriteHTML(w, s.Doc); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Doc)
}

// RankedProfile is one profile of a leg together with its match score.
type RankedProfile struct {
	Platform    string `json:"platform"`
	URL         string `json:"url"`
	DisplayName string `json:"display_name"`
	Rank        int    `json:"rank"`
	Score       int    `json:"score"`
}

type LegView struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Source   string          `json:"source"`
	Kind     string          `json:"kind"`
	Reason   string          `json:"reason,omitempty"`
	Profiles []RankedProfile `json:"profiles"`
}

func (s *Server) legs(r *http.Request) []cluster.Leg {
	mode := cluster.ParseMode(r.URL.Query().Get("mode"))
	subject := cluster.Subject{Username: s.Doc.Username, Email: s.Doc.Email}
	legs := cluster.Build(s.Doc.Profiles, subject, mode)
	if mode == cluster.ModeByCategory {
		// Category legs carry no precedence of their own; show the
		// biggest first.
		cluster.SortLegsStable(legs)
	}
	rank.SortLegs(legs, subject)
	return legs
}

func (s *Server) handleLegs(w http.ResponseWriter, r *http.Request) {
	subject := cluster.Subject{Username: s.Doc.Username, Email: s.Doc.Email}
	out := []LegView{}
	for _, leg := range s.legs(r) {
		view := LegView{
			ID:       leg.ID,
			Label:    leg.Label,
			Source:   string(leg.Source),
			Kind:     string(leg.Kind),
			Reason:   leg.Reason,
			Profiles: []RankedProfile{},
		}
		for i, p := range leg.Profiles {
			view.Profiles = append(view.Profiles, RankedProfile{
				Platform:    p.Platform,
				URL:         p.URL,
				DisplayName: p.DisplayName,
				Rank:        i,
				Score:       rank.Score(p, subject),
			})
		}
		out = append(out, view)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	cfg := layout.Config{
		CanvasWidth:  queryFloat(r, "width", 800),
		CanvasHeight: queryFloat(r, "height", 600),
		BaseRadius:   queryFloat(r, "radius", 120),
		RingGap:      queryFloat(r, "gap", 40),
	}
	nodes := layout.Project(cfg, s.Doc.Username, s.legs(r))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nodes)
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
