// Package results holds the per-platform availability results of a running
// search, keyed by platform name. The store is the single source of truth
// the phase machine and the profile resolver read from.
package results

import (
	"strings"

	"github.com/sp1nlock/legwork/pkg/catalog"
)

// Status is the outcome of probing one platform for the subject handle.
type Status string

const (
	StatusChecking    Status = "checking"
	StatusFound       Status = "found"
	StatusNotFound    Status = "not_found"
	StatusUnknown     Status = "unknown"
	StatusBlocked     Status = "blocked"
	StatusTimeout     Status = "timeout"
	StatusRateLimited Status = "rate_limited"
	StatusServerError Status = "server_error"
	StatusRedirect    Status = "redirect"
	StatusError       Status = "error"
)

// Terminal reports whether a status is final for the session. Everything
// except checking is terminal: once a probe resolved, only another resolved
// outcome may replace it.
func (s Status) Terminal() bool {
	return s != StatusChecking && s != ""
}

// ParseStatus maps a wire-level state string to a Status. Unrecognized
// strings collapse to unknown rather than failing the whole record.
func ParseStatus(state string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(state))) {
	case StatusChecking, StatusFound, StatusNotFound, StatusUnknown,
		StatusBlocked, StatusTimeout, StatusRateLimited,
		StatusServerError, StatusRedirect, StatusError:
		return Status(strings.ToLower(strings.TrimSpace(state)))
	default:
		return StatusUnknown
	}
}

// Record is the availability result for one platform.
type Record struct {
	Platform    string  `json:"platform"`
	URL         string  `json:"url"`
	Status      Status  `json:"status"`
	StatusCode  int     `json:"status_code,omitempty"`
	ViaProxy    bool    `json:"via_proxy,omitempty"`
	LatencyMs   float64 `json:"latency_ms,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Bio         string  `json:"bio,omitempty"`
	Avatar      string  `json:"avatar,omitempty"`
}

// Store keeps at most one Record per platform, preserving first-seen
// insertion order for snapshots. It is not safe for concurrent use; the
// session controller serializes access.
type Store struct {
	order []string
	byKey map[string]Record
}

func NewStore() *Store {
	return &Store{byKey: make(map[string]Record)}
}

func key(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// Upsert inserts or replaces the record for its platform. A checking
// record never overwrites a terminal one: a probe that already resolved
// must not be dragged back in flight by a stale message.
func (s *Store) Upsert(r Record) {
	k := key(r.Platform)
	if k == "" {
		return
	}
	if existing, ok := s.byKey[k]; ok {
		if r.Status == StatusChecking && existing.Status.Terminal() {
			return
		}
		s.byKey[k] = r
		return
	}
	s.order = append(s.order, k)
	s.byKey[k] = r
}

// Reset clears all entries and seeds one checking placeholder per catalog
// platform for the given subject.
func (s *Store) Reset(subject string) {
	s.order = s.order[:0]
	s.byKey = make(map[string]Record)
	for _, p := range catalog.Platforms() {
		s.Upsert(Record{
			Platform: p.Name,
			URL:      catalog.ProfileURL(p.Name, subject),
			Status:   StatusChecking,
		})
	}
}

// Snapshot returns the current records in first-seen order.
func (s *Store) Snapshot() []Record {
	out := make([]Record, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKey[k])
	}
	return out
}

// Get returns the record for a platform, if present.
func (s *Store) Get(platform string) (Record, bool) {
	r, ok := s.byKey[key(platform)]
	return r, ok
}

// Len returns the number of tracked platforms.
func (s *Store) Len() int {
	return len(s.order)
}

// Found returns the records with status found, in snapshot order.
func (s *Store) Found() []Record {
	var out []Record
	for _, k := range s.order {
		if r := s.byKey[k]; r.Status == StatusFound {
			out = append(out, r)
		}
	}
	return out
}

// AnyChecking reports whether any platform is still in flight.
func (s *Store) AnyChecking() bool {
	for _, r := range s.byKey {
		if r.Status == StatusChecking {
			return true
		}
	}
	return false
}

// SweepChecking downgrades every checking entry to unknown and returns how
// many were swept. Closing a stream must never leave a platform stuck in
// checking.
func (s *Store) SweepChecking() int {
	swept := 0
	for k, r := range s.byKey {
		if r.Status == StatusChecking {
			r.Status = StatusUnknown
			s.byKey[k] = r
			swept++
		}
	}
	return swept
}
