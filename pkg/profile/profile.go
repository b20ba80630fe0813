// Package profile materializes the read-only resolved view of found
// availability records once the profile-check phase has been committed.
package profile

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sp1nlock/legwork/pkg/catalog"
	"github.com/sp1nlock/legwork/pkg/results"
)

const placeholderBio = "No public bio available."

// Resolved is one confirmed profile for the subject.
type Resolved struct {
	Platform    string `json:"platform"`
	URL         string `json:"url"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Avatar      string `json:"avatar"`
	Category    string `json:"category"`
}

// Resolve turns found records into resolved profiles, deduplicated by
// (platform, url). Order follows the input.
func Resolve(found []results.Record, subject string) []Resolved {
	seen := make(map[string]struct{}, len(found))
	out := make([]Resolved, 0, len(found))
	for _, r := range found {
		if r.Status != results.StatusFound {
			continue
		}
		key := strings.ToLower(r.Platform) + "|" + strings.ToLower(r.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		name := strings.TrimSpace(r.DisplayName)
		if name == "" {
			name = fmt.Sprintf("%s • %s", subject, r.Platform)
		}
		bio := strings.TrimSpace(r.Bio)
		if bio == "" {
			bio = placeholderBio
		}

		out = append(out, Resolved{
			Platform:    r.Platform,
			URL:         r.URL,
			DisplayName: name,
			Bio:         bio,
			Avatar:      normalizeAvatar(r.Avatar, name),
			Category:    catalog.Lookup(r.Platform),
		})
	}
	return out
}

// normalizeAvatar passes through http(s) and data URIs and synthesizes an
// inline SVG initial for everything else, so renderers never have to deal
// with a missing or junk avatar reference.
func normalizeAvatar(avatar, displayName string) string {
	a := strings.TrimSpace(avatar)
	if a != "" {
		if strings.HasPrefix(a, "data:") {
			return a
		}
		if u, err := url.Parse(a); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			return a
		}
	}
	initial := "?"
	for _, r := range strings.TrimSpace(displayName) {
		initial = strings.ToUpper(string(r))
		break
	}
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64"><rect width="64" height="64" fill="#444"/><text x="32" y="40" font-size="28" text-anchor="middle" fill="#fff">%s</text></svg>`, initial)
	return "data:image/svg+xml;utf8," + url.PathEscape(svg)
}
