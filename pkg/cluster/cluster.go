// Package cluster groups resolved profiles into "legs": clusters of
// profiles believed to share one identity-linking signal (the subject's
// username, a mined email address, a reused display name, or a category).
package cluster

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/sp1nlock/legwork/internal/utils"
	"github.com/sp1nlock/legwork/pkg/profile"
)

// Source names the signal that formed a leg.
type Source string

const (
	SourceUsername Source = "username"
	SourceEmail    Source = "email"
	SourceProfile  Source = "profile"
	SourceCategory Source = "category"
	SourceUnlinked Source = "unlinked"
)

// Kind is the coarse grouping used by presentation layers.
type Kind string

const (
	KindIdentity Kind = "identity"
	KindCategory Kind = "category"
	KindUnlinked Kind = "unlinked"
)

// Mode selects the clustering strategy.
type Mode string

const (
	// ModeBySignal is the default: username, then mined emails, then
	// reused display names, then a catch-all.
	ModeBySignal Mode = "by-signal"
	// ModeByCategory produces one leg per category value.
	ModeByCategory Mode = "by-category"
)

// ParseMode maps a flag value to a Mode, defaulting to by-signal.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeByCategory {
		return ModeByCategory
	}
	return ModeBySignal
}

// Leg is one cluster of profiles sharing a signal.
type Leg struct {
	ID       string             `json:"id"`
	Label    string             `json:"label"`
	Source   Source             `json:"source"`
	Kind     Kind               `json:"kind"`
	Reason   string             `json:"reason"`
	Profiles []profile.Resolved `json:"profiles"`
}

// Subject carries the search pivots used for signal matching.
type Subject struct {
	Username string
	Email    string
}

var emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

// strictSuffix disables the PSL wildcard default rule so that made-up TLDs
// do not validate.
var strictSuffix = &publicsuffix.FindOptions{IgnorePrivate: false, DefaultRule: nil}

func validDomain(domain string) bool {
	_, err := publicsuffix.DomainFromListWithOptions(publicsuffix.DefaultList, domain, strictSuffix)
	return err == nil
}

// MineEmails extracts every distinct email address found in the bios and
// display names of the profile set, lowercased, in first-seen order.
// Addresses whose domain has no registrable public suffix are discarded.
func MineEmails(profiles []profile.Resolved) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range profiles {
		for _, text := range []string{p.Bio, p.DisplayName} {
			for _, match := range emailRe.FindAllString(text, -1) {
				addr := strings.ToLower(match)
				if _, dup := seen[addr]; dup {
					continue
				}
				at := strings.LastIndex(addr, "@")
				if !validDomain(addr[at+1:]) {
					utils.Log.Debugf("discarding mined address with bogus domain: %s", addr)
					continue
				}
				seen[addr] = struct{}{}
				out = append(out, addr)
			}
		}
	}
	return out
}

// Build assigns every profile to exactly one leg and returns the legs that
// ended up non-empty, in creation order.
func Build(profiles []profile.Resolved, subject Subject, mode Mode) []Leg {
	if mode == ModeByCategory {
		return buildByCategory(profiles)
	}
	return buildBySignal(profiles, subject)
}

func buildByCategory(profiles []profile.Resolved) []Leg {
	byCat := make(map[string][]profile.Resolved)
	var order []string
	for _, p := range profiles {
		cat := p.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		if _, ok := byCat[cat]; !ok {
			order = append(order, cat)
		}
		byCat[cat] = append(byCat[cat], p)
	}

	legs := make([]Leg, 0, len(order))
	for _, cat := range order {
		legs = append(legs, Leg{
			ID:       "leg-category-" + slug(cat),
			Label:    cat,
			Source:   SourceCategory,
			Kind:     KindCategory,
			Reason:   fmt.Sprintf("%d profile(s) in category %q", len(byCat[cat]), cat),
			Profiles: byCat[cat],
		})
	}
	return legs
}

func buildBySignal(profiles []profile.Resolved, subject Subject) []Leg {
	username := strings.TrimSpace(subject.Username)

	// The email leg set is fixed before the assignment pass runs.
	mined := MineEmails(profiles)
	emailLegIdx := make(map[string]int, len(mined))

	var legs []Leg
	usernameIdx := -1
	if username != "" {
		usernameIdx = len(legs)
		legs = append(legs, Leg{
			ID:     "leg-username-" + slug(username),
			Label:  "Username: " + username,
			Source: SourceUsername,
			Kind:   KindIdentity,
			Reason: fmt.Sprintf("profile text or URL contains the handle %q", username),
		})
	}
	for _, addr := range mined {
		emailLegIdx[addr] = len(legs)
		legs = append(legs, Leg{
			ID:     "leg-email-" + slug(addr),
			Label:  "Email: " + addr,
			Source: SourceEmail,
			Kind:   KindIdentity,
			Reason: fmt.Sprintf("profile text mentions %s", addr),
		})
	}

	// Display names shared by two or more profiles form their own legs.
	nameCount := make(map[string]int)
	for _, p := range profiles {
		nameCount[normalizeName(p.DisplayName)]++
	}
	nameLegIdx := make(map[string]int)

	unlinkedIdx := -1
	unlinked := func() int {
		if unlinkedIdx < 0 {
			unlinkedIdx = len(legs)
			legs = append(legs, Leg{
				ID:     "leg-unlinked",
				Label:  "Unlinked",
				Source: SourceUnlinked,
				Kind:   KindUnlinked,
				Reason: "no identity signal matched",
			})
		}
		return unlinkedIdx
	}

	for _, p := range profiles {
		var idx int
		emailIdx := matchEmailLeg(p, emailLegIdx)
		switch {
		case usernameIdx >= 0 && matchesUsername(p, username):
			idx = usernameIdx
		case emailIdx >= 0:
			idx = emailIdx
		case nameCount[normalizeName(p.DisplayName)] >= 2:
			norm := normalizeName(p.DisplayName)
			if existing, ok := nameLegIdx[norm]; ok {
				idx = existing
			} else {
				idx = len(legs)
				nameLegIdx[norm] = idx
				legs = append(legs, Leg{
					ID:     "leg-name-" + slug(norm),
					Label:  "Reused name: " + strings.TrimSpace(p.DisplayName),
					Source: SourceProfile,
					Kind:   KindIdentity,
					Reason: fmt.Sprintf("display name %q reused across platforms", strings.TrimSpace(p.DisplayName)),
				})
			}
		default:
			idx = unlinked()
		}
		legs[idx].Profiles = append(legs[idx].Profiles, p)
	}

	// Only non-empty legs are surfaced.
	out := legs[:0]
	for _, leg := range legs {
		if len(leg.Profiles) > 0 {
			out = append(out, leg)
		}
	}
	return out
}

func matchesUsername(p profile.Resolved, username string) bool {
	return utils.ContainsFold(p.DisplayName, username) ||
		utils.ContainsFold(p.Bio, username) ||
		utils.ContainsFold(p.URL, username)
}

// matchEmailLeg returns the leg index for the first mined address found in
// the profile's bio or display name, or -1.
func matchEmailLeg(p profile.Resolved, legIdx map[string]int) int {
	best := -1
	for _, match := range emailRe.FindAllString(p.Bio+" "+p.DisplayName, -1) {
		if idx, ok := legIdx[strings.ToLower(match)]; ok {
			if best < 0 || idx < best {
				best = idx
			}
		}
	}
	return best
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if s == "" {
		return "x"
	}
	return s
}

// SortLegsStable is a helper for presentation layers that want category
// legs ordered by size, largest first, without disturbing equal-size order.
func SortLegsStable(legs []Leg) {
	sort.SliceStable(legs, func(i, j int) bool {
		return len(legs[i].Profiles) > len(legs[j].Profiles)
	})
}
