package cluster

import (
	"reflect"
	"testing"

	"github.com/sp1nlock/legwork/pkg/profile"
)

func prof(platform, url, name, bio string) profile.Resolved {
	return profile.Resolved{
		Platform:    platform,
		URL:         url,
		DisplayName: name,
		Bio:         bio,
		Category:    "Other",
	}
}

func legByID(t *testing.T, legs []Leg, id string) Leg {
	t.Helper()
	for _, l := range legs {
		if l.ID == id {
			return l
		}
	}
	t.Fatalf("no leg with id %s in %v", id, legIDs(legs))
	return Leg{}
}

func legIDs(legs []Leg) []string {
	out := make([]string, len(legs))
	for i, l := range legs {
		out[i] = l.ID
	}
	return out
}

func TestMineEmails(t *testing.T) {
	profiles := []profile.Resolved{
		prof("a", "", "x", "reach me at Alice@Example.com or alice@example.com"),
		prof("b", "", "bob@mail.example.org", ""),
		prof("c", "", "x", "junk@localhost and user@invalid.tldthatisnotreal"),
	}
	got := MineEmails(profiles)
	want := []string{"alice@example.com", "bob@mail.example.org"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MineEmails = %v, want %v", got, want)
	}
}

func TestBySignalScenario(t *testing.T) {
	// Subject handle in one bio, a mined address in another; Unlinked
	// stays empty.
	profiles := []profile.Resolved{
		prof("site-a", "https://site-a.example/u/1", "Someone", "alice here"),
		prof("site-b", "https://site-b.example/u/2", "Other", "contact blue.heron@example.com"),
	}
	legs := Build(profiles, Subject{Username: "alice"}, ModeBySignal)

	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %v", legIDs(legs))
	}
	u := legByID(t, legs, "leg-username-alice")
	if len(u.Profiles) != 1 || u.Profiles[0].Platform != "site-a" {
		t.Fatalf("username leg wrong: %+v", u.Profiles)
	}
	e := legByID(t, legs, "leg-email-blue-heron-example-com")
	if len(e.Profiles) != 1 || e.Profiles[0].Platform != "site-b" {
		t.Fatalf("email leg wrong: %+v", e.Profiles)
	}
	for _, l := range legs {
		if l.Source == SourceUnlinked {
			t.Fatal("empty unlinked leg must not be surfaced")
		}
	}
}

func TestUsernamePrecedenceOverEmail(t *testing.T) {
	// A bio containing both the handle and a mined email goes to the
	// username leg; with no other carrier the email leg stays empty and
	// is not surfaced.
	profiles := []profile.Resolved{
		prof("site-a", "https://a.example/u/1", "Someone", "alice, mail alice@example.com"),
	}
	legs := Build(profiles, Subject{Username: "alice"}, ModeBySignal)

	u := legByID(t, legs, "leg-username-alice")
	if len(u.Profiles) != 1 || u.Profiles[0].Platform != "site-a" {
		t.Fatalf("username leg wrong: %+v", u.Profiles)
	}
	for _, l := range legs {
		if l.ID == "leg-email-alice-example-com" {
			t.Fatal("site-a leaked into the email leg")
		}
	}
}

func TestReusedDisplayNameLeg(t *testing.T) {
	profiles := []profile.Resolved{
		prof("site-a", "https://a.example/u/1", "Cool Alice", "nothing"),
		prof("site-b", "https://b.example/u/2", "cool alice ", "nothing either"),
	}
	legs := Build(profiles, Subject{}, ModeBySignal)
	if len(legs) != 1 {
		t.Fatalf("expected one reused-name leg, got %v", legIDs(legs))
	}
	if legs[0].Source != SourceProfile || len(legs[0].Profiles) != 2 {
		t.Fatalf("unexpected leg: %+v", legs[0])
	}
}

func TestUnlinkedCatchAll(t *testing.T) {
	profiles := []profile.Resolved{
		prof("site-a", "https://a.example/u/1", "Anon One", "hi"),
		prof("site-b", "https://b.example/u/2", "Anon Two", "yo"),
	}
	legs := Build(profiles, Subject{Username: "zzz-no-match"}, ModeBySignal)
	if len(legs) != 1 || legs[0].Source != SourceUnlinked {
		t.Fatalf("expected a single unlinked leg, got %v", legIDs(legs))
	}
	if len(legs[0].Profiles) != 2 {
		t.Fatalf("unlinked leg incomplete: %+v", legs[0].Profiles)
	}
}

func TestPartitionProperty(t *testing.T) {
	profiles := []profile.Resolved{
		prof("a", "https://a.example/alice", "Alice", "alice here"),
		prof("b", "https://b.example/u", "Cool Alice", "write me: bob@example.com"),
		prof("c", "https://c.example/u", "Cool Alice", ""),
		prof("d", "https://d.example/u", "Nobody", "bob@example.com"),
		prof("e", "https://e.example/u", "Loner", "nothing"),
	}
	legs := Build(profiles, Subject{Username: "alice"}, ModeBySignal)

	assigned := make(map[string]int)
	total := 0
	for _, leg := range legs {
		for _, p := range leg.Profiles {
			assigned[p.Platform]++
			total++
		}
	}
	if total != len(profiles) {
		t.Fatalf("union of legs has %d profiles, want %d (%v)", total, len(profiles), legIDs(legs))
	}
	for platform, n := range assigned {
		if n != 1 {
			t.Fatalf("profile %s assigned to %d legs", platform, n)
		}
	}
}

func TestByCategoryMode(t *testing.T) {
	p1 := prof("GitHub", "https://github.com/a", "A", "")
	p1.Category = "Developer"
	p2 := prof("GitLab", "https://gitlab.com/a", "A", "")
	p2.Category = "Developer"
	p3 := prof("X", "https://x.com/a", "A", "")
	p3.Category = "Social"
	p4 := prof("Mystery", "https://m.example/a", "A", "")
	p4.Category = ""

	legs := Build([]profile.Resolved{p1, p2, p3, p4}, Subject{Username: "a"}, ModeByCategory)
	if len(legs) != 3 {
		t.Fatalf("expected 3 category legs, got %v", legIDs(legs))
	}
	dev := legByID(t, legs, "leg-category-developer")
	if len(dev.Profiles) != 2 {
		t.Fatalf("developer leg has %d profiles", len(dev.Profiles))
	}
	legByID(t, legs, "leg-category-uncategorized")
	for _, l := range legs {
		if l.Source == SourceUnlinked {
			t.Fatal("category mode must not populate an unlinked leg")
		}
	}
}

func TestBuildEmptyInput(t *testing.T) {
	if legs := Build(nil, Subject{Username: "alice"}, ModeBySignal); len(legs) != 0 {
		t.Fatalf("empty input produced legs: %v", legIDs(legs))
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("by-category") != ModeByCategory {
		t.Fatal("by-category not parsed")
	}
	if ParseMode("anything-else") != ModeBySignal {
		t.Fatal("default mode is by-signal")
	}
}

func TestSortLegsStable(t *testing.T) {
	legs := []Leg{
		{ID: "a", Profiles: []profile.Resolved{prof("p1", "", "", "")}},
		{ID: "b", Profiles: []profile.Resolved{prof("p2", "", "", ""), prof("p3", "", "", "")}},
		{ID: "c", Profiles: []profile.Resolved{prof("p4", "", "", "")}},
	}
	SortLegsStable(legs)
	got := legIDs(legs)
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v (largest first, ties keep input order)", got, want)
	}
}
