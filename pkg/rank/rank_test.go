package rank

import (
	"testing"

	"github.com/sp1nlock/legwork/pkg/cluster"
	"github.com/sp1nlock/legwork/pkg/profile"
)

func TestScoreTable(t *testing.T) {
	subject := cluster.Subject{Username: "alice", Email: "alice@example.com"}
	tests := []struct {
		name     string
		p        profile.Resolved
		expected int
	}{
		{
			"no match",
			profile.Resolved{DisplayName: "Bob", Bio: "hi", URL: "https://b.example/u"},
			0,
		},
		{
			"username in name",
			profile.Resolved{DisplayName: "Alice B", Bio: "", URL: ""},
			3,
		},
		{
			"username in bio and url",
			profile.Resolved{DisplayName: "", Bio: "I am alice", URL: "https://x.example/alice"},
			4,
		},
		{
			"email in bio",
			profile.Resolved{DisplayName: "", Bio: "mail alice@example.com", URL: ""},
			// the email substring also contains the username
			2 + 3,
		},
		{
			"everything everywhere",
			profile.Resolved{
				DisplayName: "alice alice@example.com",
				Bio:         "alice alice@example.com",
				URL:         "https://e.example/alice?c=alice@example.com",
			},
			3 + 2 + 2 + 3 + 3 + 2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.p, subject); got != tc.expected {
				t.Fatalf("Score = %d, want %d", got, tc.expected)
			}
		})
	}
}

func TestScoreAbsentPivots(t *testing.T) {
	p := profile.Resolved{DisplayName: "alice", Bio: "alice@example.com"}
	if got := Score(p, cluster.Subject{}); got != 0 {
		t.Fatalf("empty subject scored %d", got)
	}
}

func TestMonotonicEmailEvidence(t *testing.T) {
	subject := cluster.Subject{Email: "alice@example.com"}
	withEmail := profile.Resolved{DisplayName: "Same", Bio: "write alice@example.com", URL: "https://a.example"}
	without := profile.Resolved{DisplayName: "Same", Bio: "write someone else", URL: "https://a.example"}
	if Score(withEmail, subject) <= Score(without, subject) {
		t.Fatalf("Score(with)=%d not greater than Score(without)=%d",
			Score(withEmail, subject), Score(without, subject))
	}
}

func TestSortLegStableTies(t *testing.T) {
	subject := cluster.Subject{Username: "alice"}
	leg := cluster.Leg{Profiles: []profile.Resolved{
		{Platform: "first", DisplayName: "nobody"},
		{Platform: "second", DisplayName: "nobody"},
		{Platform: "third", DisplayName: "alice"},
	}}
	SortLeg(&leg, subject)
	if leg.Profiles[0].Platform != "third" {
		t.Fatalf("highest score not first: %v", leg.Profiles)
	}
	if leg.Profiles[1].Platform != "first" || leg.Profiles[2].Platform != "second" {
		t.Fatalf("tie order not preserved: %v", leg.Profiles)
	}
}
