// Package analysis produces the persona summary for a committed profile
// set: a deterministic heuristic pass and an optional model-assisted one.
// Both the local engine and the remote analyzer client speak the same
// request/response shapes.
package analysis

import (
	"fmt"
	"os"
	"strings"
)

// Profile is the wire shape of one profile handed to the analyzer.
type Profile struct {
	Platform    string `json:"platform"`
	URL         string `json:"url,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Request is the analyzer call body.
type Request struct {
	Profiles   []Profile `json:"profiles"`
	UseLLM     bool      `json:"use_llm"`
	LLMModel   string    `json:"llm_model,omitempty"`
	OllamaHost string    `json:"ollama_host,omitempty"`
	APIMode    string    `json:"api_mode,omitempty"`
	Username   string    `json:"username,omitempty"`
	Email      string    `json:"email,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
}

// Report is the analyzer response.
type Report struct {
	Summary  string   `json:"summary"`
	Traits   []string `json:"traits"`
	Risks    []string `json:"risks"`
	Mode     string   `json:"mode"`
	LLMUsed  bool     `json:"llm_used,omitempty"`
	LLMModel string   `json:"llm_model,omitempty"`
	LLMError string   `json:"llm_error,omitempty"`
}

// Report modes.
const (
	ModeHeuristic         = "heuristic"
	ModeOllama            = "ollama"
	ModeOpenAI            = "openai"
	ModeHeuristicFallback = "heuristic_fallback"
)

// DedupeProfiles drops repeated profiles keyed by platform plus URL (or
// display name when the URL is empty), case-insensitively, keeping the
// first occurrence.
func DedupeProfiles(profiles []Profile) []Profile {
	seen := make(map[string]struct{}, len(profiles))
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		ident := p.URL
		if ident == "" {
			ident = p.DisplayName
		}
		key := strings.ToLower(p.Platform) + "|" + strings.ToLower(ident)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Heuristic runs the deterministic trait/risk analysis over the profile
// set. It is total: the empty set yields an empty-but-valid report.
func Heuristic(profiles []Profile) Report {
	uniq := DedupeProfiles(profiles)

	platforms := make([]string, 0, len(uniq))
	distinct := make(map[string]struct{})
	var bios []string
	for _, p := range uniq {
		lower := strings.ToLower(p.Platform)
		platforms = append(platforms, lower)
		distinct[lower] = struct{}{}
		if p.Bio != "" {
			bios = append(bios, p.Bio)
		}
	}

	var traits, risks []string
	if anyPlatform(platforms, "github", "gitlab", "bitbucket") {
		traits = append(traits, "developer/tech footprint")
	}
	if anyPlatform(platforms, "linkedin") {
		traits = append(traits, "professional identity")
	}
	if anyPlatform(platforms, "instagram", "facebook", "tiktok") {
		traits = append(traits, "social presence")
	}
	if anyPlatform(platforms, "patreon", "ko-fi", "venmo", "cash app", "cashapp") {
		traits = append(traits, "creator/monetization signals")
	}
	for _, b := range bios {
		if len(b) > 240 {
			traits = append(traits, "long-form bio detected")
			break
		}
	}

	if len(distinct) <= 2 && len(uniq) >= 3 {
		risks = append(risks, "identity reuse across few platforms")
	}
	for _, b := range bios {
		lower := strings.ToLower(b)
		if strings.Contains(lower, "vpn") || strings.Contains(lower, "proxy") {
			risks = append(risks, "privacy tooling mentioned")
			break
		}
	}

	return Report{
		Summary: summaryLine(len(uniq), len(distinct)),
		Traits:  traits,
		Risks:   risks,
		Mode:    ModeHeuristic,
		LLMUsed: false,
	}
}

func summaryLine(total, platforms int) string {
	return fmt.Sprintf("Found %d profiles across %d platforms. "+
		"Signals combined into high-level traits and risks.", total, platforms)
}

func anyPlatform(platforms []string, needles ...string) bool {
	for _, p := range platforms {
		for _, n := range needles {
			if strings.Contains(p, n) {
				return true
			}
		}
	}
	return false
}

const defaultPrompt = "You are a concise profile analyst.\n" +
	"Given multi-platform profile hits, infer persona, interests, and risk signals.\n" +
	"Keep it under 140 words."

// loadPrompt prefers a caller override, then a prompt file, then the
// built-in default.
func loadPrompt(override, promptFile string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	if promptFile != "" {
		if content, err := os.ReadFile(promptFile); err == nil {
			if s := strings.TrimSpace(string(content)); s != "" {
				return s
			}
		}
	}
	return defaultPrompt
}

// buildPrompt assembles the model prompt: template, pivots, one line per
// profile (bio truncated), and the output constraints.
func buildPrompt(req Request, template string) string {
	lines := []string{template}
	if req.Username != "" {
		lines = append(lines, "Username pivot: "+req.Username)
	}
	if req.Email != "" {
		lines = append(lines, "Email pivot: "+req.Email)
	}
	lines = append(lines, "Profiles:")
	for _, p := range DedupeProfiles(req.Profiles) {
		line := "- " + p.Platform + ": " + p.DisplayName + " | " + p.URL
		if p.Bio != "" {
			bio := p.Bio
			if r := []rune(bio); len(r) > 220 {
				bio = string(r[:220])
			}
			line += " | bio: " + bio
		}
		lines = append(lines, line)
	}
	lines = append(lines,
		"Output a single concise paragraph (<100 words) summarizing persona, interests, and risk signals. "+
			"Plain text only—no code, no markdown, no lists, no URLs, no instructions, and no scraping guidance.")
	return strings.Join(lines, "\n")
}

// bannedMarkers flag model output that smuggled in code or markup.
var bannedMarkers = []string{"```", "import requests", "from bs4", "BeautifulSoup", "<table", "</table>"}

func containsBannedMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range bannedMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
