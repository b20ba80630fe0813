package catalog

import "strings"

// Platform describes one site the scanner probes: its canonical name, the
// profile URL template ({} is replaced with the subject handle), and the
// category bucket used for clustering and reports.
type Platform struct {
	Name     string
	URL      string
	Category string
}

const DefaultCategory = "Other"

// platforms is the source of truth for the probe catalog. Order matters:
// it is the seeding order of a fresh search session.
var platforms = []Platform{
	{"GitHub", "https://github.com/{}", "Developer"},
	{"GitLab", "https://gitlab.com/{}", "Developer"},
	{"Bitbucket", "https://bitbucket.org/{}/", "Developer"},
	{"StackOverflow", "https://stackoverflow.com/users/{}", "Developer"},
	{"HackerNews", "https://news.ycombinator.com/user?id={}", "Forum"},
	{"Reddit", "https://www.reddit.com/user/{}", "Forum"},
	{"X", "https://x.com/{}", "Social"},
	{"Instagram", "https://www.instagram.com/{}/", "Social"},
	{"Facebook", "https://www.facebook.com/{}", "Social"},
	{"TikTok", "https://www.tiktok.com/@{}", "Social"},
	{"Mastodon", "https://mastodon.social/@{}", "Social"},
	{"Bluesky", "https://bsky.app/profile/{}.bsky.social", "Social"},
	{"Telegram", "https://t.me/{}", "Social"},
	{"LinkedIn", "https://www.linkedin.com/in/{}", "Professional"},
	{"AngelList", "https://angel.co/u/{}", "Professional"},
	{"Behance", "https://www.behance.net/{}", "Creative"},
	{"Dribbble", "https://dribbble.com/{}", "Creative"},
	{"DeviantArt", "https://www.deviantart.com/{}", "Creative"},
	{"Patreon", "https://www.patreon.com/{}", "Creative"},
	{"Ko-fi", "https://ko-fi.com/{}", "Creative"},
	{"Medium", "https://medium.com/@{}", "News"},
	{"Substack", "https://{}.substack.com", "News"},
	{"Twitch", "https://www.twitch.tv/{}", "Gaming"},
	{"Steam", "https://steamcommunity.com/id/{}", "Gaming"},
	{"Chess.com", "https://www.chess.com/member/{}", "Gaming"},
	{"SoundCloud", "https://soundcloud.com/{}", "Music"},
	{"Spotify", "https://open.spotify.com/user/{}", "Music"},
	{"Bandcamp", "https://bandcamp.com/{}", "Music"},
	{"Last.fm", "https://www.last.fm/user/{}", "Music"},
	{"Flickr", "https://www.flickr.com/people/{}", "Photo"},
	{"500px", "https://500px.com/p/{}", "Photo"},
	{"YouTube", "https://www.youtube.com/@{}", "Video"},
	{"Vimeo", "https://vimeo.com/{}", "Video"},
	{"Venmo", "https://venmo.com/u/{}", "Finance"},
	{"CashApp", "https://cash.app/${}", "Finance"},
	{"Keybase", "https://keybase.io/{}", "Other"},
	{"AboutMe", "https://about.me/{}", "Other"},
	{"Linktree", "https://linktr.ee/{}", "Other"},
	{"Gravatar", "https://gravatar.com/{}", "Other"},
	{"Pastebin", "https://pastebin.com/u/{}", "Other"},
}

// categoryByName is a lowercase reverse index built once at init.
var categoryByName map[string]string

func init() {
	categoryByName = make(map[string]string, len(platforms))
	for _, p := range platforms {
		categoryByName[strings.ToLower(p.Name)] = p.Category
	}
}

// Platforms returns the catalog in seeding order. Callers must not mutate
// the returned slice.
func Platforms() []Platform {
	return platforms
}

// Lookup returns the category for a platform name, case-insensitively.
// Unknown platforms get DefaultCategory.
func Lookup(platform string) string {
	if cat, ok := categoryByName[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return cat
	}
	return DefaultCategory
}

// ProfileURL expands a platform's URL template for the given subject.
// Unknown platforms return an empty string.
func ProfileURL(platform, subject string) string {
	lower := strings.ToLower(strings.TrimSpace(platform))
	for _, p := range platforms {
		if strings.ToLower(p.Name) == lower {
			return strings.ReplaceAll(p.URL, "{}", subject)
		}
	}
	return ""
}
