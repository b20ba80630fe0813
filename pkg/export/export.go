// Package export renders the current session state as a JSON document or
// a self-contained HTML report. Both are pure functions of the in-memory
// state; Read reverses the JSON form.
package export

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sp1nlock/legwork/pkg/analysis"
	"github.com/sp1nlock/legwork/pkg/profile"
	"github.com/sp1nlock/legwork/pkg/results"
)

// Analysis pairs the two analysis reports in the export.
type Analysis struct {
	Heuristic *analysis.Report `json:"heuristic,omitempty"`
	Model     *analysis.Report `json:"model,omitempty"`
}

// Document is the exported session.
type Document struct {
	Username     string             `json:"username"`
	Email        string             `json:"email,omitempty"`
	SessionID    string             `json:"session_id,omitempty"`
	ExportedAt   time.Time          `json:"exported_at"`
	Availability []results.Record   `json:"availability"`
	Profiles     []profile.Resolved `json:"profiles"`
	Analysis     Analysis           `json:"analysis"`
}

// WriteJSON writes the indented JSON form.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadJSON parses a document previously written by WriteJSON.
func ReadJSON(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("parsing export: %w", err)
	}
	return doc, nil
}

// WriteHTML renders the human-readable report.
func WriteHTML(w io.Writer, doc Document) error {
	return reportTmpl.Execute(w, doc)
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>legwork report: {{.Username}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #f4f4f4; }
.status-found { color: #0a7d2c; font-weight: bold; }
.section { margin-bottom: 2rem; }
</style>
</head>
<body>
<h1>legwork report</h1>
<p>Subject: <strong id="subject">{{.Username}}</strong>{{if .Email}} / <span id="email">{{.Email}}</span>{{end}}</p>
<p>Exported: <time>{{.ExportedAt.Format "2006-01-02 15:04:05 MST"}}</time></p>

<div class="section" id="availability">
<h2>Availability ({{len .Availability}} platforms)</h2>
<table>
<tr><th>Platform</th><th>Status</th><th>Code</th><th>URL</th></tr>
{{range .Availability}}<tr class="avail-row">
<td>{{.Platform}}</td>
<td{{if eq .Status "found"}} class="status-found"{{end}}>{{.Status}}</td>
<td>{{if .StatusCode}}{{.StatusCode}}{{end}}</td>
<td><a href="{{.URL}}">{{.URL}}</a></td>
</tr>
{{end}}</table>
</div>

<div class="section" id="profiles">
<h2>Profiles ({{len .Profiles}})</h2>
<table>
<tr><th>Platform</th><th>Name</th><th>Category</th><th>Bio</th></tr>
{{range .Profiles}}<tr class="profile-row">
<td>{{.Platform}}</td>
<td>{{.DisplayName}}</td>
<td>{{.Category}}</td>
<td>{{.Bio}}</td>
</tr>
{{end}}</table>
</div>

{{with .Analysis.Heuristic}}<div class="section" id="analysis-heuristic">
<h2>Heuristic analysis</h2>
<p>{{.Summary}}</p>
{{if .Traits}}<h3>Traits</h3><ul>{{range .Traits}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Risks}}<h3>Risks</h3><ul>{{range .Risks}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>{{end}}

{{with .Analysis.Model}}<div class="section" id="analysis-model">
<h2>Model-assisted analysis{{if .LLMModel}} ({{.LLMModel}}){{end}}</h2>
<p>{{.Summary}}</p>
{{if .LLMError}}<p class="llm-error">Model error: {{.LLMError}}</p>{{end}}
</div>{{end}}

</body>
</html>
`))
