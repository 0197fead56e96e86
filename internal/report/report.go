// Package report renders the outcome of a batch of searches.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/imgsearch/internal/search"
	"github.com/FranksOps/imgsearch/internal/serp"
)

// KindOther labels failures that did not come from the search client.
const KindOther = "other"

// Summary contains aggregated figures about a batch of searches.
type Summary struct {
	Queries        int            `json:"queries"`
	Failures       int            `json:"failures"`
	TotalImages    int            `json:"total_images"`
	UniqueImages   int            `json:"unique_images"`
	FailuresByKind map[string]int `json:"failures_by_kind"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Duration       time.Duration  `json:"duration"`
}

// Entry is one search in a Report.
type Entry struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Items     []string      `json:"items"`
	Error     string        `json:"error,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Report is a Summary plus every search it was built from.
type Report struct {
	Summary Summary `json:"summary"`
	Entries []Entry `json:"results"`
}

func kindOf(err error) string {
	if k := serp.KindOf(err); k != "" {
		return string(k)
	}
	return KindOther
}

// GenerateSummary aggregates results. The time span runs from the earliest
// start to the latest finish.
func GenerateSummary(results []search.Result) Summary {
	s := Summary{FailuresByKind: make(map[string]int)}
	if len(results) == 0 {
		return s
	}

	seen := make(map[string]struct{})
	s.StartTime = results[0].StartedAt
	s.EndTime = results[0].StartedAt.Add(results[0].Duration)

	for _, r := range results {
		s.Queries++
		if r.Err != nil {
			s.Failures++
			s.FailuresByKind[kindOf(r.Err)]++
		}
		s.TotalImages += len(r.Items)
		for _, u := range r.Items {
			seen[u] = struct{}{}
		}

		if r.StartedAt.Before(s.StartTime) {
			s.StartTime = r.StartedAt
		}
		if end := r.StartedAt.Add(r.Duration); end.After(s.EndTime) {
			s.EndTime = end
		}
	}

	s.UniqueImages = len(seen)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// New builds a Report from results, keeping their order.
func New(results []search.Result) Report {
	rep := Report{
		Summary: GenerateSummary(results),
		Entries: make([]Entry, 0, len(results)),
	}
	for _, r := range results {
		e := Entry{
			ID:        r.ID,
			Query:     r.Query,
			Items:     r.Items,
			StartedAt: r.StartedAt,
			Duration:  r.Duration,
		}
		if e.Items == nil {
			e.Items = []string{}
		}
		if r.Err != nil {
			e.Error = r.Err.Error()
			e.Kind = kindOf(r.Err)
		}
		rep.Entries = append(rep.Entries, e)
	}
	return rep
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

var textTmpl = template.Must(template.New("text").Parse(`Image Search Summary
--------------------
Time:           {{.Summary.StartTime.Format "2006-01-02 15:04:05"}} - {{.Summary.EndTime.Format "2006-01-02 15:04:05"}}
Duration:       {{.Summary.Duration}}
Queries:        {{.Summary.Queries}}
Failures:       {{.Summary.Failures}}
Images:         {{.Summary.TotalImages}} ({{.Summary.UniqueImages}} unique)

Failures By Kind:
{{- range $kind, $count := .Summary.FailuresByKind}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}
{{range .Entries}}
[{{.Query}}] {{if .Error}}FAILED: {{.Error}}{{else}}{{len .Items}} images{{end}}
{{- range .Items}}
  {{.}}
{{- end}}
{{end}}`))

// WriteText writes a human-readable summary followed by each search's URLs.
func WriteText(w io.Writer, rep Report) error {
	if err := textTmpl.Execute(w, rep); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

var htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Image Search Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(120px, 1fr)); gap: 8px; }
  .grid img { width: 100%; height: 120px; object-fit: cover; background: #eee; }
  .error { color: #b00020; }
</style>
</head>
<body>
  <h1>Image Search Report</h1>
  <p><strong>Time:</strong> {{.Summary.StartTime.Format "2006-01-02 15:04:05"}} to {{.Summary.EndTime.Format "2006-01-02 15:04:05"}} ({{.Summary.Duration}})</p>

  <div class="stat-card">
    <div>Queries</div>
    <div class="stat-val">{{.Summary.Queries}}</div>
  </div>
  <div class="stat-card">
    <div>Failures</div>
    <div class="stat-val" style="color: {{if gt .Summary.Failures 0}}red{{else}}green{{end}};">{{.Summary.Failures}}</div>
  </div>
  <div class="stat-card">
    <div>Unique Images</div>
    <div class="stat-val">{{.Summary.UniqueImages}}</div>
  </div>
{{range .Entries}}
  <h3>{{.Query}}</h3>
  {{- if .Error}}
  <p class="error">{{.Kind}}: {{.Error}}</p>
  {{- else}}
  <div class="grid">
    {{- range .Items}}
    <a href="{{.}}"><img src="{{.}}" loading="lazy" alt=""></a>
    {{- else}}
    <p>No images</p>
    {{- end}}
  </div>
  {{- end}}
{{end}}
</body>
</html>
`))

// WriteHTML writes the report as an HTML page with an image grid per search.
func WriteHTML(w io.Writer, rep Report) error {
	if err := htmlTmpl.Execute(w, rep); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}
