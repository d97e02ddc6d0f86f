package output

import (
	"html/template"
	"io"
)

const htmlReport = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>API Scan Report {{.Snapshot.ScanID}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1a1a2e; }
h1 { border-bottom: 2px solid #00d4aa; padding-bottom: .3rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #ddd; }
.badge { padding: .1rem .5rem; border-radius: .3rem; color: #fff; font-size: .85em; }
.CRITICAL { background: #c0392b; } .HIGH { background: #e74c3c; }
.MEDIUM { background: #f39c12; } .LOW { background: #27ae60; }
.INFO { background: #2980b9; } .ERROR { background: #d35400; }
.PASSED { background: #16a085; } .VULNERABLE { background: #c0392b; }
.score { font-size: 2rem; font-weight: 700; }
</style>
</head>
<body>
<h1>API Security Scan</h1>
<p>
Scan <strong>{{.Snapshot.ScanID}}</strong> of <strong>{{.Snapshot.Target}}</strong>,
{{printf "%.2f" .Snapshot.Duration}}s,
{{.Snapshot.Summary.TotalTests}} tests,
{{.Snapshot.Summary.VulnerabilitiesFound}} vulnerabilities.
</p>
<p class="score">{{.Score}}/100 <span class="badge {{.Level}}">{{.Level}}</span></p>
<table>
<tr><th>Check</th><th>Category</th><th>Status</th><th>Severity</th><th>Description</th><th>Evidence</th></tr>
{{range .Snapshot.Results}}
<tr>
<td>{{.Test}}</td>
<td>{{.Category}}</td>
<td><span class="badge {{.Status}}">{{.Status}}</span></td>
<td>{{with .Severity}}<span class="badge {{.}}">{{.}}</span>{{end}}</td>
<td>{{.Description}}{{with .Recommendation}}<br><em>{{.}}</em>{{end}}</td>
<td><code>{{.Evidence}}</code></td>
</tr>
{{end}}
</table>
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Parse(htmlReport))

// HTMLWriter renders a standalone HTML report.
type HTMLWriter struct{}

// NewHTMLWriter creates the HTML report writer.
func NewHTMLWriter() *HTMLWriter { return &HTMLWriter{} }

func (*HTMLWriter) Format() string { return "html" }

func (*HTMLWriter) Write(w io.Writer, r Report) error {
	return htmlTmpl.Execute(w, r)
}
