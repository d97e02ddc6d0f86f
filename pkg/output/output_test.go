package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apivet/apivet/pkg/finding"
	"github.com/apivet/apivet/pkg/jsonutil"
	"github.com/apivet/apivet/pkg/scoring"
	"github.com/apivet/apivet/pkg/session"
)

func sampleReport() Report {
	start := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	return Report{
		Snapshot: session.Snapshot{
			ScanID:    "20260825_100000_deadbeef",
			Target:    "http://api.example",
			StartTime: start,
			EndTime:   start.Add(3 * time.Second),
			Duration:  3.0,
			Summary: session.Summary{
				TotalTests:           3,
				VulnerabilitiesFound: 1,
				Critical:             1,
				Passed:               1,
				Errors:               1,
			},
			Results: []finding.Finding{
				{
					Test: "broken-auth", Category: "API2:2023",
					Status: finding.StatusVulnerable, Severity: finding.SeverityCritical,
					URL: "http://api.example/api/login", Method: "POST",
					Description:    "Login accepts weak default credentials",
					Evidence:       "admin/password -> 200 with token",
					Recommendation: "Enforce strong credential policy",
				},
				{Test: "bola", Category: "API1:2023", Status: finding.StatusPassed},
				{Test: "ssrf", Category: "API7:2023", Status: finding.StatusError, Description: "target unreachable"},
			},
		},
		Score: 25,
		Level: scoring.LevelMedium,
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter().Write(&buf, sampleReport()))

	var got Report
	require.NoError(t, jsonutil.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 25, got.Score)
	assert.Equal(t, scoring.LevelMedium, got.Level)
	assert.Equal(t, "20260825_100000_deadbeef", got.Snapshot.ScanID)
	assert.Len(t, got.Snapshot.Results, 3)

	// Non-vulnerable rows must not serialize a severity key.
	assert.Contains(t, buf.String(), `"severity": "CRITICAL"`)
	assert.Equal(t, 1, strings.Count(buf.String(), `"severity"`))
}

func TestConsoleWriterFiltersPassed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewConsoleWriter().Write(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "broken-auth")
	assert.Contains(t, out, "ssrf")
	assert.NotContains(t, out, "bola")
	assert.Contains(t, out, "25/100")
}

func TestConsoleWriterAll(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := &ConsoleWriter{All: true}
	require.NoError(t, w.Write(&buf, sampleReport()))
	assert.Contains(t, buf.String(), "bola")
}

func TestHTMLWriterEscapes(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	r.Snapshot.Results[0].Evidence = `<script>alert(1)</script>`

	var buf bytes.Buffer
	require.NoError(t, NewHTMLWriter().Write(&buf, r))

	out := buf.String()
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "http://api.example")
}

func TestPDFWriterProducesDocument(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewPDFWriter().Write(&buf, sampleReport()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestTemplateWriterWithSprigFuncs(t *testing.T) {
	t.Parallel()

	w, err := NewTemplateWriter(`{{.Snapshot.Target}} {{.Level | toString | lower}} {{len .Snapshot.Results}}`)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, sampleReport()))
	assert.Equal(t, "http://api.example medium 3", buf.String())
}

func TestTemplateWriterParseError(t *testing.T) {
	t.Parallel()

	_, err := NewTemplateWriter("{{.Broken")
	assert.Error(t, err)
}

func TestForFormat(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"json", "console", "html", "pdf"} {
		w, err := ForFormat(format)
		require.NoError(t, err, format)
		assert.NotNil(t, w)
	}
	_, err := ForFormat("yamlish")
	assert.Error(t, err)
}
