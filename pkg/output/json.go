package output

import (
	"io"

	"github.com/apivet/apivet/pkg/jsonutil"
)

// JSONWriter renders the full report as indented JSON, suitable for
// archival and diffing across scans.
type JSONWriter struct{}

// NewJSONWriter creates the JSON report writer.
func NewJSONWriter() *JSONWriter { return &JSONWriter{} }

func (*JSONWriter) Format() string { return "json" }

func (*JSONWriter) Write(w io.Writer, r Report) error {
	return jsonutil.MarshalWrite(w, r, "  ")
}
