package output

import (
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateWriter renders a report through a user-supplied text template
// with the sprig function map available, so teams can shape output for
// their own ticketing or chat pipelines.
type TemplateWriter struct {
	tmpl *template.Template
}

// NewTemplateWriter parses the template source.
func NewTemplateWriter(src string) (*TemplateWriter, error) {
	tmpl, err := template.New("report").Funcs(sprig.FuncMap()).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &TemplateWriter{tmpl: tmpl}, nil
}

func (*TemplateWriter) Format() string { return "template" }

func (t *TemplateWriter) Write(w io.Writer, r Report) error {
	return t.tmpl.Execute(w, r)
}
