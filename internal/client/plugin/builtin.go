package plugin

import (
	"fmt"
	"io"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iudanet/ctfclient/internal/models"
)

// Built-in type tags
const (
	TagDefault  = models.DefaultChallengeType
	TagFreeform = "freeform"
	TagCode     = "code"
)

const challengeTemplate = `
=== {{with .Category}}{{title .Name}} / {{end}}{{.Challenge.Name}} ===

Score:  {{points .Challenge.Score}}
{{- with .Challenge.Author}}
Author: {{.}}
{{- end}}
Status: {{if .Challenge.Solved}}solved{{else}}unsolved{{end}}

{{.Challenge.Description}}
{{- if .Challenge.Hints}}

Hints:
{{- range .Challenge.Hints}}
  - {{.Name}} (-{{points .Penalty}}){{if .Used}}: {{.Text}}{{end}}
{{- end}}
{{- end}}
{{- if .Challenge.Files}}

Files:
{{- range .Challenge.Files}}
  - {{.Name}} ({{.Size}} bytes) {{.URL}}
{{- end}}
{{- end}}
`

const editorTemplate = `
=== Edit challenge #{{.Challenge.ID}} ===

Name:        {{.Challenge.Name}}
Type:        {{.Challenge.TypeTag}}
Score:       {{.Challenge.Score}}
Author:      {{.Challenge.Author}}
{{- with .Category}}
Category:    {{.Name}}
{{- end}}
Description:
{{.Challenge.Description}}

Metadata:
`

var (
	templateFuncs = template.FuncMap{
		"title":  title,
		"points": points,
	}

	challengeTmpl = template.Must(template.New("challenge").Funcs(templateFuncs).Parse(challengeTemplate))
	editorTmpl    = template.Must(template.New("editor").Funcs(templateFuncs).Parse(editorTemplate))
)

// RegisterBuiltins registers the plain-text plugins shipped with the client
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		kind Kind
		tag  string
		d    Descriptor
	}{
		{KindChallenge, TagDefault, Descriptor{Component: ComponentFunc(renderChallenge)}},
		{KindChallenge, TagFreeform, Descriptor{Uses: TagDefault}},
		{KindChallenge, TagCode, Descriptor{Component: ComponentFunc(renderCodeRunner), RightOf: TagDefault}},
		{KindEditor, TagDefault, Descriptor{Component: metadataEditor{registry: r}}},
		{KindEditor, TagFreeform, Descriptor{Uses: TagDefault}},
		{KindEditor, TagCode, Descriptor{Uses: TagDefault}},
	}
	for _, b := range builtins {
		if err := r.Register(b.kind, b.tag, b.d); err != nil {
			return fmt.Errorf("failed to register %s %q: %w", b.kind, b.tag, err)
		}
	}

	if err := r.RegisterMetadata(TagDefault, MetadataSet{Fields: []Field{
		{Type: FieldGroup, Label: "Flag format", Children: []Field{
			{Type: FieldText, Name: MetaFlagRegex, Label: "Flag regex"},
			{Type: FieldText, Name: MetaFlagPartialRegex, Label: "Partial flag regex"},
		}},
	}}); err != nil {
		return err
	}

	return r.RegisterMetadata(TagCode, MetadataSet{
		Check: func(chal *models.Challenge, _ *models.Category) bool {
			return chal.TypeTag() == TagCode
		},
		Fields: []Field{
			{Type: FieldHR},
			{Type: FieldLabel, Label: "Code runner"},
			{Type: FieldSelect, Name: "runtime", Label: "Runtime", Options: []Option{
				{Key: "python3", Value: "Python 3"},
				{Key: "node", Value: "Node.js"},
				{Key: "gcc", Value: "C (gcc)"},
			}},
			{Type: FieldNumber, Name: "timeout", Label: "Timeout, seconds"},
			{Type: FieldCode, Name: "template", Label: "Starter code"},
		},
	})
}

func renderChallenge(w io.Writer, p Props) error {
	if err := challengeTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("failed to render challenge: %w", err)
	}
	if p.Right == nil {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return p.Right.Render(w, Props{Challenge: p.Challenge, Category: p.Category})
}

// renderCodeRunner shows the runtime settings next to the challenge
func renderCodeRunner(w io.Writer, p Props) error {
	if _, err := fmt.Fprintln(w, "--- Code runner ---"); err != nil {
		return err
	}
	meta := p.Challenge.Metadata
	shown := 0
	for _, key := range sortedKeys(meta) {
		if key == MetaFlagRegex || key == MetaFlagPartialRegex {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %v\n", title(key), meta[key]); err != nil {
			return err
		}
		shown++
	}
	if shown == 0 {
		_, err := fmt.Fprintln(w, "No runtime configured.")
		return err
	}
	return nil
}

type metadataEditor struct {
	registry *Registry
}

func (e metadataEditor) Render(w io.Writer, p Props) error {
	if err := editorTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("failed to render editor: %w", err)
	}
	fields := e.registry.MetadataFields(p.Challenge, p.Category)
	if len(fields) == 0 {
		_, err := fmt.Fprintln(w, "  (no metadata fields)")
		return err
	}
	return WriteFields(w, fields, p.Challenge.Metadata)
}

// Caser хранит состояние, поэтому создается на каждый вызов
func title(s string) string {
	return cases.Title(language.English).String(s)
}

func points(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d points", n)
}
