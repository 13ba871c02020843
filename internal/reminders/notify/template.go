package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Calibration Reminder]
Department: {{.Department}}
{{ range .Gages }}- {{.Name}} (SN {{.SerialNumber}}): {{.Status}}, due {{.DueDate}}{{ if .DaysUntilDue }} ({{.DaysUntilDue}} days){{ end }}
{{ end }}Please schedule calibration for the gages above.`

// GageLine is one due gage in a reminder digest.
type GageLine struct {
	Name         string
	SerialNumber string
	Status       string
	DueDate      string
	DaysUntilDue string
}

// TemplateData provides fields for rendering reminder content.
type TemplateData struct {
	Department   string
	ManagerEmail string
	Date         string
	Gages        []GageLine
}

// Template renders reminder content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a reminder template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("calibration-reminder").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("reminder template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
