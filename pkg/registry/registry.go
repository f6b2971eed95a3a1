// pkg/registry/registry.go
package registry

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"os"
	"regexp"
	"sort"
	"strings"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrMissingSlot      = errors.New("missing template slot")
	ErrUnknownSlot      = errors.New("unknown template slot")
	ErrWrongFormat      = errors.New("template has a different format")
)

var slotPattern = regexp.MustCompile(`\{\{\s*([a-z][a-z0-9_]*)\s*\}\}`)

// LoadRegistry reads and validates a YAML template registry.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates registry YAML.
func Parse(data []byte) (*TemplateRegistry, error) {
	var reg TemplateRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode template registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Save writes the registry back as YAML.
func (r *TemplateRegistry) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode template registry: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate rejects duplicate ids, unknown formats, unparsable Go templates and
// prompt bodies that reference undeclared slots.
func (r *TemplateRegistry) Validate() error {
	ids := make(map[string]bool, len(r.Templates))
	for _, t := range r.Templates {
		if t.ID == "" {
			return fmt.Errorf("template missing required field: id")
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate template id: %s", t.ID)
		}
		ids[t.ID] = true

		if strings.TrimSpace(t.Body) == "" {
			return fmt.Errorf("template %s has an empty body", t.ID)
		}
		if t.Version == "" {
			return fmt.Errorf("template %s missing required field: version", t.ID)
		}

		switch t.Format {
		case FormatPrompt:
			if unknown := t.undeclaredSlots(); len(unknown) > 0 {
				return fmt.Errorf("template %s: %w: %s", t.ID, ErrUnknownSlot, strings.Join(unknown, ", "))
			}
		case FormatHTML:
			if _, err := t.HTML(); err != nil {
				return err
			}
		case FormatText:
			if _, err := t.Text(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("template %s has unknown format %q", t.ID, t.Format)
		}
	}
	return nil
}

// Get returns the template with id.
func (r *TemplateRegistry) Get(id string) (*Template, error) {
	for i := range r.Templates {
		if r.Templates[i].ID == id {
			return &r.Templates[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

// Render fills a prompt template's {{slot}} placeholders.
func (r *TemplateRegistry) Render(id string, values map[string]string) (string, error) {
	t, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return t.Render(values)
}

// Render requires a value for every declared slot and rejects values for undeclared ones.
func (t *Template) Render(values map[string]string) (string, error) {
	if t.Format != FormatPrompt {
		return "", fmt.Errorf("%w: %s is %s", ErrWrongFormat, t.ID, t.Format)
	}

	declared := make(map[string]bool, len(t.Slots))
	var missing []string
	for _, slot := range t.Slots {
		declared[slot] = true
		if _, ok := values[slot]; !ok {
			missing = append(missing, slot)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("template %s: %w: %s", t.ID, ErrMissingSlot, strings.Join(missing, ", "))
	}

	var unknown []string
	for k := range values {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return "", fmt.Errorf("template %s: %w: %s", t.ID, ErrUnknownSlot, strings.Join(unknown, ", "))
	}

	// single pass, so slot values containing {{...}} are never re-expanded
	return slotPattern.ReplaceAllStringFunc(t.Body, func(m string) string {
		name := slotPattern.FindStringSubmatch(m)[1]
		return values[name]
	}), nil
}

// HTML parses an html-format body with html/template.
func (t *Template) HTML() (*htmltemplate.Template, error) {
	if t.Format != FormatHTML {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongFormat, t.ID, t.Format)
	}
	tmpl, err := htmltemplate.New(t.ID).Funcs(htmltemplate.FuncMap(Funcs())).Parse(t.Body)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", t.ID, err)
	}
	return tmpl, nil
}

// Text parses a text-format body with text/template.
func (t *Template) Text() (*texttemplate.Template, error) {
	if t.Format != FormatText {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongFormat, t.ID, t.Format)
	}
	tmpl, err := texttemplate.New(t.ID).Funcs(Funcs()).Parse(t.Body)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", t.ID, err)
	}
	return tmpl, nil
}

// Funcs are the helpers available to html and text templates.
func Funcs() texttemplate.FuncMap {
	return texttemplate.FuncMap{
		"inc":   func(i int) int { return i + 1 },
		"upper": strings.ToUpper,
		"join":  strings.Join,
	}
}

func (t *Template) undeclaredSlots() []string {
	declared := make(map[string]bool, len(t.Slots))
	for _, s := range t.Slots {
		declared[s] = true
	}
	seen := make(map[string]bool)
	var unknown []string
	for _, m := range slotPattern.FindAllStringSubmatch(t.Body, -1) {
		name := m[1]
		if !declared[name] && !seen[name] {
			seen[name] = true
			unknown = append(unknown, name)
		}
	}
	return unknown
}
