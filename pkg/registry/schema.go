// pkg/registry/schema.go
package registry

// Format tells how a template body is interpreted.
type Format string

const (
	// FormatPrompt bodies use {{slot}} placeholders filled by Render.
	FormatPrompt Format = "prompt"
	// FormatHTML and FormatText bodies are Go templates executed against a data value.
	FormatHTML Format = "html"
	FormatText Format = "text"
)

type TemplateRegistry struct {
	Version     string     `yaml:"version" json:"version"`
	LastUpdated string     `yaml:"lastUpdated" json:"lastUpdated"`
	Templates   []Template `yaml:"templates" json:"templates"`
}

type Template struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string   `yaml:"version" json:"version"`
	Format      Format   `yaml:"format" json:"format"`
	Slots       []string `yaml:"slots,omitempty" json:"slots,omitempty"`
	Body        string   `yaml:"body" json:"body"`
}
