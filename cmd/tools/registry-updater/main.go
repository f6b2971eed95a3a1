// cmd/tools/registry-updater/main.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kiro-assistant/pkg/registry"
)

const defaultRegistryPath = "configs/template-registry.yaml"

var rootCmd = &cobra.Command{
	Use:   "registry-updater",
	Short: "Maintain the prompt and email template registry",
	Example: `  registry-updater add --id triage-note --format prompt --slots name,symptoms --body triage.txt
  registry-updater update --id kiro-persona --field version --value 1.4.0
  registry-updater validate --path configs/template-registry.yaml
  registry-updater render-check --id kb-document`,
	SilenceUsage: true,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new template to the registry",
	RunE:  runAdd,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update an existing template's field",
	RunE:  runUpdate,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the registry file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		n, err := validateRegistry(path)
		if err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d templates.\n", n)
		return nil
	},
}

var renderCheckCmd = &cobra.Command{
	Use:   "render-check",
	Short: "Render a prompt template with placeholder values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		id, _ := cmd.Flags().GetString("id")
		out, err := renderCheck(path, id)
		if err != nil {
			return fmt.Errorf("render check failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("path", defaultRegistryPath, "Path to registry file")

	addCmd.Flags().String("id", "", "Template ID (e.g., kiro-persona)")
	addCmd.Flags().String("description", "", "Description")
	addCmd.Flags().String("format", string(registry.FormatPrompt), "Format (prompt, html, text)")
	addCmd.Flags().String("version", "1.0.0", "Version")
	addCmd.Flags().String("slots", "", "Comma separated slot names")
	addCmd.Flags().String("body", "", "File holding the template body")
	_ = addCmd.MarkFlagRequired("id")
	_ = addCmd.MarkFlagRequired("body")

	updateCmd.Flags().String("id", "", "Template ID to update")
	updateCmd.Flags().String("field", "", "Field to update (version, description, slots, body)")
	updateCmd.Flags().String("value", "", "New value for the field (file path for body)")
	_ = updateCmd.MarkFlagRequired("id")
	_ = updateCmd.MarkFlagRequired("field")
	_ = updateCmd.MarkFlagRequired("value")

	renderCheckCmd.Flags().String("id", "", "Prompt template ID to render with placeholder values")
	_ = renderCheckCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(addCmd, updateCmd, validateCmd, renderCheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAdd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	path, _ := f.GetString("path")
	id, _ := f.GetString("id")
	description, _ := f.GetString("description")
	format, _ := f.GetString("format")
	version, _ := f.GetString("version")
	slots, _ := f.GetString("slots")
	bodyFile, _ := f.GetString("body")

	body, err := os.ReadFile(bodyFile)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	tmpl := registry.Template{
		ID:          id,
		Description: description,
		Version:     version,
		Format:      registry.Format(format),
		Slots:       splitSlots(slots),
		Body:        string(body),
	}
	if err := addTemplate(path, tmpl); err != nil {
		return fmt.Errorf("add template: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added template: %s\n", id)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	path, _ := f.GetString("path")
	id, _ := f.GetString("id")
	field, _ := f.GetString("field")
	value, _ := f.GetString("value")

	if err := updateTemplate(path, id, field, value); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated template %s, field %s\n", id, field)
	return nil
}

func addTemplate(path string, tmpl registry.Template) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.TemplateRegistry{Version: "1.0.0"}
	}

	if _, err := reg.Get(tmpl.ID); err == nil {
		return fmt.Errorf("template with ID %s already exists", tmpl.ID)
	}

	reg.Templates = append(reg.Templates, tmpl)
	return saveRegistry(reg, path)
}

func updateTemplate(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	tmpl, err := reg.Get(id)
	if err != nil {
		return err
	}

	switch field {
	case "version":
		tmpl.Version = value
	case "description":
		tmpl.Description = value
	case "slots":
		tmpl.Slots = splitSlots(value)
	case "body":
		body, err := os.ReadFile(value)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		tmpl.Body = string(body)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	return saveRegistry(reg, path)
}

func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Templates) == 0 {
		return 0, fmt.Errorf("registry contains no templates")
	}
	return len(reg.Templates), nil
}

// renderCheck fills every slot with its own name so missing or stray placeholders show up.
func renderCheck(path, id string) (string, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return "", fmt.Errorf("failed to load registry: %w", err)
	}
	tmpl, err := reg.Get(id)
	if err != nil {
		return "", err
	}
	values := make(map[string]string, len(tmpl.Slots))
	for _, s := range tmpl.Slots {
		values[s] = "<" + s + ">"
	}
	return tmpl.Render(values)
}

// saveRegistry validates, stamps and writes the registry
func saveRegistry(reg *registry.TemplateRegistry, path string) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := reg.Save(path); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func splitSlots(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
