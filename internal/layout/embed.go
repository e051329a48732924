package layout

import (
	"embed"
	"fmt"
	"strings"
)

// DefaultTemplateName is the embedded template used when none is configured.
const DefaultTemplateName = "default"

//go:embed templates/*.xml
var EmbeddedTemplates embed.FS

// GetEmbeddedTemplate returns an embedded template by name.
// The name should not include the .xml extension.
func GetEmbeddedTemplate(name string) (*LayoutConfig, error) {
	data, err := EmbeddedTemplates.ReadFile("templates/" + name + ".xml")
	if err != nil {
		return nil, fmt.Errorf("layout template not found: %s (embedded: %s)",
			name, strings.Join(ListEmbeddedTemplates(), ", "))
	}

	config, err := ParseTemplateString(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid embedded template %s: %w", name, err)
	}
	return config, nil
}

// ListEmbeddedTemplates returns the names of all embedded templates.
func ListEmbeddedTemplates() []string {
	entries, err := EmbeddedTemplates.ReadDir("templates")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".xml") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".xml"))
		}
	}
	return names
}
