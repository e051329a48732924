// Package layout parses the XML templates that describe a notification
// popup's widget tree.
package layout

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ElementType identifies the type of layout element.
type ElementType string

const (
	ElementTypeHeader    ElementType = "header"
	ElementTypeBox       ElementType = "box"
	ElementTypeIcon      ElementType = "icon"
	ElementTypeAppIcon   ElementType = "appicon"
	ElementTypeSummary   ElementType = "summary"
	ElementTypeAppName   ElementType = "appname"
	ElementTypeBody      ElementType = "body"
	ElementTypeImage     ElementType = "image"
	ElementTypeActions   ElementType = "actions"
	ElementTypeTimestamp ElementType = "timestamp"
	ElementTypeClose     ElementType = "close"
)

// ValidElements lists all recognized element types.
var ValidElements = map[string]ElementType{
	"header":    ElementTypeHeader,
	"box":       ElementTypeBox,
	"icon":      ElementTypeIcon,
	"appicon":   ElementTypeAppIcon,
	"summary":   ElementTypeSummary,
	"appname":   ElementTypeAppName,
	"body":      ElementTypeBody,
	"image":     ElementTypeImage,
	"actions":   ElementTypeActions,
	"timestamp": ElementTypeTimestamp,
	"close":     ElementTypeClose,
}

// ErrNoPopup is returned for templates without a <popup> root.
var ErrNoPopup = errors.New("template has no <popup> element")

// LayoutConfig represents the parsed layout structure ready for UI building.
type LayoutConfig struct {
	// Popup sizing (0 = use config default)
	MinWidth  int
	MaxWidth  int
	MinHeight int
	MaxHeight int
	Elements  []LayoutElement
}

// LayoutElement represents a single element in the layout.
type LayoutElement struct {
	Type       ElementType
	Attributes map[string]string
	Children   []LayoutElement
}

// Contains reports whether an element of type t appears anywhere in the layout.
func (c *LayoutConfig) Contains(t ElementType) bool {
	var walk func([]LayoutElement) bool
	walk = func(elems []LayoutElement) bool {
		for _, e := range elems {
			if e.Type == t || walk(e.Children) {
				return true
			}
		}
		return false
	}
	return walk(c.Elements)
}

// ParseTemplate parses an XML layout template from a reader.
func ParseTemplate(r io.Reader) (*LayoutConfig, error) {
	decoder := xml.NewDecoder(r)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil, ErrNoPopup
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read template: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != "popup" {
			return nil, fmt.Errorf("%w: root is <%s>", ErrNoPopup, se.Name.Local)
		}

		var config LayoutConfig
		for _, attr := range se.Attr {
			v, err := parsePixelValue(attr.Value)
			if err != nil {
				continue
			}
			switch attr.Name.Local {
			case "min-width":
				config.MinWidth = v
			case "max-width":
				config.MaxWidth = v
			case "min-height":
				config.MinHeight = v
			case "max-height":
				config.MaxHeight = v
			}
		}

		elements, err := parseElements(decoder)
		if err != nil {
			return nil, err
		}
		config.Elements = elements
		return &config, nil
	}
}

// parsePixelValue parses a pixel value string (e.g., "300", "300px") to int.
func parsePixelValue(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "px")
	var v int
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

// parseElements recursively parses child elements up to the parent's end tag.
func parseElements(decoder *xml.Decoder) ([]LayoutElement, error) {
	var elements []LayoutElement

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("unexpected end of template")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read element: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			elemName := strings.ToLower(t.Name.Local)
			elemType, ok := ValidElements[elemName]
			if !ok {
				return nil, fmt.Errorf("unknown element type: %s", elemName)
			}

			elem := LayoutElement{
				Type:       elemType,
				Attributes: make(map[string]string),
			}
			for _, attr := range t.Attr {
				elem.Attributes[attr.Name.Local] = attr.Value
			}

			children, err := parseElements(decoder)
			if err != nil {
				return nil, err
			}
			elem.Children = children

			elements = append(elements, elem)

		case xml.EndElement:
			return elements, nil
		}
	}
}

// ParseTemplateString parses a template from a string.
func ParseTemplateString(s string) (*LayoutConfig, error) {
	return ParseTemplate(strings.NewReader(s))
}

// LoadTemplate loads a template from file.
func LoadTemplate(path string) (*LayoutConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}
	defer func() { _ = f.Close() }()

	config, err := ParseTemplate(f)
	if err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", path, err)
	}
	return config, nil
}

// IsPath reports whether ref names a template file rather than an embedded
// template.
func IsPath(ref string) bool {
	return strings.ContainsRune(ref, '/') || strings.HasSuffix(ref, ".xml")
}

// Load resolves ref to a layout. An empty ref is the default template, a
// ref containing a slash or ending in .xml is read from disk, and anything
// else names an embedded template.
func Load(ref string) (*LayoutConfig, error) {
	if ref == "" {
		ref = DefaultTemplateName
	}
	if IsPath(ref) {
		return LoadTemplate(ref)
	}
	return GetEmbeddedTemplate(ref)
}
