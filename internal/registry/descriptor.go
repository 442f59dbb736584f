package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
)

// Param is one named argument of a tool.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Descriptor is the discovered, immutable description of a tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Provider    string          `json:"provider"`
	Params      []Param         `json:"params"`
	Returns     string          `json:"returns"`
	Schema      json.RawMessage `json:"schema"`
	// AdditionalProperties allows keys beyond Params. It is only set when the provider's
	// raw schema says so; schemas received over the wire are treated as closed.
	AdditionalProperties bool `json:"additionalProperties"`
}

type objectSchema struct {
	Type                 string         `json:"type"`
	Properties           map[string]any `json:"properties"`
	Required             []string       `json:"required,omitempty"`
	AdditionalProperties bool           `json:"additionalProperties"`
}

func newDescriptor(provider string, tool mcp.Tool) (Descriptor, error) {
	input := tool.InputSchema
	open := false
	if len(tool.RawInputSchema) > 0 {
		if err := json.Unmarshal(tool.RawInputSchema, &input); err != nil {
			return Descriptor{}, fmt.Errorf("error decoding schema of %s: %w", tool.Name, err)
		}
		extra := gjson.GetBytes(tool.RawInputSchema, "additionalProperties")
		open = extra.Type == gjson.True || extra.IsObject()
	}
	props := input.Properties
	if props == nil {
		props = map[string]any{}
	}
	seen := map[string]bool{}
	params := make([]Param, 0, len(props))
	for _, name := range input.Required {
		if seen[name] {
			continue
		}
		seen[name] = true
		params = append(params, Param{Name: name, Type: propertyType(props[name]), Required: true})
	}
	rest := make([]string, 0, len(props))
	for name := range props {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		params = append(params, Param{Name: name, Type: propertyType(props[name])})
	}
	schema, err := json.Marshal(objectSchema{
		Type:                 "object",
		Properties:           props,
		Required:             input.Required,
		AdditionalProperties: open,
	})
	if err != nil {
		return Descriptor{}, fmt.Errorf("error encoding schema of %s: %w", tool.Name, err)
	}
	return Descriptor{
		Name:                 tool.Name,
		Description:          tool.Description,
		Provider:             provider,
		Params:               params,
		Returns:              "string",
		Schema:               schema,
		AdditionalProperties: open,
	}, nil
}

func propertyType(prop any) string {
	if m, ok := prop.(map[string]any); ok {
		if t, ok := m["type"].(string); ok {
			return t
		}
	}
	return ""
}

// ArgumentError reports arguments that do not match a tool's schema.
type ArgumentError struct {
	Tool   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// Validate checks a JSON object of arguments against the descriptor. Keys that are not
// declared parameters are rejected unless the descriptor allows additional properties.
func (d Descriptor) Validate(args string) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if !gjson.Valid(args) {
		return &ArgumentError{Tool: d.Name, Reason: "arguments are not valid JSON"}
	}
	parsed := gjson.Parse(args)
	if !parsed.IsObject() {
		return &ArgumentError{Tool: d.Name, Reason: "arguments must be a JSON object"}
	}
	declared := make(map[string]Param, len(d.Params))
	for _, p := range d.Params {
		declared[p.Name] = p
	}
	var err error
	parsed.ForEach(func(key, value gjson.Result) bool {
		p, ok := declared[key.String()]
		if !ok && d.AdditionalProperties {
			return true
		}
		if !ok {
			err = &ArgumentError{Tool: d.Name, Reason: fmt.Sprintf("unknown argument %q", key.String())}
			return false
		}
		if !matchesType(p.Type, value) {
			err = &ArgumentError{Tool: d.Name, Reason: fmt.Sprintf("argument %q must be of type %s", p.Name, p.Type)}
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	for _, p := range d.Params {
		if !p.Required {
			continue
		}
		if v := parsed.Get(gjson.Escape(p.Name)); !v.Exists() || v.Type == gjson.Null {
			return &ArgumentError{Tool: d.Name, Reason: fmt.Sprintf("missing required argument %q", p.Name)}
		}
	}
	return nil
}

func matchesType(want string, value gjson.Result) bool {
	if value.Type == gjson.Null {
		return true
	}
	switch want {
	case "integer":
		return value.Type == gjson.Number && isInt64(value.Raw)
	case "number":
		return value.Type == gjson.Number
	case "string":
		return value.Type == gjson.String
	case "boolean":
		return value.Type == gjson.True || value.Type == gjson.False
	case "array":
		return value.IsArray()
	case "object":
		return value.IsObject()
	default:
		return true
	}
}

// isInt64 reports whether a JSON number literal is a whole number that fits in an int64.
func isInt64(raw string) bool {
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}
