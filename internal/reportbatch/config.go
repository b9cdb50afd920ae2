package reportbatch

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	keyDimension = "dimension"
	keyMetric    = "metric"
)

// ReportSpec is a validated report declaration.
type ReportSpec struct {
	Name       string
	Dimensions []string
	Metrics    []string
}

// Columns returns the dimensions followed by the metrics.
func (s ReportSpec) Columns() []string {
	out := make([]string, 0, len(s.Dimensions)+len(s.Metrics))
	out = append(out, s.Dimensions...)
	out = append(out, s.Metrics...)
	return out
}

func validateSpec(spec ReportSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return &ConfigError{Reason: "report name is empty"}
	}
	if len(spec.Dimensions) == 0 && len(spec.Metrics) == 0 {
		return &ConfigError{Report: spec.Name, Reason: "at least one dimension or metric is required"}
	}

	seen := map[string]string{}
	check := func(kind string, names []string) error {
		for i, name := range names {
			field := fmt.Sprintf("%s[%d]", kind, i)
			if strings.TrimSpace(name) == "" {
				return &ConfigError{Report: spec.Name, Field: field, Reason: "must be a non-empty string"}
			}
			if previous, ok := seen[name]; ok {
				return &ConfigError{
					Report: spec.Name,
					Field:  field,
					Reason: fmt.Sprintf("%q is already declared at %s", name, previous),
				}
			}
			seen[name] = field
		}
		return nil
	}
	err := check(keyDimension, spec.Dimensions)
	if err != nil {
		return err
	}
	return check(keyMetric, spec.Metrics)
}

// BatchConfig is an ordered set of reports with unique names.
type BatchConfig struct {
	reports []ReportSpec
}

// NewBatchConfig validates the given reports, their order is kept.
func NewBatchConfig(reports ...ReportSpec) (BatchConfig, error) {
	if len(reports) == 0 {
		return BatchConfig{}, &ConfigError{Reason: "no reports declared"}
	}

	names := map[string]bool{}
	out := make([]ReportSpec, len(reports))
	for i, spec := range reports {
		err := validateSpec(spec)
		if err != nil {
			return BatchConfig{}, err
		}
		if names[spec.Name] {
			return BatchConfig{}, &ConfigError{Report: spec.Name, Reason: "report is declared more than once"}
		}
		names[spec.Name] = true

		out[i] = ReportSpec{
			Name:       spec.Name,
			Dimensions: append([]string(nil), spec.Dimensions...),
			Metrics:    append([]string(nil), spec.Metrics...),
		}
	}
	return BatchConfig{reports: out}, nil
}

// Reports returns the reports in declaration order.
func (c BatchConfig) Reports() []ReportSpec {
	return append([]ReportSpec(nil), c.reports...)
}

// Names returns the report names in declaration order.
func (c BatchConfig) Names() []string {
	out := make([]string, len(c.reports))
	for i, r := range c.reports {
		out[i] = r.Name
	}
	return out
}

func (c BatchConfig) Len() int {
	return len(c.reports)
}

// Lookup returns the report with the given name.
func (c BatchConfig) Lookup(name string) (ReportSpec, bool) {
	for _, r := range c.reports {
		if r.Name == name {
			return r, true
		}
	}
	return ReportSpec{}, false
}

// RawReport is a report declaration before validation. Body is either
//
//	{dimension: [...], metric: [...]}
//
// or a list of single key records
//
//	[{dimension: [...]}, {metric: [...]}]
type RawReport struct {
	Name string
	Body any
}

// RawConfig is an ordered list of report declarations.
type RawConfig []RawReport

// UnmarshalYAML keeps the declaration order of the report mapping.
func (c *RawConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &ConfigError{Reason: fmt.Sprintf("line %d: expected a mapping of report name to report", node.Line)}
	}

	out := make(RawConfig, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return &ConfigError{Reason: fmt.Sprintf("line %d: report name must be a string", key.Line)}
		}

		var body any
		err := value.Decode(&body)
		if err != nil {
			return &ConfigError{Report: key.Value, Reason: err.Error()}
		}
		out = append(out, RawReport{Name: key.Value, Body: body})
	}
	*c = out
	return nil
}

func stringList(report, key string, value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, &ConfigError{Report: report, Field: key, Reason: "must be a list of names"}
	}
	out := make([]string, len(items))
	for i, item := range items {
		name, ok := item.(string)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, &ConfigError{
				Report: report,
				Field:  fmt.Sprintf("%s[%d]", key, i),
				Reason: "must be a non-empty string",
			}
		}
		out[i] = name
	}
	return out, nil
}

func collectFields(report string, fields map[string]any, into map[string][]string) error {
	for key, value := range fields {
		if key != keyDimension && key != keyMetric {
			return &ConfigError{Report: report, Field: key, Reason: "unknown key, expected dimension or metric"}
		}
		if _, ok := into[key]; ok {
			return &ConfigError{Report: report, Field: key, Reason: "declared more than once"}
		}
		names, err := stringList(report, key, value)
		if err != nil {
			return err
		}
		into[key] = names
	}
	return nil
}

func normalizeReport(raw RawReport) (ReportSpec, error) {
	if strings.TrimSpace(raw.Name) == "" {
		return ReportSpec{}, &ConfigError{Reason: "report name is empty"}
	}

	fields := map[string][]string{}
	switch body := raw.Body.(type) {
	case map[string]any:
		err := collectFields(raw.Name, body, fields)
		if err != nil {
			return ReportSpec{}, err
		}
	case []any:
		for i, item := range body {
			record, ok := item.(map[string]any)
			if !ok {
				return ReportSpec{}, &ConfigError{
					Report: raw.Name,
					Field:  fmt.Sprintf("[%d]", i),
					Reason: "list entries must be records with a dimension or metric key",
				}
			}
			err := collectFields(raw.Name, record, fields)
			if err != nil {
				return ReportSpec{}, err
			}
		}
	case nil:
		return ReportSpec{}, &ConfigError{Report: raw.Name, Reason: "at least one dimension or metric is required"}
	default:
		return ReportSpec{}, &ConfigError{Report: raw.Name, Reason: "report must be a record or a list of records"}
	}

	spec := ReportSpec{
		Name:       raw.Name,
		Dimensions: fields[keyDimension],
		Metrics:    fields[keyMetric],
	}
	return spec, validateSpec(spec)
}

// Normalize validates loosely typed report declarations into a BatchConfig.
func Normalize(raw RawConfig) (BatchConfig, error) {
	specs := make([]ReportSpec, 0, len(raw))
	for _, r := range raw {
		spec, err := normalizeReport(r)
		if err != nil {
			return BatchConfig{}, err
		}
		specs = append(specs, spec)
	}
	return NewBatchConfig(specs...)
}

// ParseConfig parses a YAML (or JSON) report configuration.
func ParseConfig(contents []byte) (BatchConfig, error) {
	var raw RawConfig
	err := yaml.Unmarshal(contents, &raw)
	if err != nil {
		var configErr *ConfigError
		if errors.As(err, &configErr) {
			return BatchConfig{}, configErr
		}
		return BatchConfig{}, &ConfigError{Reason: err.Error()}
	}
	return Normalize(raw)
}

// LoadConfig reads and parses a report configuration file.
func LoadConfig(path string) (BatchConfig, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return BatchConfig{}, err
	}
	return ParseConfig(contents)
}
