package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoice-extractor/internal/rules"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

type ruleSpec struct {
	Priority int      `yaml:"priority"`
	Pattern  string   `yaml:"pattern"`
	Reject   []string `yaml:"reject"`
}

type lineItemSpec struct {
	Strategies []string `yaml:"strategies"`
	Units      []string `yaml:"units"`
	PriceUnits []string `yaml:"price_units"`
	Nouns      []string `yaml:"nouns"`
}

type templateSpec struct {
	Name       string                `yaml:"name"`
	Company    string                `yaml:"company"`
	Signatures [][]string            `yaml:"signatures"`
	Fields     map[string][]ruleSpec `yaml:"fields"`
	LineItems  lineItemSpec          `yaml:"line_items"`
}

type fileSpec struct {
	Generic   templateSpec   `yaml:"generic"`
	Templates []templateSpec `yaml:"templates"`
}

// Registry is the immutable, ordered set of templates. Safe for concurrent use.
type Registry struct {
	generic   *VendorTemplate
	templates []*VendorTemplate
	companies []string
}

// LoadRegistry parses template YAML. Vendor templates inherit the generic
// field rules (after their own) and the generic line-item vocabulary.
func LoadRegistry(data []byte) (*Registry, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if spec.Generic.Name == "" {
		spec.Generic.Name = GenericName
	}
	if spec.Generic.Name != GenericName {
		return nil, fmt.Errorf("generic template must be named %q, got %q", GenericName, spec.Generic.Name)
	}
	if len(spec.Generic.LineItems.Strategies) == 0 {
		return nil, errors.New("generic template needs at least one line-item strategy")
	}

	generic, err := buildTemplate(spec.Generic, nil)
	if err != nil {
		return nil, err
	}
	reg := &Registry{generic: generic}

	seen := map[string]struct{}{GenericName: {}}
	for _, ts := range spec.Templates {
		if ts.Name == "" {
			return nil, errors.New("template without a name")
		}
		if _, dup := seen[ts.Name]; dup {
			return nil, fmt.Errorf("duplicate template %q", ts.Name)
		}
		seen[ts.Name] = struct{}{}
		if len(ts.Signatures) == 0 {
			return nil, fmt.Errorf("template %q has no signatures", ts.Name)
		}
		t, err := buildTemplate(ts, generic)
		if err != nil {
			return nil, err
		}
		reg.templates = append(reg.templates, t)
		if t.Company != "" {
			reg.companies = append(reg.companies, t.Company)
		}
	}
	return reg, nil
}

// LoadRegistryFile reads templates from path.
func LoadRegistryFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return LoadRegistry(b)
}

// DefaultRegistry returns the registry built from the embedded templates.
func DefaultRegistry() *Registry {
	reg, err := LoadRegistry(defaultTemplatesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded templates: %v", err))
	}
	return reg
}

func buildTemplate(ts templateSpec, generic *VendorTemplate) (*VendorTemplate, error) {
	t := &VendorTemplate{
		Name:       ts.Name,
		Company:    strings.TrimSpace(ts.Company),
		FieldRules: make(map[Field][]rules.PatternRule),
	}
	for _, sig := range ts.Signatures {
		if kws := lowerAll(sig); len(kws) > 0 {
			t.Signatures = append(t.Signatures, kws)
		}
	}

	for name, specs := range ts.Fields {
		f := Field(name)
		if !knownField(f) {
			return nil, fmt.Errorf("template %s: unknown field %q", ts.Name, name)
		}
		for _, rs := range specs {
			r, err := compileRule(ts.Name, f, rs)
			if err != nil {
				return nil, err
			}
			t.FieldRules[f] = append(t.FieldRules[f], r)
		}
	}

	li := LineItemRules{
		Strategies: lowerAll(ts.LineItems.Strategies),
		Units:      lowerAll(ts.LineItems.Units),
		PriceUnits: lowerAll(ts.LineItems.PriceUnits),
		Nouns:      lowerAll(ts.LineItems.Nouns),
	}
	if generic != nil {
		for _, f := range Fields {
			for _, r := range generic.FieldRules[f] {
				r.Priority += genericPriorityOffset
				t.FieldRules[f] = append(t.FieldRules[f], r)
			}
		}
		if len(li.Strategies) == 0 {
			li.Strategies = generic.LineItems.Strategies
		}
		li.Units = union(generic.LineItems.Units, li.Units)
		li.PriceUnits = union(generic.LineItems.PriceUnits, li.PriceUnits)
		li.Nouns = union(generic.LineItems.Nouns, li.Nouns)
	}
	t.LineItems = li
	return t, nil
}

func knownField(f Field) bool {
	for _, k := range Fields {
		if k == f {
			return true
		}
	}
	return false
}

// Recognize returns the first registered template whose signature appears in
// text, or the generic template.
func (r *Registry) Recognize(text string) *VendorTemplate {
	lowered := strings.ToLower(text)
	for _, t := range r.templates {
		if t.Matches(lowered) {
			return t
		}
	}
	return r.generic
}

// Generic returns the fallback template.
func (r *Registry) Generic() *VendorTemplate { return r.generic }

// Lookup finds a template by name.
func (r *Registry) Lookup(name string) (*VendorTemplate, bool) {
	if name == GenericName {
		return r.generic, true
	}
	for _, t := range r.templates {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Names lists template names in recognition order, generic last.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.templates)+1)
	for _, t := range r.templates {
		out = append(out, t.Name)
	}
	return append(out, GenericName)
}

// KnownCompanies lists the literal company names of all vendor templates.
func (r *Registry) KnownCompanies() []string {
	return append([]string(nil), r.companies...)
}
