package modeladapter

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes the parameter quirks of a model family. Profiles are
// values: derive new ones with the With* methods instead of mutating a shared
// profile.
type Profile struct {
	ModelID          string   `yaml:"model_id" json:"modelId"`
	MinAPIVersion    string   `yaml:"min_api_version" json:"minApiVersion,omitempty"`
	FixedTemperature *float64 `yaml:"fixed_temperature" json:"fixedTemperature,omitempty"`
	TokenParam       string   `yaml:"token_param" json:"tokenParamName,omitempty"`
	Unsupported      []string `yaml:"unsupported" json:"unsupportedParams,omitempty"`
}

// Validate checks that the profile is internally consistent.
func (p Profile) Validate() error {
	if p.ModelID == "" {
		return fmt.Errorf("profile: model_id is required")
	}

	if p.TokenParam != "" && !IsTokenParam(p.TokenParam) {
		return fmt.Errorf("profile %q: token_param must be %q or %q, got %q",
			p.ModelID, ParamMaxTokens, ParamMaxCompletionTokens, p.TokenParam)
	}

	if p.MinAPIVersion != "" {
		if _, err := ParseAPIVersion(p.MinAPIVersion); err != nil {
			return fmt.Errorf("profile %q: %w", p.ModelID, err)
		}
	}

	return nil
}

// IsUnsupported reports whether name is in the profile's unsupported set.
func (p Profile) IsUnsupported(name string) bool {
	return slices.Contains(p.Unsupported, name)
}

// WithUnsupported returns a copy of p with names added to the unsupported set.
func (p Profile) WithUnsupported(names ...string) Profile {
	out := p.clone()

	for _, n := range names {
		if !out.IsUnsupported(n) {
			out.Unsupported = append(out.Unsupported, n)
		}
	}

	slices.Sort(out.Unsupported)

	return out
}

// WithTokenParam returns a copy of p using name as the token-limit parameter.
func (p Profile) WithTokenParam(name string) Profile {
	out := p.clone()
	out.TokenParam = name

	return out
}

// WithFixedTemperature returns a copy of p pinned to temperature t.
func (p Profile) WithFixedTemperature(t float64) Profile {
	out := p.clone()
	out.FixedTemperature = &t

	return out
}

func (p Profile) clone() Profile {
	out := p
	out.Unsupported = slices.Clone(p.Unsupported)

	if p.FixedTemperature != nil {
		t := *p.FixedTemperature
		out.FixedTemperature = &t
	}

	return out
}

func fixedTemp(t float64) *float64 { return &t }

// reasoningUnsupported lists the sampling parameters reasoning models reject.
var reasoningUnsupported = []string{ParamFrequencyPenalty, ParamLogprobs, ParamPresencePenalty, ParamTopP}

// builtinProfiles are the model families known without a catalog file.
var builtinProfiles = []Profile{
	{ModelID: "o4-mini", MinAPIVersion: "2024-12-01-preview", FixedTemperature: fixedTemp(1), TokenParam: ParamMaxCompletionTokens, Unsupported: reasoningUnsupported},
	{ModelID: "o3", MinAPIVersion: "2024-12-01-preview", FixedTemperature: fixedTemp(1), TokenParam: ParamMaxCompletionTokens, Unsupported: reasoningUnsupported},
	{ModelID: "o3-mini", MinAPIVersion: "2024-12-01-preview", FixedTemperature: fixedTemp(1), TokenParam: ParamMaxCompletionTokens, Unsupported: reasoningUnsupported},
	{ModelID: "o1", MinAPIVersion: "2024-09-01-preview", FixedTemperature: fixedTemp(1), TokenParam: ParamMaxCompletionTokens, Unsupported: reasoningUnsupported},
	{ModelID: "o1-mini", MinAPIVersion: "2024-09-01-preview", FixedTemperature: fixedTemp(1), TokenParam: ParamMaxCompletionTokens, Unsupported: reasoningUnsupported},
	{ModelID: "gpt-4o", MinAPIVersion: "2024-06-01", TokenParam: ParamMaxTokens},
	{ModelID: "gpt-4o-mini", MinAPIVersion: "2024-06-01", TokenParam: ParamMaxTokens},
	{ModelID: "gpt-4.1", MinAPIVersion: "2024-06-01", TokenParam: ParamMaxTokens},
}

// Catalog resolves model identifiers to profiles. It is built once at
// configuration load and only read afterwards.
type Catalog struct {
	profiles map[string]Profile
}

// NewCatalog returns a catalog holding the built-in profiles overridden by
// extra (matched by ModelID).
func NewCatalog(extra ...Profile) (*Catalog, error) {
	c := &Catalog{profiles: make(map[string]Profile, len(builtinProfiles)+len(extra))}

	for _, p := range builtinProfiles {
		c.profiles[p.ModelID] = p.clone()
	}

	for _, p := range extra {
		if err := p.Validate(); err != nil {
			return nil, err
		}

		c.profiles[p.ModelID] = p.clone()
	}

	return c, nil
}

type catalogFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadCatalog reads a YAML profile catalog and merges it over the built-ins.
// An empty path returns the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog()
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("modeladapter: load catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("modeladapter: parse catalog: %w", err)
	}

	return NewCatalog(f.Profiles...)
}

// Lookup returns the profile for modelID. Exact matches win; otherwise the
// longest built-in id that prefixes modelID (case-insensitive) is used, so a
// dated deployment such as "o4-mini-2025-04-16" resolves to "o4-mini". When
// nothing matches, a permissive max_tokens profile without version
// requirements is returned and ok is false.
func (c *Catalog) Lookup(modelID string) (p Profile, ok bool) {
	if p, found := c.profiles[modelID]; found {
		return p.clone(), true
	}

	id := strings.ToLower(modelID)
	best := ""

	for known := range c.profiles {
		k := strings.ToLower(known)
		if strings.HasPrefix(id, k) && len(k) > len(best) && boundary(id, len(k)) {
			best = known
		}
	}

	if best == "" {
		return Profile{ModelID: modelID, TokenParam: ParamMaxTokens}, false
	}

	p = c.profiles[best].clone()
	p.ModelID = modelID

	return p, true
}

// boundary reports whether a prefix of length n ends at a token boundary in id.
func boundary(id string, n int) bool {
	return n == len(id) || id[n] == '-' || id[n] == '.' || id[n] == '_'
}

// Profiles returns every profile in the catalog, sorted by model id.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p.clone())
	}

	slices.SortFunc(out, func(a, b Profile) int { return strings.Compare(a.ModelID, b.ModelID) })

	return out
}
