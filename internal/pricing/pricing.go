// Package pricing maintains the per-provider token rate table used by the
// budget manager. Rates live in an embedded YAML file so deployments can
// update them without touching code.
package pricing

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"rostra/internal/llm"
)

//go:embed rates.yaml
var ratesFile []byte

// Rate is a provider's USD cost per 1k tokens in each direction.
type Rate struct {
	Provider    string  `yaml:"provider"`
	InputPer1k  float64 `yaml:"input_per_1k"`
	OutputPer1k float64 `yaml:"output_per_1k"`
}

type rateFile struct {
	Providers []Rate `yaml:"providers"`
}

// Table resolves generation costs per provider.
type Table struct {
	rates map[llm.ProviderType]Rate
}

// Load parses the embedded rate table.
func Load() (*Table, error) {
	var f rateFile
	if err := yaml.Unmarshal(ratesFile, &f); err != nil {
		return nil, fmt.Errorf("parse rate table: %w", err)
	}
	t := &Table{rates: make(map[llm.ProviderType]Rate, len(f.Providers))}
	for _, r := range f.Providers {
		t.rates[llm.ProviderType(r.Provider)] = r
	}
	return t, nil
}

// Cost computes the USD cost of a call: tokens / 1000 x direction rate.
// Unknown providers cost zero rather than failing the budget check.
func (t *Table) Cost(provider llm.ProviderType, inputTokens, outputTokens int) float64 {
	r, ok := t.rates[provider]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000*r.InputPer1k + float64(outputTokens)/1000*r.OutputPer1k
}
