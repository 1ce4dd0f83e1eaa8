// Package safety implements the three-layer input screen (pattern screen,
// external moderation, semantic filter) and the sanitizer that runs after
// all layers pass.
package safety

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var catalogueFile []byte

// Category partitions the pattern catalogue.
type Category string

const (
	CategoryPromptInjection Category = "prompt_injection"
	CategoryHarmfulContent  Category = "harmful_content"
	CategoryManipulation    Category = "manipulation"
	CategoryProfanity       Category = "profanity"
	CategorySensitiveTopic  Category = "sensitive_topic"
)

// Severity grades a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type cataloguePattern struct {
	Name     string   `yaml:"name"`
	Category Category `yaml:"category"`
	Severity Severity `yaml:"severity"`
	Regex    string   `yaml:"regex"`
}

type catalogueFileShape struct {
	Patterns []cataloguePattern `yaml:"patterns"`
}

type compiledPattern struct {
	name     string
	category Category
	severity Severity
	re       *regexp.Regexp
}

// Finding is one pattern match against the original input.
type Finding struct {
	Pattern  string   `json:"pattern"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Match    string   `json:"match"`
}

// ScreenResult is the pattern layer's verdict.
type ScreenResult struct {
	Findings    []Finding
	Blocked     bool
	BlockReason Category
	// Masked carries the input with low-severity profanity starred out when
	// the screen did not block.
	Masked string
}

// PatternScreen evaluates the fixed regex catalogue.
type PatternScreen struct {
	patterns []compiledPattern
	strict   bool
}

// NewPatternScreen compiles the embedded catalogue. strict escalates high
// severity findings to blocks.
func NewPatternScreen(strict bool) (*PatternScreen, error) {
	var f catalogueFileShape
	if err := yaml.Unmarshal(catalogueFile, &f); err != nil {
		return nil, fmt.Errorf("parse pattern catalogue: %w", err)
	}
	s := &PatternScreen{strict: strict, patterns: make([]compiledPattern, 0, len(f.Patterns))}
	for _, p := range f.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %s: %w", p.Name, err)
		}
		s.patterns = append(s.patterns, compiledPattern{
			name:     p.Name,
			category: p.Category,
			severity: p.Severity,
			re:       re,
		})
	}
	return s, nil
}

// blockingCategories always block on any match, regardless of severity.
var blockingCategories = map[Category]bool{
	CategoryPromptInjection: true,
	CategoryHarmfulContent:  true,
	CategorySensitiveTopic:  true,
}

// Screen evaluates the input against the full catalogue. The input must be
// the ORIGINAL, unsanitized text.
func (s *PatternScreen) Screen(input string) ScreenResult {
	result := ScreenResult{Masked: input}

	for _, p := range s.patterns {
		match := p.re.FindString(input)
		if match == "" {
			continue
		}
		result.Findings = append(result.Findings, Finding{
			Pattern:  p.name,
			Category: p.category,
			Severity: p.severity,
			Match:    match,
		})
	}

	for _, f := range result.Findings {
		switch {
		case f.Severity == SeverityCritical,
			s.strict && f.Severity == SeverityHigh,
			blockingCategories[f.Category]:
			result.Blocked = true
			if result.BlockReason == "" {
				result.BlockReason = f.Category
			}
		}
	}
	if result.Blocked {
		return result
	}

	// Low-severity profanity is masked rather than blocked when nothing
	// else escalated.
	for _, p := range s.patterns {
		if p.category != CategoryProfanity || p.severity != SeverityLow {
			continue
		}
		result.Masked = p.re.ReplaceAllStringFunc(result.Masked, maskWord)
	}
	return result
}

func maskWord(w string) string {
	if len(w) <= 1 {
		return "*"
	}
	return w[:1] + strings.Repeat("*", len(w)-1)
}
