package notam

import (
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// TextRuleCategorizerName identifies the text rule categorizer in a pipeline
const TextRuleCategorizerName = "text_rules"

const (
	textRuleBaseConfidence = 3
	textRuleMaxConfidence  = 0.8
)

// TextRule is one keyword pattern matched against NOTAM text. A matching rule
// contributes its tags and, when set, a vote for its category.
type TextRule struct {
	Name     string   `yaml:"name"`
	Pattern  string   `yaml:"pattern"`
	Category string   `yaml:"category,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Weight   int      `yaml:"weight,omitempty"` // category votes, defaults to 1

	re *regexp.Regexp
}

// NewTextRule compiles a rule. Patterns are always matched case-insensitively.
func NewTextRule(name, pattern, category string, tags ...string) (TextRule, error) {
	r := TextRule{Name: name, Pattern: pattern, Category: category, Tags: tags}
	if err := r.compile(); err != nil {
		return TextRule{}, err
	}
	return r, nil
}

func (r *TextRule) compile() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return &ConfigurationError{Op: "text rule", Reason: "name is required"}
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return &ConfigurationError{Op: "text rule", Name: r.Name, Reason: "pattern is required"}
	}
	if r.Weight < 0 {
		return &ConfigurationError{Op: "text rule", Name: r.Name, Reason: "weight must not be negative"}
	}
	re, err := regexp.Compile("(?i)" + r.Pattern)
	if err != nil {
		return &ConfigurationError{Op: "text rule", Name: r.Name, Reason: fmt.Sprintf("bad pattern: %v", err)}
	}
	r.re = re
	r.Category = normalizeLabel(r.Category)
	return nil
}

func (r TextRule) weight() int {
	if r.Weight == 0 {
		return 1
	}
	return r.Weight
}

func mustRule(name, pattern, category string, tags ...string) TextRule {
	r, err := NewTextRule(name, pattern, category, tags...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultTextRules returns the built-in rule set in evaluation order
func DefaultTextRules() []TextRule {
	return []TextRule{
		mustRule("runway", `\b(RWY|RUNWAY)S?\b`, CategoryRunway),
		mustRule("taxiway", `\b(TWY|TAXIWAY)S?\b`, CategoryTaxiway),
		mustRule("apron", `\b(APRON|STANDS?)\b`, CategoryApron),
		mustRule("closed", `\b(CLSD|CLOSED)\b`, "", TagClosed),
		mustRule("work_in_progress", `\b(WIP|WORK IN PROGRESS)\b`, "", TagWorkInProgress),
		mustRule("unserviceable", `\b(U/S|UNSERVICEABLE)\b`, "", TagUnserviceable),
		mustRule("obstacle", `\b(CRANE|OBST|OBSTACLE)S?\b`, CategoryObstacle, TagObstacle),
		mustRule("ils", `\b(ILS|LOC|GP)\b`, CategoryNavigation, TagILS),
		mustRule("navaid", `\b(VOR|DME|NDB)\b`, CategoryNavigation),
		mustRule("lighting", `\b(PAPI|ALS|LGT|LIGHTING)\b`, CategoryLighting, TagRunwayLighting),
		mustRule("displaced_threshold", `\b(THR\s+DISPLACED|DISPLACED\s+THR|DTHR)\b`, "", TagDisplacedThreshold),
		mustRule("contamination", `\b(SNOW|ICE|SLUSH|CONTAMINATED|RWYCC)\b`, "", TagRunwayContamination),
		mustRule("wildlife", `\bBIRDS?\b`, "", TagWildlife),
		mustRule("drone", `\b(DRONE|UAS)\b`, "", TagDrone),
		mustRule("military", `\b(MIL|EXER)\b`, "", TagMilitary),
		mustRule("temporary", `\b(TEMPO|TEMPORARY)\b`, "", TagTemporary),
	}
}

type ruleFile struct {
	Rules []TextRule `yaml:"rules"`
}

// LoadTextRules reads extra rules from YAML:
//
//	rules:
//	  - name: fuel
//	    pattern: '\b(FUEL|AVGAS|JET A1)\b'
//	    category: services
//	    tags: [fuel]
func LoadTextRules(r io.Reader) ([]TextRule, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, &ConfigurationError{Op: "load text rules", Reason: err.Error()}
	}
	for i := range f.Rules {
		if err := f.Rules[i].compile(); err != nil {
			return nil, err
		}
	}
	return f.Rules, nil
}

// LoadTextRulesFile reads extra rules from a YAML file
func LoadTextRulesFile(path string) ([]TextRule, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer file.Close()
	return LoadTextRules(file)
}

// TextRuleCategorizer applies ordered keyword rules to the NOTAM text.
// Confidence grows with the number of matching rules and stays below the
// Q-code confidence.
type TextRuleCategorizer struct {
	rules []TextRule
}

// NewTextRuleCategorizer builds a categorizer from rules. With no rules the
// defaults are used. Rule names must be unique.
func NewTextRuleCategorizer(rules ...TextRule) (*TextRuleCategorizer, error) {
	if len(rules) == 0 {
		rules = DefaultTextRules()
	}
	seen := make(map[string]bool, len(rules))
	compiled := make([]TextRule, len(rules))
	for i, r := range rules {
		if r.re == nil {
			if err := r.compile(); err != nil {
				return nil, err
			}
		}
		if seen[r.Name] {
			return nil, &ConfigurationError{Op: "text rule", Name: r.Name, Reason: "duplicate rule name"}
		}
		seen[r.Name] = true
		compiled[i] = r
	}
	return &TextRuleCategorizer{rules: compiled}, nil
}

func (c *TextRuleCategorizer) Name() string { return TextRuleCategorizerName }

// Rules returns the rule names in evaluation order
func (c *TextRuleCategorizer) Rules() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

func (c *TextRuleCategorizer) Categorize(n *Notam) CategorizationResult {
	result := EmptyResult(TextRuleCategorizerName)
	if n == nil || strings.TrimSpace(n.Text) == "" {
		return result
	}

	var matched []string
	votes := make(map[string]int)
	var order []string // categories in first-hit order
	for _, r := range c.rules {
		if !r.re.MatchString(n.Text) {
			continue
		}
		matched = append(matched, r.Name)
		for _, t := range r.Tags {
			result.Tags.Add(t)
		}
		if r.Category != "" {
			if _, ok := votes[r.Category]; !ok {
				order = append(order, r.Category)
			}
			votes[r.Category] += r.weight()
			result.Categories.Add(r.Category)
		}
	}
	if len(matched) == 0 {
		return result
	}

	best := 0
	for _, cat := range order {
		if votes[cat] > best {
			best = votes[cat]
			result.PrimaryCategory = cat
		}
	}
	result.Confidence = math.Min(float64(textRuleBaseConfidence+len(matched))/10, textRuleMaxConfidence)
	result.RelevanceHints["matched_rules"] = matched
	return result
}
