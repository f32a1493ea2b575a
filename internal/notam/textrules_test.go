package notam

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextRuleCategorizer(t *testing.T) {
	c, err := NewTextRuleCategorizer()
	require.NoError(t, err)
	assert.Equal(t, TextRuleCategorizerName, c.Name())

	tests := []struct {
		name       string
		text       string
		primary    string
		categories []string
		tags       []string
		confidence float64
	}{
		{
			name:       "runway closed for works",
			text:       "RWY 09/27 CLSD DUE WIP",
			primary:    CategoryRunway,
			categories: []string{CategoryRunway},
			tags:       []string{TagClosed, TagWorkInProgress},
			confidence: 0.6,
		},
		{
			name:       "lower case text",
			text:       "taxiway b closed",
			primary:    CategoryTaxiway,
			categories: []string{CategoryTaxiway},
			tags:       []string{TagClosed},
			confidence: 0.5,
		},
		{
			name:       "single tag rule has no primary",
			text:       "BIRD CONCENTRATION IN VICINITY OF AD",
			categories: nil,
			tags:       []string{TagWildlife},
			confidence: 0.4,
		},
		{
			name:       "most votes wins",
			text:       "ILS RWY 27 LOC U/S, DME U/S",
			primary:    CategoryNavigation,
			categories: []string{CategoryNavigation, CategoryRunway},
			tags:       []string{TagILS, TagUnserviceable},
			confidence: 0.7,
		},
		{
			name:       "equal votes keep earliest rule",
			text:       "CRANE ERECTED NEAR TWY A",
			primary:    CategoryTaxiway,
			categories: []string{CategoryTaxiway, CategoryObstacle},
			tags:       []string{TagObstacle},
			confidence: 0.5,
		},
		{
			name:       "confidence is capped",
			text:       "RWY 27 CLSD WIP, TWY A CLSD, APRON 2 CLSD, PAPI U/S, ILS U/S, CRANE, SNOW",
			primary:    CategoryRunway,
			categories: []string{CategoryRunway, CategoryTaxiway, CategoryApron, CategoryLighting, CategoryNavigation, CategoryObstacle},
			tags: []string{TagClosed, TagWorkInProgress, TagRunwayLighting, TagUnserviceable, TagILS,
				TagObstacle, TagRunwayContamination},
			confidence: 0.8,
		},
		{
			name:       "word boundaries",
			text:       "LOCATION CHANGED FOR GPS TRIALS",
			confidence: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.Categorize(&Notam{ID: "X", Text: tt.text})
			assert.Equal(t, tt.primary, r.PrimaryCategory)
			assert.ElementsMatch(t, tt.categories, r.Categories.Sorted())
			assert.ElementsMatch(t, tt.tags, r.Tags.Sorted())
			assert.InDelta(t, tt.confidence, r.Confidence, 1e-9)
		})
	}
}

func TestTextRuleCategorizerEmptyText(t *testing.T) {
	c, err := NewTextRuleCategorizer()
	require.NoError(t, err)

	for _, n := range []*Notam{nil, {ID: "A"}, {ID: "B", Text: "   "}} {
		r := c.Categorize(n)
		assert.True(t, r.IsEmpty())
		assert.Zero(t, r.Confidence)
	}
}

func TestNewTextRuleCategorizerRejectsDuplicates(t *testing.T) {
	rules := append(DefaultTextRules(), mustRule("runway", `\bRUNWAY\b`, CategoryRunway))
	_, err := NewTextRuleCategorizer(rules...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestNewTextRuleBadPattern(t *testing.T) {
	_, err := NewTextRule("broken", `(RWY`, CategoryRunway)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "broken", cfgErr.Name)
}

func TestLoadTextRules(t *testing.T) {
	doc := `
rules:
  - name: fuel
    pattern: '\b(FUEL|AVGAS|JET A1)\b'
    category: Services
    tags: [fuel]
  - name: heliport
    pattern: '\bHELIPORT\b'
    category: aerodrome
    weight: 2
`
	rules, err := LoadTextRules(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, CategoryServices, rules[0].Category)
	assert.Equal(t, 2, rules[1].Weight)

	c, err := NewTextRuleCategorizer(append(DefaultTextRules(), rules...)...)
	require.NoError(t, err)

	r := c.Categorize(&Notam{ID: "A", Text: "AVGAS NOT AVBL"})
	assert.Equal(t, CategoryServices, r.PrimaryCategory)
	assert.True(t, r.Tags.Has("fuel"))
}

func TestLoadTextRulesErrors(t *testing.T) {
	tests := map[string]string{
		"bad pattern":   "rules:\n  - name: x\n    pattern: '(('\n",
		"missing name":  "rules:\n  - pattern: 'RWY'\n",
		"unknown field": "rules:\n  - name: x\n    pattern: 'RWY'\n    colour: red\n",
		"not yaml":      "rules: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTextRules(strings.NewReader(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestLoadTextRulesEmpty(t *testing.T) {
	rules, err := LoadTextRules(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rules)
}
