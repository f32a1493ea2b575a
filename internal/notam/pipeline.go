package notam

import "fmt"

// Pipeline folds the results of an ordered list of categorizers. The list
// order is the merge precedence: on equal confidence the earlier categorizer
// keeps the primary category.
type Pipeline struct {
	categorizers []Categorizer
}

// NewPipeline builds a pipeline from categorizers in precedence order
func NewPipeline(cs ...Categorizer) (*Pipeline, error) {
	p := &Pipeline{}
	for _, c := range cs {
		if err := p.AddCategorizer(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// DefaultPipeline returns the structured-first pipeline: Q-code, then text rules
func DefaultPipeline() *Pipeline {
	text, err := NewTextRuleCategorizer()
	if err != nil {
		panic(err)
	}
	return &Pipeline{categorizers: []Categorizer{NewQCodeCategorizer(), text}}
}

// PipelineWithRules is DefaultPipeline with extra text rules appended after
// the built-in ones. A rule name clashing with a built-in is an error.
func PipelineWithRules(extra ...TextRule) (*Pipeline, error) {
	rules := append(DefaultTextRules(), extra...)
	text, err := NewTextRuleCategorizer(rules...)
	if err != nil {
		return nil, err
	}
	return NewPipeline(NewQCodeCategorizer(), text)
}

func (p *Pipeline) check(op string, c Categorizer) error {
	if c == nil {
		return &ConfigurationError{Op: op, Reason: "categorizer is nil"}
	}
	name := c.Name()
	if name == "" {
		return &ConfigurationError{Op: op, Reason: "categorizer name is empty"}
	}
	for _, existing := range p.categorizers {
		if existing.Name() == name {
			return &ConfigurationError{Op: op, Name: name, Reason: "duplicate categorizer name"}
		}
	}
	return nil
}

// AddCategorizer appends c, making it the lowest-precedence categorizer
func (p *Pipeline) AddCategorizer(c Categorizer) error {
	if err := p.check("add categorizer", c); err != nil {
		return err
	}
	p.categorizers = append(p.categorizers, c)
	return nil
}

// InsertCategorizer places c at index, shifting later categorizers down
func (p *Pipeline) InsertCategorizer(index int, c Categorizer) error {
	if err := p.check("insert categorizer", c); err != nil {
		return err
	}
	if index < 0 || index > len(p.categorizers) {
		return &ConfigurationError{Op: "insert categorizer", Name: c.Name(),
			Reason: fmt.Sprintf("index %d out of range [0,%d]", index, len(p.categorizers))}
	}
	p.categorizers = append(p.categorizers, nil)
	copy(p.categorizers[index+1:], p.categorizers[index:])
	p.categorizers[index] = c
	return nil
}

// RemoveCategorizer removes every categorizer named name and reports how many went
func (p *Pipeline) RemoveCategorizer(name string) int {
	kept := p.categorizers[:0]
	removed := 0
	for _, c := range p.categorizers {
		if c.Name() == name {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(p.categorizers); i++ {
		p.categorizers[i] = nil
	}
	p.categorizers = kept
	return removed
}

// CategorizerNames lists the categorizers in precedence order
func (p *Pipeline) CategorizerNames() []string {
	names := make([]string, len(p.categorizers))
	for i, c := range p.categorizers {
		names[i] = c.Name()
	}
	return names
}

// Categorize folds every categorizer's result into a fresh accumulator in
// list order. A result whose confidence falls outside [0, 1] carries no
// signal and is left out of the fold.
func (p *Pipeline) Categorize(n *Notam) CategorizationResult {
	acc := NewCategorizationResult()
	for _, c := range p.categorizers {
		acc = fold(acc, c.Categorize(n))
	}
	return acc
}

func fold(acc, next CategorizationResult) CategorizationResult {
	if !next.ValidConfidence() {
		return acc
	}
	return acc.Merge(next)
}

func (p *Pipeline) categorizeSafely(n *Notam) (result CategorizationResult, failure *CategorizationError) {
	current := ""
	defer func() {
		if r := recover(); r != nil {
			failure = &CategorizationError{NotamID: n.ID, Categorizer: current, Cause: r}
		}
	}()
	acc := NewCategorizationResult()
	for _, c := range p.categorizers {
		current = c.Name()
		acc = fold(acc, c.Categorize(n))
	}
	return acc, nil
}

// CategorizeAll classifies every NOTAM in place, overwriting earlier
// classification. A categorizer that panics only fails the NOTAM it was
// working on: that NOTAM is left unclassified and the batch continues. The
// returned error is a *BatchError naming each failed NOTAM, or nil.
func (p *Pipeline) CategorizeAll(notams []*Notam) ([]*Notam, error) {
	var failures []*CategorizationError
	for _, n := range notams {
		if n == nil {
			continue
		}
		result, failure := p.categorizeSafely(n)
		if failure != nil {
			n.ClearClassification()
			failures = append(failures, failure)
			continue
		}
		Apply(n, result)
	}
	if len(failures) > 0 {
		return notams, &BatchError{Failures: failures}
	}
	return notams, nil
}

// Apply writes a result onto the NOTAM's classification fields. The primary
// category is always kept inside the category set.
func Apply(n *Notam, result CategorizationResult) {
	n.CustomCategories = result.Categories.Clone()
	n.CustomTags = result.Tags.Clone()
	n.PrimaryCategory = normalizeLabel(result.PrimaryCategory)
	if n.PrimaryCategory != "" {
		n.CustomCategories.Add(n.PrimaryCategory)
	}
	classificationChanged()
}
