package notam

// Categorizer classifies a single NOTAM. Implementations must be pure
// functions of the NOTAM's text and Q-code: they never read or write the
// classification fields, and they report "no match" with an empty result
// instead of failing.
type Categorizer interface {
	// Name is the stable identifier used for pipeline management and provenance
	Name() string
	Categorize(n *Notam) CategorizationResult
}

// FuncCategorizer adapts a plain function into a named Categorizer
type FuncCategorizer struct {
	name string
	fn   func(n *Notam) CategorizationResult
}

// NewFuncCategorizer creates a categorizer backed by fn
func NewFuncCategorizer(name string, fn func(n *Notam) CategorizationResult) *FuncCategorizer {
	return &FuncCategorizer{name: name, fn: fn}
}

func (c *FuncCategorizer) Name() string { return c.name }

func (c *FuncCategorizer) Categorize(n *Notam) CategorizationResult {
	return c.fn(n)
}
