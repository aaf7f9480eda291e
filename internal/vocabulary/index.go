// Package vocabulary provides read-only synonym registries used for query
// term expansion and quality keyword matching.
package vocabulary

import (
	"fmt"
	"strings"
)

// Category is a canonical concept with its ordered surface forms. The first
// synonym is the canonical form.
type Category struct {
	ID       string   `json:"id" yaml:"id"`
	Synonyms []string `json:"synonyms" yaml:"synonyms"`
}

// Canonical returns the preferred surface form of the category.
func (c Category) Canonical() string {
	if len(c.Synonyms) == 0 {
		return c.ID
	}
	return c.Synonyms[0]
}

func (c Category) clone() Category {
	return Category{ID: c.ID, Synonyms: append([]string(nil), c.Synonyms...)}
}

type matcher struct {
	category Category
	needles  []string
}

// Index is an immutable, ordered registry of categories. Lookups scan the
// categories in declaration order and the first match wins.
type Index struct {
	name     string
	matchers []matcher
	byID     map[string]int
}

// NewIndex builds an index from categories in the order given. Category IDs
// must be unique and each category needs at least one synonym.
func NewIndex(name string, categories ...Category) (*Index, error) {
	idx := &Index{
		name:     name,
		matchers: make([]matcher, 0, len(categories)),
		byID:     make(map[string]int, len(categories)),
	}

	for _, c := range categories {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("%s: category with empty id", name)
		}
		if _, dup := idx.byID[c.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate category %q", name, c.ID)
		}
		if len(c.Synonyms) == 0 {
			return nil, fmt.Errorf("%s: category %q has no synonyms", name, c.ID)
		}

		m := matcher{category: c.clone()}
		m.needles = append(m.needles, strings.ToLower(c.ID))
		if spaced := strings.ToLower(strings.ReplaceAll(c.ID, "_", " ")); spaced != m.needles[0] {
			m.needles = append(m.needles, spaced)
		}
		for _, s := range c.Synonyms {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				m.needles = append(m.needles, s)
			}
		}

		idx.byID[c.ID] = len(idx.matchers)
		idx.matchers = append(idx.matchers, m)
	}

	return idx, nil
}

// MustIndex is like NewIndex but panics on invalid tables. It is meant for
// package-level default tables.
func MustIndex(name string, categories ...Category) *Index {
	idx, err := NewIndex(name, categories...)
	if err != nil {
		panic(err)
	}
	return idx
}

// Name returns the registry name, e.g. "conditions".
func (i *Index) Name() string { return i.name }

// Len returns the number of categories.
func (i *Index) Len() int { return len(i.matchers) }

// Lookup returns the first category whose key or any synonym is contained
// in term, compared case-insensitively.
func (i *Index) Lookup(term string) (Category, bool) {
	lower := strings.ToLower(term)
	for _, m := range i.matchers {
		for _, needle := range m.needles {
			if strings.Contains(lower, needle) {
				return m.category.clone(), true
			}
		}
	}
	return Category{}, false
}

// Expand returns the synonyms of the matching category, or term itself when
// nothing matches.
func (i *Index) Expand(term string) []string {
	if c, ok := i.Lookup(term); ok {
		return c.Synonyms
	}
	return []string{term}
}

// Category returns the category registered under id.
func (i *Index) Category(id string) (Category, bool) {
	pos, ok := i.byID[id]
	if !ok {
		return Category{}, false
	}
	return i.matchers[pos].category.clone(), true
}

// Categories returns a copy of all categories in declaration order.
func (i *Index) Categories() []Category {
	out := make([]Category, len(i.matchers))
	for n, m := range i.matchers {
		out[n] = m.category.clone()
	}
	return out
}
