package prisma

import (
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Tally is an insertion-ordered name→count map. Reports iterate it in
// first-seen order. The zero value is an empty tally.
type Tally struct {
	m *orderedmap.OrderedMap[string, int]
}

// NewTally returns an empty tally.
func NewTally() Tally {
	return Tally{m: orderedmap.New[string, int]()}
}

// TallyOf builds a tally from pairs in order.
func TallyOf(pairs ...KeyCount) Tally {
	t := NewTally()
	for _, p := range pairs {
		t.Set(p.Key, p.Count)
	}
	return t
}

// KeyCount is one entry of a Tally.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func (t *Tally) init() {
	if t.m == nil {
		t.m = orderedmap.New[string, int]()
	}
}

// Set stores n under key, keeping the key's original position if present.
func (t *Tally) Set(key string, n int) {
	t.init()
	t.m.Set(key, n)
}

// Add increments key by n, appending it if absent.
func (t *Tally) Add(key string, n int) {
	t.init()
	cur, _ := t.m.Get(key)
	t.m.Set(key, cur+n)
}

// Get returns the count stored under key.
func (t Tally) Get(key string) (int, bool) {
	if t.m == nil {
		return 0, false
	}
	return t.m.Get(key)
}

// Len returns the number of keys.
func (t Tally) Len() int {
	if t.m == nil {
		return 0
	}
	return t.m.Len()
}

// Sum returns the total of all counts.
func (t Tally) Sum() int {
	total := 0
	t.Each(func(_ string, n int) { total += n })
	return total
}

// Each calls fn for every entry in insertion order.
func (t Tally) Each(fn func(key string, n int)) {
	if t.m == nil {
		return
	}
	for pair := t.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Entries returns the entries in insertion order.
func (t Tally) Entries() []KeyCount {
	out := make([]KeyCount, 0, t.Len())
	t.Each(func(k string, n int) { out = append(out, KeyCount{Key: k, Count: n}) })
	return out
}

// Keys returns the keys in insertion order.
func (t Tally) Keys() []string {
	out := make([]string, 0, t.Len())
	t.Each(func(k string, _ int) { out = append(out, k) })
	return out
}

// Clone returns an independent copy.
func (t Tally) Clone() Tally {
	c := NewTally()
	t.Each(func(k string, n int) { c.Set(k, n) })
	return c
}

// Equal reports whether both tallies hold the same entries in the same order.
func (t Tally) Equal(o Tally) bool {
	a, b := t.Entries(), o.Entries()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the tally as a JSON object in insertion order.
func (t Tally) MarshalJSON() ([]byte, error) {
	if t.m == nil {
		return []byte("{}"), nil
	}
	return t.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping document key order.
func (t *Tally) UnmarshalJSON(data []byte) error {
	t.m = orderedmap.New[string, int]()
	return t.m.UnmarshalJSON(data)
}

// MarshalYAML encodes the tally as a YAML mapping in insertion order.
func (t Tally) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	t.Each(func(k string, n int) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(n)},
		)
	})
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping, keeping document key order.
func (t *Tally) UnmarshalYAML(value *yaml.Node) error {
	t.m = orderedmap.New[string, int]()
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("tally: expected mapping, got yaml kind %d", value.Kind)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var n int
		if err := value.Content[i+1].Decode(&n); err != nil {
			return fmt.Errorf("tally: value for %q: %w", value.Content[i].Value, err)
		}
		t.m.Set(value.Content[i].Value, n)
	}
	return nil
}
