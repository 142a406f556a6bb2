// Package catalog loads the ordered list of interview items from a
// delimiter-segmented prompt source and extracts the question text each
// item's instruction template poses to the respondent.
package catalog

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// delimiter separates item sections in the prompt source.
const delimiter = "#label#"

// Item is one interview item: a stable identifier and the instruction
// template interpreted by the scorer and the question extractor.
type Item struct {
	ID       string
	Template string
}

// Catalog is an ordered collection of items keyed by id.
type Catalog struct {
	items []Item
	index map[string]int
}

// SourceNotFoundError indicates the prompt source could not be read.
// Fatal at startup: there is no interview without a catalog.
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("prompt source not found: %s", e.Path)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

type loadOptions struct {
	sortByNumericSuffix bool
}

// LoadOption customizes catalog loading.
type LoadOption func(*loadOptions)

// SortByNumericSuffix orders items by the trailing number in their id
// (hamd2 before hamd10) instead of preserving source order. Items
// without a numeric suffix keep their relative order at the end.
func SortByNumericSuffix() LoadOption {
	return func(o *loadOptions) { o.sortByNumericSuffix = true }
}

// Load reads and parses the prompt source at path.
func Load(path string, opts ...LoadOption) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceNotFoundError{Path: path, Err: err}
	}
	return Parse(string(data), opts...), nil
}

// Parse parses prompt source content. Each section's first line is the
// item id and the remainder is the template; sections without both are
// skipped.
func Parse(content string, opts ...LoadOption) *Catalog {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Catalog{index: make(map[string]int)}
	for _, section := range strings.Split(content, delimiter) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		id, template, ok := strings.Cut(section, "\n")
		if !ok {
			continue // id with no template
		}
		id = strings.TrimSpace(id)
		template = strings.TrimSpace(template)
		if id == "" || template == "" {
			continue
		}

		if i, dup := c.index[id]; dup {
			c.items[i].Template = template // later section wins
			continue
		}
		c.index[id] = len(c.items)
		c.items = append(c.items, Item{ID: id, Template: template})
	}

	if o.sortByNumericSuffix {
		c.sortByNumericSuffix()
	}
	return c
}

var numericSuffix = regexp.MustCompile(`(\d+)$`)

func (c *Catalog) sortByNumericSuffix() {
	key := func(id string) int {
		m := numericSuffix.FindString(id)
		if m == "" {
			return int(^uint(0) >> 1) // no suffix sorts last
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return int(^uint(0) >> 1)
		}
		return n
	}
	sort.SliceStable(c.items, func(i, j int) bool {
		return key(c.items[i].ID) < key(c.items[j].ID)
	})
	for i, it := range c.items {
		c.index[it.ID] = i
	}
}

// Items returns the items in administration order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the item with the given id.
func (c *Catalog) Get(id string) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }
