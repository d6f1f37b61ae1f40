package skills

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog indexes the skills discovered under one or more directories
// and lazily loads full definitions on fetch. Safe for concurrent use;
// concurrent task refinement fetches skills in parallel.
type Catalog struct {
	mu     sync.RWMutex
	paths  []string
	refs   map[string]Ref
	loaded map[string]*Skill
}

// NewCatalog creates a catalog over the given skill directories and
// runs an initial discovery pass.
func NewCatalog(paths []string) (*Catalog, error) {
	c := &Catalog{paths: paths}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-discovers every configured directory, replacing the index.
// Loaded definitions are dropped so edits take effect.
func (c *Catalog) Reload() error {
	refs := make(map[string]Ref)
	for _, dir := range c.paths {
		found, err := Discover(dir)
		if err != nil {
			return fmt.Errorf("discovering skills in %s: %w", dir, err)
		}
		for _, ref := range found {
			// First directory wins on name collisions.
			if _, ok := refs[ref.Name]; !ok {
				refs[ref.Name] = ref
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = refs
	c.loaded = make(map[string]*Skill)
	return nil
}

// Refs returns the discovered skills sorted by name.
func (c *Catalog) Refs() []Ref {
	c.mu.RLock()
	defer c.mu.RUnlock()
	refs := make([]Ref, 0, len(c.refs))
	for _, ref := range c.refs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs
}

// Validate reports whether name resolves to a discovered skill.
func (c *Catalog) Validate(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.refs[name]
	return ok
}

// Fetch returns the named skill's full definition, loading and caching
// it on first use.
func (c *Catalog) Fetch(name string) (*Skill, error) {
	c.mu.RLock()
	if skill, ok := c.loaded[name]; ok {
		c.mu.RUnlock()
		return skill, nil
	}
	ref, ok := c.refs[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown skill: %s", name)
	}

	skill, err := Load(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("loading skill %s: %w", name, err)
	}

	c.mu.Lock()
	c.loaded[name] = skill
	c.mu.Unlock()
	return skill, nil
}
