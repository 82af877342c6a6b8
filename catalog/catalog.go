package catalog

import "github.com/forbearing/sqlmap/errs"

// Catalog is the immutable, process-wide registry produced by a
// successful Builder.Build() (spec §3 "Lifecycle", §5 "the catalog ... is
// populated during bootstrap by a single thread and then treated as
// read-only"). Concurrent reads require no locking.
type Catalog struct {
	statements map[string]*Statement
	resultMaps map[string]*ResultMap
	caches     map[string]*CacheConfig
}

// Statement looks up a compiled statement by its exact qualified name.
// A bare name is not qualified against any namespace here (Catalog has
// no "current namespace"), so it only matches if it was registered
// under that exact string.
func (c *Catalog) Statement(qualifiedName string) (*Statement, error) {
	s, ok := c.statements[qualifiedName]
	if !ok {
		return nil, errs.Newf(errs.ErrConfig, "no such statement %q", qualifiedName)
	}
	return s, nil
}

// ResultMap looks up a compiled result map by qualified name.
func (c *Catalog) ResultMap(qualifiedName string) (*ResultMap, error) {
	rm, ok := c.resultMaps[qualifiedName]
	if !ok {
		return nil, errs.Newf(errs.ErrConfig, "no such resultMap %q", qualifiedName)
	}
	return rm, nil
}

// Cache looks up a namespace's effective second-tier cache configuration,
// if one was declared via <cache> or resolved via <cache-ref>.
func (c *Catalog) Cache(namespace string) (*CacheConfig, bool) {
	cfg, ok := c.caches[namespace]
	return cfg, ok
}

// Statements returns every compiled statement's qualified name.
func (c *Catalog) Statements() []string {
	names := make([]string, 0, len(c.statements))
	for n := range c.statements {
		names = append(names, n)
	}
	return names
}
