package token

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Patterns is a compiled set of allowed channel patterns. A nil or empty set
// does not restrict channels.
type Patterns struct {
	raw   []string
	globs []glob.Glob
}

// CompilePatterns compiles channel glob patterns like "chat:*" or "system:news".
func CompilePatterns(patterns []string) (*Patterns, error) {
	p := &Patterns{
		raw:   make([]string, 0, len(patterns)),
		globs: make([]glob.Glob, 0, len(patterns)),
	}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("malformed channel pattern %q: %w", pattern, err)
		}
		p.raw = append(p.raw, pattern)
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// Restricted reports whether set limits channels at all.
func (p *Patterns) Restricted() bool {
	return p != nil && len(p.globs) > 0
}

// Match checks channel against set.
func (p *Patterns) Match(ch string) bool {
	if !p.Restricted() {
		return true
	}
	for _, g := range p.globs {
		if g.Match(ch) {
			return true
		}
	}
	return false
}

// Strings returns source patterns.
func (p *Patterns) Strings() []string {
	if p == nil {
		return nil
	}
	return p.raw
}
