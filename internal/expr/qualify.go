package expr

import "strings"

// Path prefixes for qualified attribute paths.
const (
	FeaturesPrefix = "features"
	GlobalPrefix   = "global"
)

// IsQualified reports whether path is features.<f>.<b>.<attr...> or
// global.<b>.<attr...>.
func IsQualified(path []string) bool {
	if len(path) == 0 {
		return false
	}
	switch path[0] {
	case FeaturesPrefix:
		return len(path) >= 4
	case GlobalPrefix:
		return len(path) >= 3
	default:
		return false
	}
}

// QualifyPathFeature prefixes path with features.<feature>.<basename>
// unless it is already qualified.
func QualifyPathFeature(path []string, feature, basename string) []string {
	if IsQualified(path) {
		return clonePath(path)
	}
	out := make([]string, 0, len(path)+3)
	out = append(out, FeaturesPrefix, feature, basename)
	return append(out, path...)
}

// QualifyPathGlobal prefixes path with global.<basename> unless it is
// already qualified.
func QualifyPathGlobal(path []string, basename string) []string {
	if IsQualified(path) {
		return clonePath(path)
	}
	out := make([]string, 0, len(path)+2)
	out = append(out, GlobalPrefix, basename)
	return append(out, path...)
}

// SplitQualified separates a qualified path into its domain name and the
// attribute path relative to that domain. features.blog.post.author.name
// yields ("blog.post", "author.name"); global.user.id yields
// ("global.user", "id").
func SplitQualified(path []string) (domain, attribute string, ok bool) {
	if !IsQualified(path) {
		return "", "", false
	}
	if path[0] == GlobalPrefix {
		return GlobalPrefix + "." + path[1], strings.Join(path[2:], "."), true
	}
	return path[1] + "." + path[2], strings.Join(path[3:], "."), true
}

// Qualified implements Expression.
func (p *Predicate) Qualified() bool {
	return IsQualified(p.Path)
}

// QualifyFeature implements Expression.
func (p *Predicate) QualifyFeature(feature, basename string) Expression {
	if p.Qualified() {
		return p
	}
	cp := *p
	cp.Path = QualifyPathFeature(p.Path, feature, basename)
	return &cp
}

// QualifyGlobal implements Expression.
func (p *Predicate) QualifyGlobal(basename string) Expression {
	if p.Qualified() {
		return p
	}
	cp := *p
	cp.Path = QualifyPathGlobal(p.Path, basename)
	return &cp
}

// Qualified reports whether both branches are qualified.
func (c *Conjunction) Qualified() bool {
	return c.Left.Qualified() && c.Right.Qualified()
}

// QualifyFeature qualifies each unqualified branch independently.
func (c *Conjunction) QualifyFeature(feature, basename string) Expression {
	left, right := c.Left, c.Right
	if !left.Qualified() {
		left = left.QualifyFeature(feature, basename)
	}
	if !right.Qualified() {
		right = right.QualifyFeature(feature, basename)
	}
	return &Conjunction{Op: c.Op, Left: left, Right: right}
}

// QualifyGlobal qualifies each unqualified branch independently.
func (c *Conjunction) QualifyGlobal(basename string) Expression {
	left, right := c.Left, c.Right
	if !left.Qualified() {
		left = left.QualifyGlobal(basename)
	}
	if !right.Qualified() {
		right = right.QualifyGlobal(basename)
	}
	return &Conjunction{Op: c.Op, Left: left, Right: right}
}

// Qualified reports whether the term's path is namespaced.
func (o OrderTerm) Qualified() bool {
	return IsQualified(o.Path)
}

// QualifyFeature returns the term namespaced under a feature domain.
func (o OrderTerm) QualifyFeature(feature, basename string) OrderTerm {
	return OrderTerm{Path: QualifyPathFeature(o.Path, feature, basename), Direction: o.Direction}
}

// QualifyGlobal returns the term namespaced under a global domain.
func (o OrderTerm) QualifyGlobal(basename string) OrderTerm {
	return OrderTerm{Path: QualifyPathGlobal(o.Path, basename), Direction: o.Direction}
}

// Walk calls fn for every predicate in e, left to right.
func Walk(e Expression, fn func(*Predicate)) {
	switch node := e.(type) {
	case *Predicate:
		fn(node)
	case *Conjunction:
		Walk(node.Left, fn)
		Walk(node.Right, fn)
	}
}
