package criteria

import (
	"strings"

	"github.com/roach88/quarry/internal/errors"
	"github.com/roach88/quarry/internal/expr"
)

// Domain identifies the entity a criteria targets.
type Domain struct {
	Feature  string // Empty for global domains
	Basename string
	Name     string // "<feature>.<basename>" or "global.<basename>"
}

// Global reports whether the domain lives in the global namespace.
func (d Domain) Global() bool {
	return d.Feature == ""
}

func (d Domain) String() string {
	return d.Name
}

// ParseDomain splits name on its first dot. "global.<basename>" is a
// global domain, anything else is "<feature>.<basename>". A name without
// a dot is rejected.
func ParseDomain(name string) (Domain, error) {
	feature, basename, found := strings.Cut(name, ".")
	if !found {
		return Domain{}, errors.WithHint(
			errors.Mark(errors.Newf("domain %q has no feature or global prefix", name), errors.ErrInvalidDomain),
			"write the domain as <feature>.<basename> or global.<basename>")
	}
	if err := expr.ValidatePath([]string{feature, basename}); err != nil {
		return Domain{}, errors.Mark(errors.Wrapf(err, "domain %q", name), errors.ErrInvalidDomain)
	}
	if feature == expr.FeaturesPrefix {
		return Domain{}, errors.Mark(errors.Newf("domain %q uses the reserved feature name %q", name, feature), errors.ErrInvalidDomain)
	}

	d := Domain{Basename: basename, Name: name}
	if feature != expr.GlobalPrefix {
		d.Feature = feature
	}
	return d, nil
}

// QualifyExpression namespaces e under the domain.
func (d Domain) QualifyExpression(e expr.Expression) expr.Expression {
	if d.Global() {
		return e.QualifyGlobal(d.Basename)
	}
	return e.QualifyFeature(d.Feature, d.Basename)
}

// QualifyOrder namespaces o under the domain.
func (d Domain) QualifyOrder(o expr.OrderTerm) expr.OrderTerm {
	if d.Global() {
		return o.QualifyGlobal(d.Basename)
	}
	return o.QualifyFeature(d.Feature, d.Basename)
}
