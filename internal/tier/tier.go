// Package tier classifies proposed tasks into autonomy tiers: T0 runs
// autonomously, T1 runs under budget constraints, T2 requires human
// approval before any worker is invoked.
package tier

import "strings"

// Tier is an autonomy tier.
type Tier int

const (
	T0 Tier = 0
	T1 Tier = 1
	T2 Tier = 2
)

// Coerce clamps an arbitrary integer (e.g. a model-suggested tier) into a
// valid Tier.
func Coerce(n int) Tier {
	switch {
	case n >= 2:
		return T2
	case n == 1:
		return T1
	}
	return T0
}

// Resolver maps a proposed task to an autonomy tier. The keyword policy is
// deliberately behind an interface so policy changes don't ripple.
type Resolver interface {
	Resolve(title, description string, suggested Tier) Tier
}

// t2Keywords are hard gates: any substring match forces human approval.
var t2Keywords = []string{
	"deploy", "production", "publish", "release", "customer", "outbound",
	"email send", "billing", "payment", "spend", "purchase", "delete",
	"destroy", "public",
}

// t1Keywords mark budget-constrained work.
var t1Keywords = []string{
	"staging", "experiment", "a/b test", "trial", "prototype", "draft",
}

// KeywordResolver is the default, substring-based policy. The sets are
// imprecise by design ("public" matches "publication"); they err toward
// requiring approval.
type KeywordResolver struct{}

// NewKeywordResolver returns the default resolver.
func NewKeywordResolver() *KeywordResolver {
	return &KeywordResolver{}
}

// Resolve applies the tier rules in order. T2 is a one-way ratchet up: a
// suggested T2 or any T2 keyword wins regardless of other signals. A T1
// keyword promotes T0 to T1 but never demotes a T2.
func (r *KeywordResolver) Resolve(title, description string, suggested Tier) Tier {
	if suggested == T2 {
		return T2
	}

	text := strings.ToLower(title + " " + description)

	for _, kw := range t2Keywords {
		if strings.Contains(text, kw) {
			return T2
		}
	}
	for _, kw := range t1Keywords {
		if strings.Contains(text, kw) {
			return T1
		}
	}
	if suggested == T1 {
		return T1
	}
	return T0
}
