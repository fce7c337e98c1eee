package deps

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/snackager/pkg/externals"
)

// ResolveDependencies computes the dependency set pv declares to its host.
//
// Declared peer dependencies are kept (minus ignored and core names) with a
// simplified range; aliased names are replaced by their null-pinned host
// replacement. Ordinary dependencies that policy marks as host-provided are
// promoted when not already present. The result is deterministic for a given
// pv and policy and never contains a core external.
func ResolveDependencies(pv *PackageVersion, policy *externals.Policy) DependencySet {
	set := make(DependencySet)
	for name, rng := range pv.PeerDependencies {
		if policy.IsIgnored(name) {
			continue
		}
		if target, ok := policy.Alias(name); ok {
			set[target] = nil
			continue
		}
		if policy.IsCore(name) {
			continue
		}
		set[name] = Pinned(SimplifyRange(rng))
	}

	for name, rng := range pv.Dependencies {
		if _, ok := set[name]; ok || policy.IsIgnored(name) {
			continue
		}
		if policy.IsPackage(name) {
			set[name] = Pinned(SimplifyRange(rng))
		}
	}
	return set
}

// comparator is one "<op><version>" term of a range.
type comparator struct {
	op      string
	version *semver.Version
}

var operators = []string{">=", "<=", ">", "<", "=", "^", "~"}

// SimplifyRange reduces a declared range to an installable spec: the most
// specific comparator (the one with the highest version) is selected and, if it
// is a lower bound (">=" or ">"), promoted to a caret range. Any other range is
// returned unchanged.
func SimplifyRange(rng string) string {
	best, ok := mostSpecific(parseComparators(rng))
	if !ok {
		return rng
	}
	if best.op == ">=" || best.op == ">" {
		return "^" + best.version.String()
	}
	return rng
}

func parseComparators(rng string) []comparator {
	var out []comparator
	for _, set := range strings.Split(rng, "||") {
		for _, term := range strings.Fields(set) {
			if term == "-" {
				continue
			}
			op := ""
			for _, candidate := range operators {
				if strings.HasPrefix(term, candidate) {
					op = candidate
					break
				}
			}
			v, err := semver.NewVersion(strings.TrimSpace(strings.TrimPrefix(term, op)))
			if err != nil {
				continue
			}
			out = append(out, comparator{op: op, version: v})
		}
	}
	return out
}

func mostSpecific(cs []comparator) (comparator, bool) {
	if len(cs) == 0 {
		return comparator{}, false
	}
	best := cs[0]
	for _, c := range cs[1:] {
		if c.version.GreaterThan(best.version) {
			best = c
		}
	}
	return best, true
}
