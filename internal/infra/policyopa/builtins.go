package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins is the builtin surface signing policies may use:
// comparison, arithmetic, string and collection helpers. Anything that
// reads the clock, the network, or an entropy source is excluded so a
// bundle evaluates to the same verdict on every node. The unification
// and assignment operators compile to "eq", which must stay listed.
var allowedBuiltins = map[string]struct{}{
	"abs":               {},
	"ceil":              {},
	"concat":            {},
	"contains":          {},
	"count":             {},
	"div":               {},
	"endswith":          {},
	"eq":                {},
	"equal":             {},
	"floor":             {},
	"format_int":        {},
	"gt":                {},
	"gte":               {},
	"internal.member_2": {},
	"internal.member_3": {},
	"json.marshal":      {},
	"json.unmarshal":    {},
	"lower":             {},
	"lt":                {},
	"lte":               {},
	"max":               {},
	"min":               {},
	"minus":             {},
	"mul":               {},
	"neq":               {},
	"object.get":        {},
	"object.keys":       {},
	"object.remove":     {},
	"object.union":      {},
	"plus":              {},
	"rem":               {},
	"replace":           {},
	"round":             {},
	"sort":              {},
	"split":             {},
	"sprintf":           {},
	"startswith":        {},
	"substring":         {},
	"sum":               {},
	"trim":              {},
	"trim_left":         {},
	"trim_prefix":       {},
	"trim_right":        {},
	"trim_space":        {},
	"trim_suffix":       {},
	"upper":             {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
