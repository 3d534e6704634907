// Package policyopa evaluates signing policy bundles with OPA. A
// bundle is Rego plus optional data files in a directory; the engine
// pins a reduced builtin set so a bundle evaluates to the same verdict
// on every node (no clock, no network, no randomness).
package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"signet/internal/domain"
)

// resultQuery is the document every signing bundle must define.
const resultQuery = "data.signet.policy.result"

type Engine struct {
	query      rego.PreparedEvalQuery
	bundleID   string
	bundleHash string
}

// NewEngineFromBundlePath compiles the bundle at bundlePath. Policies
// calling builtins outside the deterministic allowlist fail here, not
// at evaluation time.
func NewEngineFromBundlePath(ctx context.Context, bundlePath, bundleID string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("hash policy bundle: %w", err)
	}

	compiler := deterministicCompiler()
	prepared, err := rego.New(
		rego.Query(resultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy bundle: %w", err)
	}
	if names := forbiddenBuiltins(compiler); len(names) > 0 {
		return nil, fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
	}

	return &Engine{query: prepared, bundleID: bundleID, bundleHash: bundleHash}, nil
}

// deterministicCompiler restricts compilation to the allowlisted
// builtin surface.
func deterministicCompiler() *ast.Compiler {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	return ast.NewCompiler().WithCapabilities(capabilities)
}

func (e *Engine) BundleID() string   { return e.bundleID }
func (e *Engine) BundleHash() string { return e.bundleHash }

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, errors.New("policy produced no result")
	}

	result, err := decodeResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	return domain.PolicyEvaluation{
		BundleID:   e.bundleID,
		BundleHash: e.bundleHash,
		Result:     result,
	}, nil
}

// decodeResult round-trips the raw eval value through JSON into the
// domain shape and sorts the deny list so evaluations compare stably.
func decodeResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, fmt.Errorf("malformed policy result: %w", err)
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
	return result, nil
}

// forbiddenBuiltins reports, sorted, every builtin the compiled
// modules call that sits outside the allowlist. Restricted
// capabilities already reject most of these at compile time; the walk
// is a second check that stays correct if a capability update widens
// the compiled set.
func forbiddenBuiltins(compiler *ast.Compiler) []string {
	seen := map[string]bool{}
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, isBuiltin := ast.BuiltinMap[name]; !isBuiltin {
				return false
			}
			if _, ok := allowedBuiltins[name]; !ok {
				seen[name] = true
			}
			return false
		})
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
