package usecase

import (
	"context"
	"fmt"

	"signet/internal/domain"
)

// evaluatePolicy gates a mutating action on the optional signing
// policy. A nil engine allows everything; an engine failure fails the
// operation rather than silently bypassing policy.
func evaluatePolicy(ctx context.Context, engine PolicyEngine, input domain.PolicyInput) error {
	if engine == nil {
		return nil
	}
	eval, err := engine.Evaluate(ctx, input)
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}
	if eval.Result.Allow {
		return nil
	}
	for _, deny := range eval.Result.Deny {
		msg := deny.Message
		if msg == "" {
			msg = deny.Code
		}
		if msg != "" {
			return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
		}
	}
	return fmt.Errorf("%w: denied by signing policy", domain.ErrUnauthorized)
}
