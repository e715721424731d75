package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/avetisov/flashmenu/internal/errs"
)

// PaymentProcessor is the external charge/refund collaborator.
type PaymentProcessor interface {
	// Charge captures amountCents with the given method and returns a
	// transaction reference usable for refunds.
	Charge(ctx context.Context, amountCents int64, method string) (string, error)
	// Refund reverses a previous charge by transaction reference.
	Refund(ctx context.Context, txRef string) error
}

// NewPaymentProcessor selects a processor by its configured name. An empty
// name means the dev processor; real gateways register their names here.
func NewPaymentProcessor(provider string) (PaymentProcessor, error) {
	switch provider {
	case "", "dev":
		return DevProcessor{}, nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", provider)
	}
}

// DevProcessor approves every well-formed charge with a generated reference.
// Used when no real processor is configured.
type DevProcessor struct{}

func (DevProcessor) Charge(_ context.Context, amountCents int64, method string) (string, error) {
	if amountCents <= 0 || method == "" {
		return "", errs.ErrPaymentFailed
	}
	ref, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return "dev-" + ref.String(), nil
}

func (DevProcessor) Refund(context.Context, string) error { return nil }
