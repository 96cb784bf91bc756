package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/pkg/config"
)

// Intent is the provider-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
}

// Gateway abstracts the payment provider. Confirm settles the intent
// referenced by the client secret and verifies it was charged for the
// quoted amount.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string) (*Intent, error)
	Confirm(ctx context.Context, clientSecret string, amountCents int64) (*Intent, error)
}

type StripeGateway struct {
	sc        *client.API
	returnURL string
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return &StripeGateway{sc: sc, returnURL: cfg.ReturnURL}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string) (*Intent, error) {
	if currency == "" {
		currency = "usd"
	}

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, asPaymentError(err)
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) Confirm(ctx context.Context, clientSecret string, amountCents int64) (*Intent, error) {
	intentID, ok := IntentIDFromSecret(clientSecret)
	if !ok {
		return nil, domain.PaymentError{Reason: "malformed payment intent secret"}
	}

	pi, err := g.sc.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, asPaymentError(err)
	}

	if pi.Amount != amountCents {
		return nil, domain.PaymentError{
			Reason: fmt.Sprintf("intent amount %d does not match quoted total %d", pi.Amount, amountCents),
		}
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return fromStripe(pi), nil
	case stripe.PaymentIntentStatusRequiresConfirmation:
		pi, err = g.sc.PaymentIntents.Confirm(intentID, &stripe.PaymentIntentConfirmParams{
			Params:    stripe.Params{Context: ctx},
			ReturnURL: stripe.String(g.returnURL),
		})
		if err != nil {
			return nil, asPaymentError(err)
		}
		if pi.Status != stripe.PaymentIntentStatusSucceeded {
			return nil, domain.PaymentError{Reason: "payment not completed: " + string(pi.Status)}
		}
		return fromStripe(pi), nil
	case stripe.PaymentIntentStatusCanceled:
		return nil, domain.PaymentError{Reason: "payment intent canceled"}
	default:
		return nil, domain.PaymentError{Reason: "payment not completed: " + string(pi.Status)}
	}
}

// IntentIDFromSecret extracts the intent id from a client secret of the
// form "pi_XXX_secret_YYY".
func IntentIDFromSecret(secret string) (string, bool) {
	id, _, found := strings.Cut(secret, "_secret")
	if !found || !strings.HasPrefix(id, "pi_") {
		return "", false
	}
	return id, true
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}
}

func asPaymentError(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		if sErr.Type == stripe.ErrorTypeCard {
			return domain.PaymentError{Reason: string(sErr.Code), Err: err}
		}
		return domain.PaymentError{Reason: "payment provider error", Err: err}
	}
	return domain.PaymentError{Reason: "payment provider unreachable", Err: err}
}
