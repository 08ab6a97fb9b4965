package paymentmethods

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/paymentmethod"
	"github.com/stripe/stripe-go/v84/setupintent"

	pkgstripe "github.com/laundrylink/laundrylink-backend/pkg/stripe"
)

// StripeGateway exposes the subset of Stripe operations required by the
// payment method and order services.
type StripeGateway interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	ListPaymentMethods(ctx context.Context, params *stripe.PaymentMethodListParams) ([]*stripe.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error)
	DetachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodDetachParams) (*stripe.PaymentMethod, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
	GetSetupIntent(ctx context.Context, id string, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error)
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type stripeGatewayWrapper struct{}

// NewStripeGateway wraps the initialized Stripe client so services can be tested.
func NewStripeGateway(api *pkgstripe.Client) StripeGateway {
	if api == nil {
		return nil
	}
	return &stripeGatewayWrapper{}
}

func (w *stripeGatewayWrapper) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.New(params)
}

func (w *stripeGatewayWrapper) ListPaymentMethods(ctx context.Context, params *stripe.PaymentMethodListParams) ([]*stripe.PaymentMethod, error) {
	if params != nil {
		params.Context = ctx
	}
	iter := paymentmethod.List(params)
	var methods []*stripe.PaymentMethod
	for iter.Next() {
		methods = append(methods, iter.PaymentMethod())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return methods, nil
}

func (w *stripeGatewayWrapper) GetPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodParams) (*stripe.PaymentMethod, error) {
	if params == nil {
		params = &stripe.PaymentMethodParams{}
	}
	params.Context = ctx
	return paymentmethod.Get(id, params)
}

func (w *stripeGatewayWrapper) DetachPaymentMethod(ctx context.Context, id string, params *stripe.PaymentMethodDetachParams) (*stripe.PaymentMethod, error) {
	if params == nil {
		params = &stripe.PaymentMethodDetachParams{}
	}
	params.Context = ctx
	return paymentmethod.Detach(id, params)
}

func (w *stripeGatewayWrapper) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

func (w *stripeGatewayWrapper) CreateSetupIntent(ctx context.Context, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return setupintent.New(params)
}

func (w *stripeGatewayWrapper) GetSetupIntent(ctx context.Context, id string, params *stripe.SetupIntentParams) (*stripe.SetupIntent, error) {
	if params == nil {
		params = &stripe.SetupIntentParams{}
	}
	params.Context = ctx
	return setupintent.Get(id, params)
}

func (w *stripeGatewayWrapper) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (w *stripeGatewayWrapper) GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (w *stripeGatewayWrapper) CancelPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentCancelParams{}
	}
	params.Context = ctx
	return paymentintent.Cancel(id, params)
}
