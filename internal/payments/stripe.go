// Package payments adapts the Stripe API to the processor interface the
// payment service consumes.
package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"paylane-backend-go/internal/core"
)

// Currency is the platform currency for all charges, transfers and topups.
const Currency = string(stripe.CurrencyUSD)

// StripeProcessor implements core.PaymentProcessor against the Stripe API.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProcessor builds a processor bound to one API key and webhook
// signing secret.
func NewStripeProcessor(secretKey, webhookSecret string) *StripeProcessor {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProcessor{api: api, webhookSecret: webhookSecret}
}

// rawMap flattens a Stripe object into the snapshot map stored alongside the
// local payment-account record.
func rawMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, email string) (*core.Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
	}
	customer, err := p.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: creating customer: %w", err)
	}
	return &core.Customer{ID: customer.ID, Raw: rawMap(customer)}, nil
}

func (p *StripeProcessor) AttachSource(ctx context.Context, customerID, source string) (*core.Card, error) {
	params := &stripe.CardParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Token:    stripe.String(source),
	}
	card, err := p.api.Cards.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: attaching card source: %w", err)
	}
	return &core.Card{ID: card.ID, Raw: rawMap(card)}, nil
}

func (p *StripeProcessor) CreateConnectedAccount(ctx context.Context, email string) (*core.ConnectedAccount, error) {
	params := &stripe.AccountParams{
		Params: stripe.Params{Context: ctx},
		Type:   stripe.String(string(stripe.AccountTypeExpress)),
		Email:  stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{
				Requested: stripe.Bool(true),
			},
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	account, err := p.api.Accounts.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: creating connected account: %w", err)
	}
	return &core.ConnectedAccount{ID: account.ID, Raw: rawMap(account)}, nil
}

func (p *StripeProcessor) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Params:     stripe.Params{Context: ctx},
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	link, err := p.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: creating account link: %w", err)
	}
	return link.URL, nil
}

func (p *StripeProcessor) CreateCharge(ctx context.Context, in *core.ChargeParams) (*core.Charge, error) {
	params := &stripe.ChargeParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(in.Amount),
		Currency:    stripe.String(Currency),
		Customer:    stripe.String(in.CustomerID),
		Description: stripe.String(in.Description),
	}
	if err := params.SetSource(in.Source); err != nil {
		return nil, fmt.Errorf("stripe: setting charge source: %w", err)
	}
	charge, err := p.api.Charges.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: creating charge: %w", err)
	}
	return &core.Charge{ID: charge.ID, Amount: charge.Amount, Status: string(charge.Status)}, nil
}

func (p *StripeProcessor) CreateRefund(ctx context.Context, chargeID string) (*core.Refund, error) {
	params := &stripe.RefundParams{
		Params: stripe.Params{Context: ctx},
		Charge: stripe.String(chargeID),
	}
	refund, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: creating refund: %w", err)
	}
	return &core.Refund{ID: refund.ID, Status: string(refund.Status)}, nil
}

func (p *StripeProcessor) CreateTransfer(ctx context.Context, in *core.TransferParams) (*core.Transfer, error) {
	params := &stripe.TransferParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(in.Amount),
		Currency:    stripe.String(Currency),
		Destination: stripe.String(in.Destination),
		Description: stripe.String(in.Description),
	}
	transfer, err := p.api.Transfers.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: creating transfer: %w", err)
	}
	return &core.Transfer{
		ID:          transfer.ID,
		Amount:      transfer.Amount,
		Destination: in.Destination,
	}, nil
}

func (p *StripeProcessor) CreateTopup(ctx context.Context, in *core.TopupParams) (*core.Topup, error) {
	params := &stripe.TopupParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(in.Amount),
		Currency:    stripe.String(Currency),
		Description: stripe.String(in.Description),
	}
	if in.StatementDescriptor != "" {
		params.StatementDescriptor = stripe.String(in.StatementDescriptor)
	}
	topup, err := p.api.Topups.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: creating topup: %w", err)
	}
	return &core.Topup{ID: topup.ID, Amount: topup.Amount, Status: string(topup.Status)}, nil
}

// VerifyWebhook checks the signature header against the signing secret and
// decodes the event envelope. The returned Account is the connected account
// the event belongs to, when Stripe delivered it on behalf of one.
func (p *StripeProcessor) VerifyWebhook(payload []byte, signature string) (*core.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("stripe: verifying webhook: %w", err)
	}
	return &core.WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Account: event.Account,
	}, nil
}
