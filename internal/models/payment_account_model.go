package models

import "time"

// PaymentAccount kinds. A user holds at most one account per kind.
const (
	PaymentKindCustomer  = "stripe-customer" // customer + attached card source
	PaymentKindConnected = "stripe-account"  // express connected account (payee)
)

// PaymentAccount maps a user to an external payment-processor object. The
// Account snapshot is a cache of processor-owned truth: it is refreshed by
// verified webhook events and is never authoritative on its own.
type PaymentAccount struct {
	ID             string                 `json:"id" firestore:"-"` // Document ID, auto-generated
	UserID         string                 `json:"user" firestore:"user"`
	Kind           string                 `json:"type" firestore:"type"`
	ExternalID     string                 `json:"externalId" firestore:"externalId"` // card id or connected-account id
	CustomerID     string                 `json:"customerId,omitempty" firestore:"customerId,omitempty"`
	CardHolderName string                 `json:"cardHolderName,omitempty" firestore:"cardHolderName,omitempty"`
	Account        map[string]interface{} `json:"account,omitempty" firestore:"account,omitempty"`
	IsConnected    bool                   `json:"isConnected" firestore:"isConnected"` // flipped only by the webhook path
	CreatedAt      time.Time              `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt      time.Time              `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
