package core

import (
	"context"
	"time"

	"paylane-backend-go/internal/models"
)

// IdentityService manages user accounts and their joined profiles.
type IdentityService interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResult, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetAllUsers(ctx context.Context, req *models.ListUsersRequest) (*models.UserPage, error)
	EditUserProfile(ctx context.Context, actor *models.User, req *models.EditUserRequest) (*models.EditResult, error)
	SetState(ctx context.Context, userID, state string) (bool, error)
	PresignPictureUpload(ctx context.Context, userID string) (key string, uploadURL string, err error)
	PictureURL(ctx context.Context, key string) (string, error)
}

// RecoveryService implements the password reset flow: a single-use
// token mailed to the account owner, exchanged for a new credential.
type RecoveryService interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, userID, token, newPassword string) error
}

// PaymentService provisions payment accounts against the external
// processor and reconciles processor webhooks back into the store.
type PaymentService interface {
	ProvisionCustomerSource(ctx context.Context, userID, email, source, cardHolderName string) (*models.PaymentAccount, error)
	ProvisionConnectedAccount(ctx context.Context, userID, email string) (*models.PaymentAccount, error)
	CreateAccountLink(ctx context.Context, userID, refreshURL, returnURL string) (string, error)
	Reconcile(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
	Charge(ctx context.Context, req *models.ChargeRequest) (*Charge, error)
	Refund(ctx context.Context, chargeID string) (*Refund, error)
	Transfer(ctx context.Context, req *models.TransferRequest) (*Transfer, error)
	Topup(ctx context.Context, req *models.TopupRequest) (*Topup, error)
	ListAccounts(ctx context.Context, userID string) ([]*models.PaymentAccount, error)
}

// TokenIssuer mints and verifies the opaque tokens handed to clients
// after login and embedded in password reset links.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// Mailer delivers transactional mail. Implementations must not retry
// internally; the caller decides what a delivery failure means.
type Mailer interface {
	Send(recipient, subject, body string) error
}

// Cache is the subset of the cache client the services need. A nil
// Cache is valid and disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// EventPublisher pushes domain events onto the message queue. A nil
// publisher is valid and disables event publication.
type EventPublisher interface {
	Publish(queue string, body []byte) error
}

// PictureStorage produces presigned URLs for profile picture blobs.
type PictureStorage interface {
	PresignUpload(ctx context.Context, key string) (string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// Customer is the processor-side record a payment source attaches to.
type Customer struct {
	ID  string
	Raw map[string]interface{}
}

// Card is a payment source attached to a customer.
type Card struct {
	ID  string
	Raw map[string]interface{}
}

// ConnectedAccount is a processor account capable of receiving
// transfers and payouts.
type ConnectedAccount struct {
	ID  string
	Raw map[string]interface{}
}

type Charge struct {
	ID     string
	Amount int64
	Status string
}

type Refund struct {
	ID     string
	Status string
}

type Transfer struct {
	ID          string
	Amount      int64
	Destination string
}

type Topup struct {
	ID     string
	Amount int64
	Status string
}

// WebhookEvent is a processor notification whose signature has already
// been verified.
type WebhookEvent struct {
	ID      string
	Type    string
	Account string
}

// TransferParams describes a transfer to a connected account.
type TransferParams struct {
	Amount      int64
	Destination string
	Description string
}

// TopupParams describes a balance topup on the platform account.
type TopupParams struct {
	Amount              int64
	Description         string
	StatementDescriptor string
}

// ChargeParams describes a charge against a customer's source.
type ChargeParams struct {
	CustomerID  string
	Amount      int64
	Source      string
	Description string
}

// PaymentProcessor is the gateway to the external payment provider.
type PaymentProcessor interface {
	CreateCustomer(ctx context.Context, email string) (*Customer, error)
	AttachSource(ctx context.Context, customerID, source string) (*Card, error)
	CreateConnectedAccount(ctx context.Context, email string) (*ConnectedAccount, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	CreateCharge(ctx context.Context, params *ChargeParams) (*Charge, error)
	CreateRefund(ctx context.Context, chargeID string) (*Refund, error)
	CreateTransfer(ctx context.Context, params *TransferParams) (*Transfer, error)
	CreateTopup(ctx context.Context, params *TopupParams) (*Topup, error)
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
