package db

import (
	"context"
	"errors"

	"paylane-backend-go/internal/models"
)

// ErrNotFound is returned when a document is absent from Firestore.
var ErrNotFound = errors.New("document not found")

// ErrAlreadyExists is returned when a uniqueness constraint (the email
// reservation) rejects a write. The losing writer must not compensate against
// the winner's record.
var ErrAlreadyExists = errors.New("document already exists")

// UserListFilter narrows the user listing. Zero values mean "no constraint".
type UserListFilter struct {
	Type   string
	Status string
}

// UserRepository defines the interface for user data storage operations.
type UserRepository interface {
	// Create persists a new user and reserves its email atomically. It
	// returns ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, user *models.User) (string, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	ExistsByID(ctx context.Context, userID string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	// UpdateEmail moves the email reservation to the new address and
	// rewrites the email field atomically. It returns ErrAlreadyExists
	// when the new address is taken.
	UpdateEmail(ctx context.Context, userID, newEmail string) error
	// SetState flips the presence state. modified is false both when the
	// user is absent and when the state already matched; callers cannot
	// tell the two apart.
	SetState(ctx context.Context, userID, state string) (modified bool, err error)
	// Delete removes the user document and releases its email reservation.
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context, filter UserListFilter) ([]*models.User, error)
}

// ProfileRepository defines the interface for profile data storage operations.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) (string, error)
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, profileID string) error
}

// ResetTokenRepository defines the interface for password-reset token storage.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) (string, error)
	GetByUserID(ctx context.Context, userID string) (*models.PasswordResetToken, error)
	GetByUserAndToken(ctx context.Context, userID, token string) (*models.PasswordResetToken, error)
	Delete(ctx context.Context, tokenID string) error
}

// PaymentAccountRepository defines the interface for payment-account storage.
// The mapping from external processor identifiers to local records lives here.
type PaymentAccountRepository interface {
	Create(ctx context.Context, account *models.PaymentAccount) (string, error)
	Update(ctx context.Context, account *models.PaymentAccount) error
	GetByUserAndKind(ctx context.Context, userID, kind string) (*models.PaymentAccount, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.PaymentAccount, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PaymentAccount, error)
}
