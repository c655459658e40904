package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"paylane-backend-go/internal/models"
)

const passwordTokensCollection = "passwordTokens"

// firestoreResetTokenRepository implements the ResetTokenRepository interface
// using Firestore. Expired rows persist until the next read path touches
// them; there is no background sweep.
type firestoreResetTokenRepository struct {
	client *firestore.Client
}

// NewFirestoreResetTokenRepository creates a new instance of firestoreResetTokenRepository.
func NewFirestoreResetTokenRepository(client *firestore.Client) ResetTokenRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for ResetTokenRepository.")
	}
	return &firestoreResetTokenRepository{client: client}
}

// Create adds a new password-reset token document.
func (r *firestoreResetTokenRepository) Create(ctx context.Context, token *models.PasswordResetToken) (string, error) {
	if token.UserID == "" || token.Token == "" {
		return "", errors.New("token user reference and value cannot be empty for Create operation")
	}
	docRef := r.client.Collection(passwordTokensCollection).NewDoc()
	token.ID = docRef.ID

	if _, err := docRef.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to create password reset token: %w", err)
	}
	return docRef.ID, nil
}

// GetByUserID retrieves the token held by the given user, if any.
func (r *firestoreResetTokenRepository) GetByUserID(ctx context.Context, userID string) (*models.PasswordResetToken, error) {
	return r.getOne(ctx, r.client.Collection(passwordTokensCollection).Where("user", "==", userID))
}

// GetByUserAndToken retrieves the token matching both the user and the value.
func (r *firestoreResetTokenRepository) GetByUserAndToken(ctx context.Context, userID, token string) (*models.PasswordResetToken, error) {
	return r.getOne(ctx, r.client.Collection(passwordTokensCollection).
		Where("user", "==", userID).
		Where("token", "==", token))
}

func (r *firestoreResetTokenRepository) getOne(ctx context.Context, query firestore.Query) (*models.PasswordResetToken, error) {
	iter := query.Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("password reset token not found: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query password reset token: %w", err)
	}

	var token models.PasswordResetToken
	if err := doc.DataTo(&token); err != nil {
		return nil, fmt.Errorf("failed to decode password reset token: %w", err)
	}
	token.ID = doc.Ref.ID
	return &token, nil
}

// Delete removes a token document. Single use is enforced by deletion, not a flag.
func (r *firestoreResetTokenRepository) Delete(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return errors.New("tokenID cannot be empty for Delete operation")
	}
	_, err := r.client.Collection(passwordTokensCollection).Doc(tokenID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete password reset token '%s': %w", tokenID, err)
	}
	return nil
}
