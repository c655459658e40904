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

const paymentAccountsCollection = "paymentAccounts"

// firestorePaymentAccountRepository implements the PaymentAccountRepository
// interface using Firestore.
type firestorePaymentAccountRepository struct {
	client *firestore.Client
}

// NewFirestorePaymentAccountRepository creates a new instance of firestorePaymentAccountRepository.
func NewFirestorePaymentAccountRepository(client *firestore.Client) PaymentAccountRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for PaymentAccountRepository.")
	}
	return &firestorePaymentAccountRepository{client: client}
}

// Create adds a new payment-account document with an auto-generated ID.
func (r *firestorePaymentAccountRepository) Create(ctx context.Context, account *models.PaymentAccount) (string, error) {
	if account.UserID == "" || account.Kind == "" {
		return "", errors.New("payment account user reference and kind cannot be empty for Create operation")
	}
	docRef := r.client.Collection(paymentAccountsCollection).NewDoc()
	account.ID = docRef.ID

	if _, err := docRef.Create(ctx, account); err != nil {
		return "", fmt.Errorf("failed to create payment account: %w", err)
	}
	return docRef.ID, nil
}

// Update overwrites an existing payment-account document.
func (r *firestorePaymentAccountRepository) Update(ctx context.Context, account *models.PaymentAccount) error {
	if account.ID == "" {
		return errors.New("payment account ID cannot be empty for Update operation")
	}
	_, err := r.client.Collection(paymentAccountsCollection).Doc(account.ID).Set(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to update payment account '%s': %w", account.ID, err)
	}
	return nil
}

// GetByUserAndKind retrieves the single payment account of the given kind
// held by the user.
func (r *firestorePaymentAccountRepository) GetByUserAndKind(ctx context.Context, userID, kind string) (*models.PaymentAccount, error) {
	return r.getOne(ctx, r.client.Collection(paymentAccountsCollection).
		Where("user", "==", userID).
		Where("type", "==", kind))
}

// GetByExternalID maps a processor-owned identifier back to the local record.
// The webhook path relies on this lookup.
func (r *firestorePaymentAccountRepository) GetByExternalID(ctx context.Context, externalID string) (*models.PaymentAccount, error) {
	return r.getOne(ctx, r.client.Collection(paymentAccountsCollection).
		Where("externalId", "==", externalID))
}

func (r *firestorePaymentAccountRepository) getOne(ctx context.Context, query firestore.Query) (*models.PaymentAccount, error) {
	iter := query.Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("payment account not found: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment account: %w", err)
	}

	var account models.PaymentAccount
	if err := doc.DataTo(&account); err != nil {
		return nil, fmt.Errorf("failed to decode payment account: %w", err)
	}
	account.ID = doc.Ref.ID
	return &account, nil
}

// ListByUser returns every payment account held by the user.
func (r *firestorePaymentAccountRepository) ListByUser(ctx context.Context, userID string) ([]*models.PaymentAccount, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListByUser operation")
	}
	iter := r.client.Collection(paymentAccountsCollection).Where("user", "==", userID).Documents(ctx)
	defer iter.Stop()

	var accounts []*models.PaymentAccount
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate payment accounts for user '%s': %w", userID, err)
		}

		var account models.PaymentAccount
		if err := doc.DataTo(&account); err != nil {
			log.Printf("Error decoding payment account (ID: %s): %v. Skipping.", doc.Ref.ID, err)
			continue
		}
		account.ID = doc.Ref.ID
		accounts = append(accounts, &account)
	}

	return accounts, nil
}
