package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"paylane-backend-go/internal/models"
)

const (
	usersCollection      = "users"
	emailIndexCollection = "email_index"
)

// firestoreUserRepository implements the UserRepository interface using Firestore.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for UserRepository.")
	}
	return &firestoreUserRepository{client: client}
}

// emailKey normalizes an email into a reservation document ID.
func emailKey(email string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(email)))
}

// Create persists a new user document and an email reservation document in a
// single transaction. Firestore has no unique indexes, so the reservation doc
// is the uniqueness constraint: a concurrent signup with the same email loses
// the transaction and gets ErrAlreadyExists.
func (r *firestoreUserRepository) Create(ctx context.Context, user *models.User) (string, error) {
	if user.Email == "" {
		return "", errors.New("user email cannot be empty for Create operation")
	}
	userRef := r.client.Collection(usersCollection).NewDoc()
	idxRef := r.client.Collection(emailIndexCollection).Doc(emailKey(user.Email))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(idxRef); err == nil {
			return ErrAlreadyExists
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		if err := tx.Create(userRef, user); err != nil {
			return err
		}
		return tx.Create(idxRef, map[string]interface{}{"user": userRef.ID})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) || status.Code(err) == codes.AlreadyExists {
			return "", fmt.Errorf("email '%s' already in use: %w", user.Email, ErrAlreadyExists)
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = userRef.ID
	return userRef.ID, nil
}

// GetByID retrieves a user document from Firestore by its ID.
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}

	var user models.User
	if err := docSnap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", userID, err)
	}
	user.ID = docSnap.Ref.ID

	return &user, nil
}

// GetByEmail retrieves a user by its unique email address.
func (r *firestoreUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOneBy(ctx, "email", email)
}

// GetByPhone retrieves a user by phone number.
func (r *firestoreUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.getOneBy(ctx, "phone", phone)
}

func (r *firestoreUserRepository) getOneBy(ctx context.Context, field, value string) (*models.User, error) {
	if value == "" {
		return nil, fmt.Errorf("%s cannot be empty", field)
	}
	iter := r.client.Collection(usersCollection).Where(field, "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("user with %s '%s' not found: %w", field, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by %s: %w", field, err)
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data: %w", err)
	}
	user.ID = doc.Ref.ID
	return &user, nil
}

// ExistsByID reports whether a user document exists.
func (r *firestoreUserRepository) ExistsByID(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return true, nil
}

// ExistsByPhone reports whether any user holds the given phone number.
func (r *firestoreUserRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	_, err := r.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Update overwrites an existing user document. The service layer always
// passes a complete, previously-fetched user, so a full Set is safe; the
// serverTimestamp tag keeps UpdatedAt current.
func (r *firestoreUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Update operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(user.ID).Set(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to update user with ID '%s': %w", user.ID, err)
	}
	return nil
}

// UpdateEmail rewrites the email field and moves the reservation document to
// the new address in one transaction, keeping uniqueness intact across the
// change.
func (r *firestoreUserRepository) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	if userID == "" || newEmail == "" {
		return errors.New("userID and newEmail cannot be empty for UpdateEmail operation")
	}
	userRef := r.client.Collection(usersCollection).Doc(userID)
	newIdxRef := r.client.Collection(emailIndexCollection).Doc(emailKey(newEmail))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		var user models.User
		if err := snap.DataTo(&user); err != nil {
			return err
		}
		if emailKey(user.Email) == emailKey(newEmail) {
			return nil
		}
		if _, err := tx.Get(newIdxRef); err == nil {
			return ErrAlreadyExists
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		if err := tx.Update(userRef, []firestore.Update{
			{Path: "email", Value: newEmail},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		}); err != nil {
			return err
		}
		if err := tx.Create(newIdxRef, map[string]interface{}{"user": userID}); err != nil {
			return err
		}
		if user.Email != "" {
			return tx.Delete(r.client.Collection(emailIndexCollection).Doc(emailKey(user.Email)))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("email '%s' already in use: %w", newEmail, ErrAlreadyExists)
		}
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to update email for user '%s': %w", userID, err)
	}
	return nil
}

// SetState flips the presence state field. It deliberately conflates "no such
// user" and "state already equal" into modified=false, mirroring an
// update-with-zero-matches result.
func (r *firestoreUserRepository) SetState(ctx context.Context, userID, state string) (bool, error) {
	docRef := r.client.Collection(usersCollection).Doc(userID)
	docSnap, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get user for SetState: %w", err)
	}

	var user models.User
	if err := docSnap.DataTo(&user); err != nil {
		return false, fmt.Errorf("failed to decode user data for SetState: %w", err)
	}
	if user.State == state {
		return false, nil
	}

	_, err = docRef.Update(ctx, []firestore.Update{
		{Path: "state", Value: state},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return false, fmt.Errorf("failed to update state for user '%s': %w", userID, err)
	}
	return true, nil
}

// Delete removes the user document and releases its email reservation in one
// transaction. Used by the signup compensation path.
func (r *firestoreUserRepository) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for Delete operation")
	}
	userRef := r.client.Collection(usersCollection).Doc(userID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		var user models.User
		if err := snap.DataTo(&user); err != nil {
			return err
		}
		if err := tx.Delete(userRef); err != nil {
			return err
		}
		if user.Email != "" {
			return tx.Delete(r.client.Collection(emailIndexCollection).Doc(emailKey(user.Email)))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete user with ID '%s': %w", userID, err)
	}
	return nil
}

// List returns users matching the structured filter, newest first. Substring
// search happens in the service layer: Firestore has no case-insensitive or
// contains queries.
func (r *firestoreUserRepository) List(ctx context.Context, filter UserListFilter) ([]*models.User, error) {
	query := r.client.Collection(usersCollection).Query
	if filter.Type != "" {
		query = query.Where("type", "==", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", filter.Status)
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var users []*models.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate users: %w", err)
		}

		var user models.User
		if err := doc.DataTo(&user); err != nil {
			log.Printf("Error decoding user data (ID: %s): %v. Skipping.", doc.Ref.ID, err)
			continue
		}
		user.ID = doc.Ref.ID
		users = append(users, &user)
	}

	return users, nil
}
