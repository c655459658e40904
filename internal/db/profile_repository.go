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

const profilesCollection = "profiles"

// firestoreProfileRepository implements the ProfileRepository interface using Firestore.
type firestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository creates a new instance of firestoreProfileRepository.
func NewFirestoreProfileRepository(client *firestore.Client) ProfileRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for ProfileRepository.")
	}
	return &firestoreProfileRepository{client: client}
}

// Create adds a new profile document with an auto-generated ID.
func (r *firestoreProfileRepository) Create(ctx context.Context, profile *models.Profile) (string, error) {
	if profile.UserID == "" {
		return "", errors.New("profile user reference cannot be empty for Create operation")
	}
	docRef := r.client.Collection(profilesCollection).NewDoc()
	profile.ID = docRef.ID

	if _, err := docRef.Create(ctx, profile); err != nil {
		return "", fmt.Errorf("failed to create profile: %w", err)
	}
	return docRef.ID, nil
}

// GetByUserID retrieves the profile owned by the given user.
func (r *firestoreProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByUserID operation")
	}
	iter := r.client.Collection(profilesCollection).Where("user", "==", userID).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("profile for user '%s' not found: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile for user '%s': %w", userID, err)
	}

	var profile models.Profile
	if err := doc.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile data: %w", err)
	}
	profile.ID = doc.Ref.ID
	return &profile, nil
}

// Update overwrites an existing profile document.
func (r *firestoreProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		return errors.New("profile ID cannot be empty for Update operation")
	}
	_, err := r.client.Collection(profilesCollection).Doc(profile.ID).Set(ctx, profile)
	if err != nil {
		return fmt.Errorf("failed to update profile with ID '%s': %w", profile.ID, err)
	}
	return nil
}

// Delete removes a profile document.
func (r *firestoreProfileRepository) Delete(ctx context.Context, profileID string) error {
	if profileID == "" {
		return errors.New("profileID cannot be empty for Delete operation")
	}
	_, err := r.client.Collection(profilesCollection).Doc(profileID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete profile with ID '%s': %w", profileID, err)
	}
	return nil
}
