package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paylane-backend-go/internal/auth"
	"paylane-backend-go/internal/db"
	"paylane-backend-go/internal/models"
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

const (
	defaultPageLimit = 10
	userCreatedQueue = "user.created"
	pictureKeyPrefix = "profile-pictures/"
)

type identityService struct {
	userRepo    db.UserRepository
	profileRepo db.ProfileRepository
	issuer      TokenIssuer
	pictures    PictureStorage
	events      EventPublisher
	logger      *zap.Logger
}

// NewIdentityService wires the identity service. pictures and events may be
// nil; the corresponding features degrade to no-ops.
func NewIdentityService(
	userRepo db.UserRepository,
	profileRepo db.ProfileRepository,
	issuer TokenIssuer,
	pictures PictureStorage,
	events EventPublisher,
	logger *zap.Logger,
) IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &identityService{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		issuer:      issuer,
		pictures:    pictures,
		events:      events,
		logger:      logger,
	}
}

// validID rejects values that cannot be Firestore document IDs.
func validID(id string) bool {
	return id != "" && len(id) <= 128 && !strings.ContainsAny(id, "/\x00")
}

// Signup creates the user, its profile, and the back-reference between them.
// Each completed step pushes an undo onto a stack; any later failure unwinds
// the stack in reverse order so no orphaned document survives.
func (s *identityService) Signup(ctx context.Context, req *models.SignupRequest) (*models.AuthResult, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if !emailPattern.MatchString(req.Email) {
		return nil, fmt.Errorf("%w: please enter a valid email", ErrValidation)
	}
	userType := req.Type
	if userType == "" {
		userType = models.TypeUser
	}
	if userType != models.TypeUser && userType != models.TypeAdmin {
		return nil, fmt.Errorf("%w: unknown user type %q", ErrValidation, req.Type)
	}
	if req.Phone != "" {
		taken, err := s.userRepo.ExistsByPhone(ctx, req.Phone)
		if err != nil {
			return nil, fmt.Errorf("%w: checking phone: %v", ErrInternal, err)
		}
		if taken {
			return nil, fmt.Errorf("%w: phone already in use", ErrConflict)
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing password: %v", ErrInternal, err)
	}

	user := &models.User{
		Username:      req.Username,
		Email:         req.Email,
		Phone:         req.Phone,
		Type:          userType,
		Status:        models.StatusActive,
		State:         models.StateOffline,
		PasswordHash:  hash,
		IsPasswordSet: true,
	}

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	userID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: email already in use", ErrConflict)
		}
		return nil, fmt.Errorf("%w: creating user: %v", ErrInternal, err)
	}
	undo = append(undo, func() {
		if derr := s.userRepo.Delete(ctx, userID); derr != nil {
			s.logger.Error("signup rollback: deleting user failed",
				zap.String("userID", userID), zap.Error(derr))
		}
	})

	profile := &models.Profile{UserID: userID}
	profileID, err := s.profileRepo.Create(ctx, profile)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("%w: creating profile: %v", ErrInternal, err)
	}
	undo = append(undo, func() {
		if derr := s.profileRepo.Delete(ctx, profileID); derr != nil {
			s.logger.Error("signup rollback: deleting profile failed",
				zap.String("profileID", profileID), zap.Error(derr))
		}
	})

	user.ProfileID = profileID
	if err := s.userRepo.Update(ctx, user); err != nil {
		rollback()
		return nil, fmt.Errorf("%w: linking profile to user: %v", ErrInternal, err)
	}

	token, err := s.issuer.Issue(userID)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("%w: issuing token: %v", ErrInternal, err)
	}

	user.Profile = profile
	s.publishUserCreated(user)

	return &models.AuthResult{Success: true, User: user, Token: token}, nil
}

func (s *identityService) publishUserCreated(user *models.User) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(map[string]string{"user": user.ID, "email": user.Email})
	if err != nil {
		return
	}
	if err := s.events.Publish(userCreatedQueue, body); err != nil {
		s.logger.Warn("publishing user.created event failed",
			zap.String("userID", user.ID), zap.Error(err))
	}
}

// Login resolves the caller by ID or phone and issues a fresh token. A
// missing user and a soft-deleted user are reported identically, so the
// response does not reveal whether the account ever existed.
func (s *identityService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResult, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case req.Phone != "":
		user, err = s.userRepo.GetByPhone(ctx, req.Phone)
	case req.User != "":
		if !validID(req.User) {
			return nil, fmt.Errorf("%w: please enter a valid user id", ErrValidation)
		}
		user, err = s.userRepo.GetByID(ctx, req.User)
	default:
		return nil, fmt.Errorf("%w: user id or phone is required", ErrValidation)
	}
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: User deleted!", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: resolving user: %v", ErrInternal, err)
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: User deleted!", ErrNotFound)
	}

	s.attachProfile(ctx, user)

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: issuing token: %v", ErrInternal, err)
	}
	return &models.AuthResult{Success: true, User: user, Token: token}, nil
}

// GetUser returns the profile-joined user.
func (s *identityService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if !validID(userID) {
		return nil, fmt.Errorf("%w: please enter a valid user id", ErrValidation)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: User not found!", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: fetching user: %v", ErrInternal, err)
	}
	s.attachProfile(ctx, user)
	return user, nil
}

// attachProfile joins the profile onto the user. A missing profile is not an
// error; the user is simply returned without one.
func (s *identityService) attachProfile(ctx context.Context, user *models.User) {
	profile, err := s.profileRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("joining profile failed",
				zap.String("userID", user.ID), zap.Error(err))
		}
		return
	}
	if profile.Picture != "" && s.pictures != nil {
		if url, perr := s.pictures.PresignDownload(ctx, profile.Picture); perr == nil {
			profile.PictureURL = url
		}
	}
	user.Profile = profile
}

// GetAllUsers lists profile-joined users, excluding the caller, with optional
// structured filters and a free-text search over name, email, and phone. The
// search happens in memory because the store cannot do substring matching.
func (s *identityService) GetAllUsers(ctx context.Context, req *models.ListUsersRequest) (*models.UserPage, error) {
	if req.Status != "" && req.Status != models.StatusActive && req.Status != models.StatusDeleted {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}
	if req.Type != "" && req.Type != models.TypeUser && req.Type != models.TypeAdmin {
		return nil, fmt.Errorf("%w: unknown type %q", ErrValidation, req.Type)
	}

	users, err := s.userRepo.List(ctx, db.UserListFilter{Type: req.Type, Status: req.Status})
	if err != nil {
		return nil, fmt.Errorf("%w: listing users: %v", ErrInternal, err)
	}

	q := strings.ToLower(strings.TrimSpace(req.Q))
	matched := make([]*models.User, 0, len(users))
	for _, user := range users {
		if user.ID == req.ActorID {
			continue
		}
		s.attachProfile(ctx, user)
		if q != "" && !matchesQuery(user, q) {
			continue
		}
		matched = append(matched, user)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	total := len(matched)
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &models.UserPage{
		Success:     true,
		Users:       matched[start:end],
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
	}, nil
}

func matchesQuery(user *models.User, q string) bool {
	fields := []string{user.Email, user.Phone}
	if user.Profile != nil {
		fields = append(fields, user.Profile.Name, user.Profile.Firstname, user.Profile.Lastname)
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// EditUserProfile applies the user-scoped and profile-scoped halves of the
// patch independently and reports their combined success. A false Success may
// therefore come with partially applied changes; callers re-read the returned
// user for the actual state.
func (s *identityService) EditUserProfile(ctx context.Context, actor *models.User, req *models.EditUserRequest) (*models.EditResult, error) {
	targetID := actor.ID
	if req.User != "" && req.User != actor.ID {
		if !actor.IsAdmin() {
			return nil, fmt.Errorf("%w: Unauthorized as ADMIN!", ErrUnauthorized)
		}
		if !validID(req.User) {
			return nil, fmt.Errorf("%w: Please enter valid user id!", ErrValidation)
		}
		exists, err := s.userRepo.ExistsByID(ctx, req.User)
		if err != nil {
			return nil, fmt.Errorf("%w: checking user: %v", ErrInternal, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: User not found!", ErrNotFound)
		}
		targetID = req.User
	}

	userOK := s.applyUserPatch(ctx, targetID, req)
	profileOK := s.applyProfilePatch(ctx, targetID, req)

	joined, err := s.GetUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &models.EditResult{Success: userOK && profileOK, User: joined}, nil
}

func (s *identityService) applyUserPatch(ctx context.Context, userID string, req *models.EditUserRequest) bool {
	if req.Phone == "" && req.Status == "" && req.FCM == "" && req.Device == "" &&
		req.Email == "" && req.NewPassword == "" {
		return true
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("edit: fetching user failed", zap.String("userID", userID), zap.Error(err))
		return false
	}

	if req.Email != "" && req.Email != user.Email {
		if !emailPattern.MatchString(req.Email) {
			return false
		}
		if err := s.userRepo.UpdateEmail(ctx, userID, req.Email); err != nil {
			s.logger.Warn("edit: changing email failed", zap.String("userID", userID), zap.Error(err))
			return false
		}
		user.Email = req.Email
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Status != "" {
		if req.Status != models.StatusActive && req.Status != models.StatusDeleted {
			return false
		}
		// Deletion is one-way; a deleted account is never resurrected.
		if user.Status == models.StatusDeleted && req.Status == models.StatusActive {
			return false
		}
		user.Status = req.Status
	}
	if req.FCM != "" || req.Device != "" {
		if req.FCM == "" || req.Device == "" {
			return false
		}
		replaced := false
		for i := range user.Devices {
			if user.Devices[i].Device == req.Device {
				user.Devices[i].FCM = req.FCM
				replaced = true
				break
			}
		}
		if !replaced {
			user.Devices = append(user.Devices, models.DeviceToken{Device: req.Device, FCM: req.FCM})
		}
	}
	if req.NewPassword != "" {
		hash, herr := auth.HashPassword(req.NewPassword)
		if herr != nil {
			s.logger.Error("edit: hashing password failed", zap.Error(herr))
			return false
		}
		user.PasswordHash = hash
		user.IsPasswordSet = true
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Warn("edit: updating user failed", zap.String("userID", userID), zap.Error(err))
		return false
	}
	return true
}

func (s *identityService) applyProfilePatch(ctx context.Context, userID string, req *models.EditUserRequest) bool {
	if req.Name == "" && req.Firstname == "" && req.Lastname == "" && req.Birthdate == nil &&
		req.Longitude == nil && req.Latitude == nil && req.Address == "" &&
		req.Picture == "" && !req.RemovePicture {
		return true
	}
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("edit: fetching profile failed", zap.String("userID", userID), zap.Error(err))
		return false
	}

	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.Firstname != "" {
		profile.Firstname = req.Firstname
	}
	if req.Lastname != "" {
		profile.Lastname = req.Lastname
	}
	if req.Birthdate != nil {
		profile.Birthdate = req.Birthdate
	}
	if req.Longitude != nil {
		profile.Longitude = *req.Longitude
	}
	if req.Latitude != nil {
		profile.Latitude = *req.Latitude
	}
	if req.Address != "" {
		profile.Address = req.Address
	}
	if req.Picture != "" {
		profile.Picture = req.Picture
	}
	if req.RemovePicture {
		profile.Picture = ""
	}

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		s.logger.Warn("edit: updating profile failed", zap.String("userID", userID), zap.Error(err))
		return false
	}
	return true
}

// SetState flips the presence state. modified=false covers both "no such
// user" and "state unchanged"; the store cannot distinguish them cheaply and
// callers only need to know whether a write happened.
func (s *identityService) SetState(ctx context.Context, userID, state string) (bool, error) {
	if !validID(userID) {
		return false, fmt.Errorf("%w: please enter a valid user id", ErrValidation)
	}
	if state != models.StateOnline && state != models.StateOffline {
		return false, fmt.Errorf("%w: unknown state %q", ErrValidation, state)
	}
	modified, err := s.userRepo.SetState(ctx, userID, state)
	if err != nil {
		return false, fmt.Errorf("%w: setting state: %v", ErrInternal, err)
	}
	return modified, nil
}

// PresignPictureUpload hands the client a short-lived URL for uploading a
// profile picture directly to object storage. The returned key is what the
// client later submits as the picture field.
func (s *identityService) PresignPictureUpload(ctx context.Context, userID string) (string, string, error) {
	if s.pictures == nil {
		return "", "", fmt.Errorf("%w: picture storage is not configured", ErrExternalService)
	}
	if !validID(userID) {
		return "", "", fmt.Errorf("%w: please enter a valid user id", ErrValidation)
	}
	key := pictureKeyPrefix + userID + "/" + uuid.NewString()
	url, err := s.pictures.PresignUpload(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("%w: presigning upload: %v", ErrExternalService, err)
	}
	return key, url, nil
}

// PictureURL resolves a stored picture key to a short-lived download URL.
func (s *identityService) PictureURL(ctx context.Context, key string) (string, error) {
	if s.pictures == nil {
		return "", fmt.Errorf("%w: picture storage is not configured", ErrExternalService)
	}
	if key == "" {
		return "", fmt.Errorf("%w: picture key is required", ErrValidation)
	}
	url, err := s.pictures.PresignDownload(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: presigning download: %v", ErrExternalService, err)
	}
	return url, nil
}
