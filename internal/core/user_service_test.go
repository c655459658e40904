package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"paylane-backend-go/internal/models"
)

type identityFixture struct {
	users    *memUserRepo
	profiles *memProfileRepo
	issuer   *fakeIssuer
	events   *fakePublisher
	pictures *fakePictures
	svc      IdentityService
}

func newIdentityFixture() *identityFixture {
	f := &identityFixture{
		users:    newMemUserRepo(),
		profiles: newMemProfileRepo(),
		issuer:   &fakeIssuer{},
		events:   &fakePublisher{},
		pictures: &fakePictures{},
	}
	f.svc = NewIdentityService(f.users, f.profiles, f.issuer, f.pictures, f.events, nil)
	return f
}

func (f *identityFixture) signup(t *testing.T, email, phone string) *models.AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), &models.SignupRequest{
		Email:    email,
		Password: "pw123456",
		Phone:    phone,
	})
	if err != nil {
		t.Fatalf("Signup error: %v", err)
	}
	return res
}

func (f *identityFixture) signupAdmin(t *testing.T, email string) *models.AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), &models.SignupRequest{
		Email:    email,
		Password: "pw123456",
		Type:     models.TypeAdmin,
	})
	if err != nil {
		t.Fatalf("Signup error: %v", err)
	}
	return res
}

func TestSignup_CreatesUserProfileAndToken(t *testing.T) {
	f := newIdentityFixture()

	res := f.signup(t, "alice@example.com", "111")

	if !res.Success || res.Token == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.User.Profile == nil {
		t.Fatalf("expected joined profile")
	}
	if res.User.ProfileID != res.User.Profile.ID {
		t.Fatalf("profile back-reference not set: %q vs %q", res.User.ProfileID, res.User.Profile.ID)
	}
	if res.User.Status != models.StatusActive || res.User.State != models.StateOffline {
		t.Fatalf("unexpected defaults: %+v", res.User)
	}
	if res.User.PasswordHash == "pw123456" {
		t.Fatalf("password stored in plaintext")
	}
	if len(f.events.events) != 1 || f.events.events[0].queue != userCreatedQueue {
		t.Fatalf("expected a user.created event, got %+v", f.events.events)
	}
}

func TestSignup_OptionalUsernamePersisted(t *testing.T) {
	f := newIdentityFixture()

	res, err := f.svc.Signup(context.Background(), &models.SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "pw123456",
	})
	if err != nil {
		t.Fatalf("Signup error: %v", err)
	}
	if res.User.Username != "alice" {
		t.Fatalf("username not set on result: %q", res.User.Username)
	}
	stored, err := f.users.GetByID(context.Background(), res.User.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if stored.Username != "alice" {
		t.Fatalf("username not persisted: %q", stored.Username)
	}

	// absent username stays absent
	plain := f.signup(t, "bob@example.com", "")
	if plain.User.Username != "" {
		t.Fatalf("unexpected username: %q", plain.User.Username)
	}
}

func TestSignup_MalformedEmail(t *testing.T) {
	f := newIdentityFixture()

	_, err := f.svc.Signup(context.Background(), &models.SignupRequest{Email: "not-an-email", Password: "pw"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSignup_DuplicateEmailConflict(t *testing.T) {
	f := newIdentityFixture()
	f.signup(t, "alice@example.com", "")

	_, err := f.svc.Signup(context.Background(), &models.SignupRequest{Email: "alice@example.com", Password: "pw123456"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// the winner's records must be untouched
	if len(f.users.users) != 1 || len(f.profiles.profiles) != 1 {
		t.Fatalf("winner records disturbed: %d users, %d profiles", len(f.users.users), len(f.profiles.profiles))
	}
}

func TestSignup_DuplicatePhoneConflict(t *testing.T) {
	f := newIdentityFixture()
	f.signup(t, "alice@example.com", "111")

	_, err := f.svc.Signup(context.Background(), &models.SignupRequest{Email: "bob@example.com", Password: "pw123456", Phone: "111"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSignup_ProfileFailureRollsBackUser(t *testing.T) {
	f := newIdentityFixture()
	f.profiles.createErr = errors.New("store down")

	_, err := f.svc.Signup(context.Background(), &models.SignupRequest{Email: "alice@example.com", Password: "pw123456"})
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if len(f.users.users) != 0 {
		t.Fatalf("user survived a failed signup")
	}

	// the email reservation must be released so a retry can succeed
	f.profiles.createErr = nil
	f.signup(t, "alice@example.com", "")
}

func TestSignup_BackfillFailureRollsBackBoth(t *testing.T) {
	f := newIdentityFixture()
	f.users.updateErr = errors.New("store down")

	_, err := f.svc.Signup(context.Background(), &models.SignupRequest{Email: "alice@example.com", Password: "pw123456"})
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	f.users.updateErr = nil
	f.users.deleteErr = nil
	if len(f.users.users) != 0 || len(f.profiles.profiles) != 0 {
		t.Fatalf("orphaned records: %d users, %d profiles", len(f.users.users), len(f.profiles.profiles))
	}
}

func TestLogin_ByIDAndByPhone(t *testing.T) {
	f := newIdentityFixture()
	created := f.signup(t, "alice@example.com", "111")

	byID, err := f.svc.Login(context.Background(), &models.LoginRequest{User: created.User.ID})
	if err != nil {
		t.Fatalf("Login by id error: %v", err)
	}
	if byID.User.ID != created.User.ID || byID.Token == "" {
		t.Fatalf("unexpected result: %+v", byID)
	}
	if byID.User.Profile == nil {
		t.Fatalf("expected joined profile on login")
	}

	byPhone, err := f.svc.Login(context.Background(), &models.LoginRequest{Phone: "111"})
	if err != nil {
		t.Fatalf("Login by phone error: %v", err)
	}
	if byPhone.User.ID != created.User.ID {
		t.Fatalf("phone login resolved wrong user: %q", byPhone.User.ID)
	}
}

func TestLogin_DeletedAndMissingLookAlike(t *testing.T) {
	f := newIdentityFixture()
	created := f.signup(t, "alice@example.com", "")

	// soft-delete the account
	u := f.users.users[created.User.ID]
	u.Status = models.StatusDeleted

	_, errDeleted := f.svc.Login(context.Background(), &models.LoginRequest{User: created.User.ID})
	_, errMissing := f.svc.Login(context.Background(), &models.LoginRequest{User: "no-such-user"})

	if !errors.Is(errDeleted, ErrNotFound) || !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for both, got %v / %v", errDeleted, errMissing)
	}
	if errDeleted.Error() != errMissing.Error() {
		t.Fatalf("deleted and missing must be indistinguishable: %q vs %q", errDeleted, errMissing)
	}
}

func TestEditUserProfile_SelfEdit(t *testing.T) {
	f := newIdentityFixture()
	created := f.signup(t, "alice@example.com", "")
	actor, _ := f.users.GetByID(context.Background(), created.User.ID)

	res, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		Firstname: "Alice",
		Lastname:  "Smith",
		Phone:     "222",
	})
	if err != nil {
		t.Fatalf("EditUserProfile error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected Success=true")
	}
	if res.User.Phone != "222" {
		t.Fatalf("phone not applied: %q", res.User.Phone)
	}
	if res.User.Profile.Firstname != "Alice" || res.User.Profile.Lastname != "Smith" {
		t.Fatalf("profile patch not applied: %+v", res.User.Profile)
	}
}

func TestEditUserProfile_NonAdminCannotEditOthers(t *testing.T) {
	f := newIdentityFixture()
	alice := f.signup(t, "alice@example.com", "")
	bob := f.signup(t, "bob@example.com", "")
	actor, _ := f.users.GetByID(context.Background(), alice.User.ID)

	_, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		User: bob.User.ID, Firstname: "Hax",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEditUserProfile_AdminEditsOther(t *testing.T) {
	f := newIdentityFixture()
	admin := f.signupAdmin(t, "admin@example.com")
	bob := f.signup(t, "bob@example.com", "")
	actor, _ := f.users.GetByID(context.Background(), admin.User.ID)

	res, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		User: bob.User.ID, Firstname: "Bob",
	})
	if err != nil {
		t.Fatalf("EditUserProfile error: %v", err)
	}
	if res.User.ID != bob.User.ID || res.User.Profile.Firstname != "Bob" {
		t.Fatalf("admin edit not applied: %+v", res.User)
	}
}

func TestEditUserProfile_AdminTargetMissing(t *testing.T) {
	f := newIdentityFixture()
	admin := f.signupAdmin(t, "admin@example.com")
	actor, _ := f.users.GetByID(context.Background(), admin.User.ID)

	_, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		User: "no-such-user", Firstname: "X",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEditUserProfile_PartialFailureReportsFalse(t *testing.T) {
	f := newIdentityFixture()
	created := f.signup(t, "alice@example.com", "")
	actor, _ := f.users.GetByID(context.Background(), created.User.ID)
	f.profiles.updateErr = errors.New("store down")

	res, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		Phone:     "222",
		Firstname: "Alice",
	})
	if err != nil {
		t.Fatalf("EditUserProfile error: %v", err)
	}
	if res.Success {
		t.Fatalf("expected Success=false when one half failed")
	}
	// the user half was applied anyway
	if res.User.Phone != "222" {
		t.Fatalf("user half should have been applied: %q", res.User.Phone)
	}
}

func TestEditUserProfile_DeletedStaysDeleted(t *testing.T) {
	f := newIdentityFixture()
	created := f.signup(t, "alice@example.com", "")
	f.users.users[created.User.ID].Status = models.StatusDeleted
	actor := f.users.users[created.User.ID]

	res, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		Status: models.StatusActive,
	})
	if err != nil {
		t.Fatalf("EditUserProfile error: %v", err)
	}
	if res.Success {
		t.Fatalf("resurrection must not report success")
	}
	if res.User.Status != models.StatusDeleted {
		t.Fatalf("deleted account resurrected")
	}
}

func TestEditUserProfile_DeviceTokenAppendAndReplace(t *testing.T) {
	f := newIdentityFixture()
	created := f.signup(t, "alice@example.com", "")
	actor, _ := f.users.GetByID(context.Background(), created.User.ID)

	if _, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		Device: "phone-1", FCM: "fcm-a",
	}); err != nil {
		t.Fatalf("first device registration error: %v", err)
	}
	if _, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		Device: "phone-2", FCM: "fcm-b",
	}); err != nil {
		t.Fatalf("second device registration error: %v", err)
	}
	// re-registering phone-1 replaces its token instead of appending
	if _, err := f.svc.EditUserProfile(context.Background(), actor, &models.EditUserRequest{
		Device: "phone-1", FCM: "fcm-c",
	}); err != nil {
		t.Fatalf("re-registration error: %v", err)
	}

	u, _ := f.users.GetByID(context.Background(), created.User.ID)
	if len(u.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(u.Devices))
	}
	for _, d := range u.Devices {
		if d.Device == "phone-1" && d.FCM != "fcm-c" {
			t.Fatalf("device token not replaced: %+v", d)
		}
	}
}

func TestSetState_ModifiedSemantics(t *testing.T) {
	f := newIdentityFixture()
	created := f.signup(t, "alice@example.com", "")

	modified, err := f.svc.SetState(context.Background(), created.User.ID, models.StateOnline)
	if err != nil || !modified {
		t.Fatalf("expected modified=true, got %v / %v", modified, err)
	}

	// same state again: no write happened
	modified, err = f.svc.SetState(context.Background(), created.User.ID, models.StateOnline)
	if err != nil || modified {
		t.Fatalf("expected modified=false for no-op, got %v / %v", modified, err)
	}

	// missing user is indistinguishable from a no-op
	modified, err = f.svc.SetState(context.Background(), "no-such-user", models.StateOffline)
	if err != nil || modified {
		t.Fatalf("expected modified=false for missing user, got %v / %v", modified, err)
	}

	// invalid state is a validation failure, not a silent no-op
	_, err = f.svc.SetState(context.Background(), created.User.ID, "sleeping")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestGetAllUsers_ExcludesActorAndSearches(t *testing.T) {
	f := newIdentityFixture()
	alice := f.signup(t, "alice@example.com", "111")
	bob := f.signup(t, "bob@example.com", "222")
	f.signup(t, "carol@example.com", "333")

	// name carol via profile edit
	carolActor, _ := f.users.GetByEmail(context.Background(), "carol@example.com")
	if _, err := f.svc.EditUserProfile(context.Background(), carolActor, &models.EditUserRequest{Firstname: "Carol"}); err != nil {
		t.Fatalf("edit error: %v", err)
	}

	page, err := f.svc.GetAllUsers(context.Background(), &models.ListUsersRequest{ActorID: alice.User.ID, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("GetAllUsers error: %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("expected 2 users (actor excluded), got %d", page.TotalCount)
	}
	for _, u := range page.Users {
		if u.ID == alice.User.ID {
			t.Fatalf("actor leaked into listing")
		}
	}

	// search by profile name, case-insensitive
	page, err = f.svc.GetAllUsers(context.Background(), &models.ListUsersRequest{ActorID: alice.User.ID, Q: "carol"})
	if err != nil {
		t.Fatalf("GetAllUsers search error: %v", err)
	}
	if page.TotalCount != 1 {
		t.Fatalf("expected 1 match for carol, got %d", page.TotalCount)
	}

	// search by phone
	page, err = f.svc.GetAllUsers(context.Background(), &models.ListUsersRequest{ActorID: alice.User.ID, Q: "222"})
	if err != nil {
		t.Fatalf("GetAllUsers search error: %v", err)
	}
	if page.TotalCount != 1 || page.Users[0].ID != bob.User.ID {
		t.Fatalf("expected bob by phone, got %+v", page.Users)
	}
}

func TestGetAllUsers_Pagination(t *testing.T) {
	f := newIdentityFixture()
	actor := f.signup(t, "actor@example.com", "")
	for i := 0; i < 5; i++ {
		f.signup(t, fmt.Sprintf("user%d@example.com", i), "")
	}

	page, err := f.svc.GetAllUsers(context.Background(), &models.ListUsersRequest{ActorID: actor.User.ID, Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("GetAllUsers error: %v", err)
	}
	if page.TotalCount != 5 || page.TotalPages != 3 || page.CurrentPage != 2 {
		t.Fatalf("unexpected pagination: %+v", page)
	}
	if len(page.Users) != 2 {
		t.Fatalf("expected 2 users on page 2, got %d", len(page.Users))
	}
}

func TestPresignPictureUpload(t *testing.T) {
	f := newIdentityFixture()
	created := f.signup(t, "alice@example.com", "")

	key, url, err := f.svc.PresignPictureUpload(context.Background(), created.User.ID)
	if err != nil {
		t.Fatalf("PresignPictureUpload error: %v", err)
	}
	if key == "" || url == "" {
		t.Fatalf("empty key or url")
	}

	// without storage configured the feature reports an upstream failure
	bare := NewIdentityService(f.users, f.profiles, f.issuer, nil, nil, nil)
	if _, _, err := bare.PresignPictureUpload(context.Background(), created.User.ID); !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}
