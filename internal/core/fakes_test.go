package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paylane-backend-go/internal/db"
	"paylane-backend-go/internal/models"
)

// ---- in-memory repositories ----

type memUserRepo struct {
	seq    int
	users  map[string]*models.User
	emails map[string]string // normalized email -> user id

	createErr error
	updateErr error
	deleteErr error
	stateErr  error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*models.User{}, emails: map[string]string{}}
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Devices = append([]models.DeviceToken(nil), u.Devices...)
	c.Profile = nil
	return &c
}

func (r *memUserRepo) Create(ctx context.Context, user *models.User) (string, error) {
	if r.createErr != nil {
		return "", r.createErr
	}
	if _, taken := r.emails[normEmail(user.Email)]; taken {
		return "", fmt.Errorf("email taken: %w", db.ErrAlreadyExists)
	}
	r.seq++
	id := fmt.Sprintf("user-%d", r.seq)
	user.ID = id
	r.users[id] = cloneUser(user)
	r.emails[normEmail(user.Email)] = id
	return id, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, userID string) (*models.User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, db.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := r.emails[normEmail(email)]
	if !ok {
		return nil, fmt.Errorf("email %s: %w", email, db.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *memUserRepo) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	for _, u := range r.users {
		if u.Phone == phone {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("phone %s: %w", phone, db.ErrNotFound)
}

func (r *memUserRepo) ExistsByID(ctx context.Context, userID string) (bool, error) {
	_, ok := r.users[userID]
	return ok, nil
}

func (r *memUserRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	for _, u := range r.users {
		if u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) Update(ctx context.Context, user *models.User) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, db.ErrNotFound)
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memUserRepo) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, db.ErrNotFound)
	}
	if normEmail(u.Email) == normEmail(newEmail) {
		return nil
	}
	if _, taken := r.emails[normEmail(newEmail)]; taken {
		return fmt.Errorf("email taken: %w", db.ErrAlreadyExists)
	}
	delete(r.emails, normEmail(u.Email))
	u.Email = newEmail
	r.emails[normEmail(newEmail)] = userID
	return nil
}

func (r *memUserRepo) SetState(ctx context.Context, userID, state string) (bool, error) {
	if r.stateErr != nil {
		return false, r.stateErr
	}
	u, ok := r.users[userID]
	if !ok {
		return false, nil
	}
	if u.State == state {
		return false, nil
	}
	u.State = state
	return true, nil
}

func (r *memUserRepo) Delete(ctx context.Context, userID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, db.ErrNotFound)
	}
	delete(r.emails, normEmail(u.Email))
	delete(r.users, userID)
	return nil
}

func (r *memUserRepo) List(ctx context.Context, filter db.UserListFilter) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.users {
		if filter.Type != "" && u.Type != filter.Type {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		out = append(out, cloneUser(u))
	}
	return out, nil
}

type memProfileRepo struct {
	seq      int
	profiles map[string]*models.Profile // id -> profile

	createErr error
	updateErr error
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: map[string]*models.Profile{}}
}

func cloneProfile(p *models.Profile) *models.Profile {
	c := *p
	return &c
}

func (r *memProfileRepo) Create(ctx context.Context, profile *models.Profile) (string, error) {
	if r.createErr != nil {
		return "", r.createErr
	}
	r.seq++
	id := fmt.Sprintf("profile-%d", r.seq)
	profile.ID = id
	r.profiles[id] = cloneProfile(profile)
	return id, nil
}

func (r *memProfileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	for _, p := range r.profiles {
		if p.UserID == userID {
			return cloneProfile(p), nil
		}
	}
	return nil, fmt.Errorf("profile for %s: %w", userID, db.ErrNotFound)
}

func (r *memProfileRepo) Update(ctx context.Context, profile *models.Profile) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.profiles[profile.ID]; !ok {
		return fmt.Errorf("profile %s: %w", profile.ID, db.ErrNotFound)
	}
	r.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

func (r *memProfileRepo) Delete(ctx context.Context, profileID string) error {
	if _, ok := r.profiles[profileID]; !ok {
		return fmt.Errorf("profile %s: %w", profileID, db.ErrNotFound)
	}
	delete(r.profiles, profileID)
	return nil
}

type memTokenRepo struct {
	seq    int
	tokens map[string]*models.PasswordResetToken

	createErr error
	deleteErr error
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: map[string]*models.PasswordResetToken{}}
}

func (r *memTokenRepo) Create(ctx context.Context, token *models.PasswordResetToken) (string, error) {
	if r.createErr != nil {
		return "", r.createErr
	}
	r.seq++
	id := fmt.Sprintf("token-%d", r.seq)
	token.ID = id
	c := *token
	r.tokens[id] = &c
	return id, nil
}

func (r *memTokenRepo) GetByUserID(ctx context.Context, userID string) (*models.PasswordResetToken, error) {
	for _, t := range r.tokens {
		if t.UserID == userID {
			c := *t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("token for %s: %w", userID, db.ErrNotFound)
}

func (r *memTokenRepo) GetByUserAndToken(ctx context.Context, userID, token string) (*models.PasswordResetToken, error) {
	for _, t := range r.tokens {
		if t.UserID == userID && t.Token == token {
			c := *t
			return &c, nil
		}
	}
	return nil, fmt.Errorf("token for %s: %w", userID, db.ErrNotFound)
}

func (r *memTokenRepo) Delete(ctx context.Context, tokenID string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.tokens[tokenID]; !ok {
		return fmt.Errorf("token %s: %w", tokenID, db.ErrNotFound)
	}
	delete(r.tokens, tokenID)
	return nil
}

type memAccountRepo struct {
	seq      int
	accounts map[string]*models.PaymentAccount

	createErr error
	updateErr error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: map[string]*models.PaymentAccount{}}
}

func cloneAccount(a *models.PaymentAccount) *models.PaymentAccount {
	c := *a
	return &c
}

func (r *memAccountRepo) Create(ctx context.Context, account *models.PaymentAccount) (string, error) {
	if r.createErr != nil {
		return "", r.createErr
	}
	r.seq++
	id := fmt.Sprintf("acct-%d", r.seq)
	account.ID = id
	r.accounts[id] = cloneAccount(account)
	return id, nil
}

func (r *memAccountRepo) Update(ctx context.Context, account *models.PaymentAccount) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.accounts[account.ID]; !ok {
		return fmt.Errorf("account %s: %w", account.ID, db.ErrNotFound)
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *memAccountRepo) GetByUserAndKind(ctx context.Context, userID, kind string) (*models.PaymentAccount, error) {
	for _, a := range r.accounts {
		if a.UserID == userID && a.Kind == kind {
			return cloneAccount(a), nil
		}
	}
	return nil, fmt.Errorf("account for %s/%s: %w", userID, kind, db.ErrNotFound)
}

func (r *memAccountRepo) GetByExternalID(ctx context.Context, externalID string) (*models.PaymentAccount, error) {
	for _, a := range r.accounts {
		if a.ExternalID == externalID {
			return cloneAccount(a), nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", externalID, db.ErrNotFound)
}

func (r *memAccountRepo) ListByUser(ctx context.Context, userID string) ([]*models.PaymentAccount, error) {
	var out []*models.PaymentAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

// ---- collaborator fakes ----

type fakeIssuer struct {
	seq      int
	issueErr error
}

func (f *fakeIssuer) Issue(userID string) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	f.seq++
	return fmt.Sprintf("tok-%s-%d", userID, f.seq), nil
}

func (f *fakeIssuer) Verify(token string) (string, error) {
	trimmed := strings.TrimPrefix(token, "tok-")
	i := strings.LastIndex(trimmed, "-")
	if trimmed == token || i <= 0 {
		return "", fmt.Errorf("bad token")
	}
	return trimmed[:i], nil
}

type sentMail struct {
	recipient string
	subject   string
	body      string
}

type fakeMailer struct {
	sent    []sentMail
	sendErr error
}

func (f *fakeMailer) Send(recipient, subject, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMail{recipient: recipient, subject: subject, body: body})
	return nil
}

type fakeProcessor struct {
	customers int
	cards     int
	accounts  int

	customerErr error
	sourceErr   error
	accountErr  error

	chargeErr   error
	refundErr   error
	transferErr error
	topupErr    error

	lastTransfer *TransferParams

	webhookEvent *WebhookEvent
	webhookErr   error
}

func (f *fakeProcessor) CreateCustomer(ctx context.Context, email string) (*Customer, error) {
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	f.customers++
	return &Customer{ID: fmt.Sprintf("cus_%d", f.customers), Raw: map[string]interface{}{"email": email}}, nil
}

func (f *fakeProcessor) AttachSource(ctx context.Context, customerID, source string) (*Card, error) {
	if f.sourceErr != nil {
		return nil, f.sourceErr
	}
	f.cards++
	return &Card{ID: fmt.Sprintf("card_%d", f.cards), Raw: map[string]interface{}{"customer": customerID}}, nil
}

func (f *fakeProcessor) CreateConnectedAccount(ctx context.Context, email string) (*ConnectedAccount, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	f.accounts++
	return &ConnectedAccount{ID: fmt.Sprintf("acct_%d", f.accounts), Raw: map[string]interface{}{"email": email}}, nil
}

func (f *fakeProcessor) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	return "https://connect.example/" + accountID, nil
}

func (f *fakeProcessor) CreateCharge(ctx context.Context, params *ChargeParams) (*Charge, error) {
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return &Charge{ID: "ch_1", Amount: params.Amount, Status: "succeeded"}, nil
}

func (f *fakeProcessor) CreateRefund(ctx context.Context, chargeID string) (*Refund, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &Refund{ID: "re_1", Status: "succeeded"}, nil
}

func (f *fakeProcessor) CreateTransfer(ctx context.Context, params *TransferParams) (*Transfer, error) {
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	f.lastTransfer = params
	return &Transfer{ID: "tr_1", Amount: params.Amount, Destination: params.Destination}, nil
}

func (f *fakeProcessor) CreateTopup(ctx context.Context, params *TopupParams) (*Topup, error) {
	if f.topupErr != nil {
		return nil, f.topupErr
	}
	return &Topup{ID: "tu_1", Amount: params.Amount, Status: "pending"}, nil
}

func (f *fakeProcessor) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if f.webhookErr != nil {
		return nil, f.webhookErr
	}
	return f.webhookEvent, nil
}

type fakeCache struct {
	data map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) { return f.data[key], nil }

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	return nil
}

type published struct {
	queue string
	body  []byte
}

type fakePublisher struct {
	events []published
}

func (f *fakePublisher) Publish(queue string, body []byte) error {
	f.events = append(f.events, published{queue: queue, body: body})
	return nil
}

type fakePictures struct {
	uploadErr error
}

func (f *fakePictures) PresignUpload(ctx context.Context, key string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "https://storage.example/put/" + key, nil
}

func (f *fakePictures) PresignDownload(ctx context.Context, key string) (string, error) {
	return "https://storage.example/get/" + key, nil
}
