package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paylane-backend-go/internal/db"
	"paylane-backend-go/internal/models"
)

const (
	// eventExternalAccountCreated signals that the processor finished
	// attaching an external account (bank account or debit card) to a
	// connected account. It is the trigger for flipping the connection
	// flag on our side.
	eventExternalAccountCreated = "account.external_account.created"

	accountConnectedQueue = "payment.account.connected"

	webhookDedupPrefix = "webhook:event:"
	webhookDedupTTL    = 24 * time.Hour
)

type paymentService struct {
	accountRepo db.PaymentAccountRepository
	userRepo    db.UserRepository
	profileRepo db.ProfileRepository
	processor   PaymentProcessor
	cache       Cache
	events      EventPublisher
	logger      *zap.Logger
}

// NewPaymentService wires the payment provisioning service. cache and events
// may be nil; webhook dedup and event publication degrade to no-ops.
func NewPaymentService(
	accountRepo db.PaymentAccountRepository,
	userRepo db.UserRepository,
	profileRepo db.ProfileRepository,
	processor PaymentProcessor,
	cache Cache,
	events EventPublisher,
	logger *zap.Logger,
) PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &paymentService{
		accountRepo: accountRepo,
		userRepo:    userRepo,
		profileRepo: profileRepo,
		processor:   processor,
		cache:       cache,
		events:      events,
		logger:      logger,
	}
}

// ProvisionCustomerSource attaches a card source to the user's processor
// customer, creating the customer first if the user has never had one.
// Idempotency is by existence: a repeated call reuses the stored customer and
// attaches the new source, updating the single per-user customer record in
// place rather than growing a second one.
func (s *paymentService) ProvisionCustomerSource(ctx context.Context, userID, email, source, cardHolderName string) (*models.PaymentAccount, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: Please enter source token!", ErrValidation)
	}
	if cardHolderName == "" {
		return nil, fmt.Errorf("%w: Please enter card holder name!", ErrValidation)
	}

	existing, err := s.accountRepo.GetByUserAndKind(ctx, userID, models.PaymentKindCustomer)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: fetching payment account: %v", ErrInternal, err)
	}

	customerID := ""
	if existing != nil {
		customerID = existing.CustomerID
	} else {
		customer, cerr := s.processor.CreateCustomer(ctx, email)
		if cerr != nil {
			return nil, fmt.Errorf("%w: creating customer: %v", ErrExternalService, cerr)
		}
		customerID = customer.ID
	}

	card, err := s.processor.AttachSource(ctx, customerID, source)
	if err != nil {
		return nil, fmt.Errorf("%w: attaching source: %v", ErrExternalService, err)
	}

	if existing != nil {
		existing.ExternalID = card.ID
		existing.CardHolderName = cardHolderName
		existing.Account = card.Raw
		if err := s.accountRepo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("%w: updating payment account: %v", ErrInternal, err)
		}
		return existing, nil
	}

	account := &models.PaymentAccount{
		UserID:         userID,
		Kind:           models.PaymentKindCustomer,
		ExternalID:     card.ID,
		CustomerID:     customerID,
		CardHolderName: cardHolderName,
		Account:        card.Raw,
	}
	if _, err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("%w: storing payment account: %v", ErrInternal, err)
	}
	return account, nil
}

// ProvisionConnectedAccount creates the user's payee-side processor account.
// A repeated call returns the existing record unchanged; the connection flag
// stays false until the webhook reconciliation confirms an external account.
func (s *paymentService) ProvisionConnectedAccount(ctx context.Context, userID, email string) (*models.PaymentAccount, error) {
	existing, err := s.accountRepo.GetByUserAndKind(ctx, userID, models.PaymentKindConnected)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: fetching payment account: %v", ErrInternal, err)
	}

	processorAccount, err := s.processor.CreateConnectedAccount(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: creating connected account: %v", ErrExternalService, err)
	}

	account := &models.PaymentAccount{
		UserID:     userID,
		Kind:       models.PaymentKindConnected,
		ExternalID: processorAccount.ID,
		Account:    processorAccount.Raw,
	}
	if _, err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("%w: storing payment account: %v", ErrInternal, err)
	}

	// Best-effort back-reference; the account record itself is already
	// durable and findable by user.
	if profile, perr := s.profileRepo.GetByUserID(ctx, userID); perr == nil {
		profile.PaymentAccountID = account.ID
		if uerr := s.profileRepo.Update(ctx, profile); uerr != nil {
			s.logger.Warn("linking payment account to profile failed",
				zap.String("userID", userID), zap.Error(uerr))
		}
	}

	return account, nil
}

// CreateAccountLink produces the processor-hosted onboarding URL for the
// user's connected account.
func (s *paymentService) CreateAccountLink(ctx context.Context, userID, refreshURL, returnURL string) (string, error) {
	account, err := s.accountRepo.GetByUserAndKind(ctx, userID, models.PaymentKindConnected)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", fmt.Errorf("%w: no connected payment account", ErrNotFound)
		}
		return "", fmt.Errorf("%w: fetching payment account: %v", ErrInternal, err)
	}
	url, err := s.processor.CreateAccountLink(ctx, account.ExternalID, refreshURL, returnURL)
	if err != nil {
		return "", fmt.Errorf("%w: creating account link: %v", ErrExternalService, err)
	}
	return url, nil
}

// Reconcile verifies a processor webhook and applies its effect. Only the
// external-account-created event mutates state; everything else is accepted
// and ignored so the processor stops retrying. Events referencing accounts we
// do not track are also acknowledged: failing them would only queue retries
// for a record that will never appear.
func (s *paymentService) Reconcile(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := s.processor.VerifyWebhook(payload, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: webhook rejected", ErrSecurity)
	}

	if event.Type != eventExternalAccountCreated {
		s.logger.Debug("ignoring webhook event", zap.String("type", event.Type))
		return event, nil
	}

	if s.alreadySeen(ctx, event.ID) {
		return event, nil
	}

	account, err := s.accountRepo.GetByExternalID(ctx, event.Account)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("webhook references unknown connected account",
				zap.String("account", event.Account))
			return event, nil
		}
		return nil, fmt.Errorf("%w: resolving payment account: %v", ErrInternal, err)
	}

	user, err := s.userRepo.GetByID(ctx, account.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("payment account references missing user",
				zap.String("userID", account.UserID))
			return event, nil
		}
		return nil, fmt.Errorf("%w: resolving user: %v", ErrInternal, err)
	}

	// Both flag flips are idempotent; a redelivered event finds them set
	// and writes nothing. The connected event is emitted only when a flag
	// actually flipped, so redeliveries stay silent even without the cache.
	flipped := false
	if !user.IsStripeConnected {
		user.IsStripeConnected = true
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("%w: updating user: %v", ErrInternal, err)
		}
		flipped = true
	}
	if !account.IsConnected {
		account.IsConnected = true
		if err := s.accountRepo.Update(ctx, account); err != nil {
			return nil, fmt.Errorf("%w: updating payment account: %v", ErrInternal, err)
		}
		flipped = true
	}

	s.markSeen(ctx, event.ID)
	if flipped {
		s.publishConnected(user.ID, account.ExternalID)
	}

	return event, nil
}

func (s *paymentService) alreadySeen(ctx context.Context, eventID string) bool {
	if s.cache == nil || eventID == "" {
		return false
	}
	v, err := s.cache.Get(ctx, webhookDedupPrefix+eventID)
	return err == nil && v != ""
}

func (s *paymentService) markSeen(ctx context.Context, eventID string) {
	if s.cache == nil || eventID == "" {
		return
	}
	if err := s.cache.Set(ctx, webhookDedupPrefix+eventID, "1", webhookDedupTTL); err != nil {
		s.logger.Warn("recording webhook event id failed",
			zap.String("eventID", eventID), zap.Error(err))
	}
}

func (s *paymentService) publishConnected(userID, accountID string) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(map[string]string{"user": userID, "account": accountID})
	if err != nil {
		return
	}
	if err := s.events.Publish(accountConnectedQueue, body); err != nil {
		s.logger.Warn("publishing payment.account.connected event failed",
			zap.String("userID", userID), zap.Error(err))
	}
}

// Charge bills a customer's source.
func (s *paymentService) Charge(ctx context.Context, req *models.ChargeRequest) (*Charge, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: Please enter amount!", ErrValidation)
	}
	if req.Source == "" {
		return nil, fmt.Errorf("%w: Please enter source!", ErrValidation)
	}
	if req.CustomerID == "" {
		return nil, fmt.Errorf("%w: Please enter customer!", ErrValidation)
	}
	charge, err := s.processor.CreateCharge(ctx, &ChargeParams{
		CustomerID:  req.CustomerID,
		Amount:      req.Amount,
		Source:      req.Source,
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating charge: %v", ErrExternalService, err)
	}
	return charge, nil
}

// Refund reverses a charge in full.
func (s *paymentService) Refund(ctx context.Context, chargeID string) (*Refund, error) {
	if chargeID == "" {
		return nil, fmt.Errorf("%w: Please enter charge id!", ErrValidation)
	}
	refund, err := s.processor.CreateRefund(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("%w: creating refund: %v", ErrExternalService, err)
	}
	return refund, nil
}

// Transfer moves funds to a user's connected account. The destination is
// always resolved from the stored record; callers never pass raw processor
// account ids.
func (s *paymentService) Transfer(ctx context.Context, req *models.TransferRequest) (*Transfer, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: Please enter amount!", ErrValidation)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: Please enter user!", ErrValidation)
	}
	account, err := s.accountRepo.GetByUserAndKind(ctx, req.UserID, models.PaymentKindConnected)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: no connected payment account", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: fetching payment account: %v", ErrInternal, err)
	}
	transfer, err := s.processor.CreateTransfer(ctx, &TransferParams{
		Amount:      req.Amount,
		Destination: account.ExternalID,
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating transfer: %v", ErrExternalService, err)
	}
	return transfer, nil
}

// Topup adds funds to the platform balance.
func (s *paymentService) Topup(ctx context.Context, req *models.TopupRequest) (*Topup, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: Please enter amount!", ErrValidation)
	}
	topup, err := s.processor.CreateTopup(ctx, &TopupParams{
		Amount:              req.Amount,
		Description:         req.Description,
		StatementDescriptor: req.StatementDescriptor,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating topup: %v", ErrExternalService, err)
	}
	return topup, nil
}

// ListAccounts returns all payment accounts held by a user.
func (s *paymentService) ListAccounts(ctx context.Context, userID string) ([]*models.PaymentAccount, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: please enter a valid user id", ErrValidation)
	}
	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing payment accounts: %v", ErrInternal, err)
	}
	return accounts, nil
}
