package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-alumni-api/internal/application/delivery"
	"github.com/go-alumni-api/internal/domain"
	"github.com/go-alumni-api/internal/infrastructure/telemetry"
	"github.com/go-alumni-api/internal/pkg/id"
	"github.com/go-alumni-api/internal/pkg/otp"
	"github.com/go-alumni-api/internal/pkg/validate"
)

// IssueCodeRequest asks for a new code. For login, Address may be an email
// or a student id; for registration it must be an email.
type IssueCodeRequest struct {
	Address string         `json:"address" validate:"required,max=254"`
	Purpose domain.Purpose `json:"purpose" validate:"required,purpose"`
}

type IssueResult struct {
	ExpiresIn int `json:"expires_in"`
}

type RedeemCodeRequest struct {
	Address      string         `validate:"required,max=254"`
	Code         string         `validate:"required,len=6,numeric"`
	Purpose      domain.Purpose `validate:"required,purpose"`
	Registration *Registration
}

// Registration carries the profile that a registration redemption finalizes.
type Registration struct {
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Name      string `json:"name" validate:"omitempty,max=120"`
	StudentID string `json:"student_id" validate:"omitempty,max=32"`
}

type Service interface {
	// IssueCode persists a fresh code and queues it for delivery. The code is
	// never returned. A failed enqueue yields ErrDeliveryFailed alongside the
	// result: the code stays redeemable.
	IssueCode(ctx context.Context, req IssueCodeRequest) (*IssueResult, error)
	// RedeemCode consumes the newest matching unconsumed code and applies the identity
	// mutation for its purpose in the same transaction.
	RedeemCode(ctx context.Context, req RedeemCodeRequest) (*domain.User, error)
}

type service struct {
	store      domain.UnitOfWork
	queue      delivery.Queue
	generate   func() (string, error)
	now        func() time.Time
	codeTTL    time.Duration
	bcryptCost int
	logger     *zerolog.Logger
	metrics    *telemetry.Metrics
}

type ServiceDeps struct {
	Store      domain.UnitOfWork
	Queue      delivery.Queue
	CodeTTL    time.Duration
	BcryptCost int
	Logger     *zerolog.Logger
	Metrics    *telemetry.Metrics
	// Generate and Now default to otp.Generate and time.Now.
	Generate func() (string, error)
	Now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:      deps.Store,
		queue:      deps.Queue,
		generate:   deps.Generate,
		now:        deps.Now,
		codeTTL:    deps.CodeTTL,
		bcryptCost: deps.BcryptCost,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
	if s.generate == nil {
		s.generate = otp.Generate
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.codeTTL <= 0 {
		s.codeTTL = 15 * time.Minute
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	return s
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func isEmail(s string) bool { return strings.Contains(s, "@") }

func (s *service) IssueCode(ctx context.Context, req IssueCodeRequest) (*IssueResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var address string
	switch req.Purpose {
	case domain.PurposeLogin:
		u, err := s.resolveIdentity(ctx, s.store.Users(), req.Address)
		if err != nil {
			return nil, err
		}
		if !u.Enabled {
			return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
		}
		address = u.Email
	case domain.PurposeRegistration:
		address = normalizeEmail(req.Address)
		if err := validate.Var(address, "email"); err != nil {
			return nil, err
		}
		u, err := s.store.Users().GetByEmail(ctx, address)
		switch {
		case err == nil && u.Verified:
			return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	code, err := s.generate()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	v := &domain.VerificationCode{
		ID:        id.New(),
		Address:   address,
		Purpose:   req.Purpose,
		CodeHash:  otp.Hash(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}
	if err := s.store.Verifications().Create(ctx, v); err != nil {
		return nil, err
	}
	s.metrics.CodeIssued(ctx, string(req.Purpose))

	res := &IssueResult{ExpiresIn: int(s.codeTTL.Seconds())}
	job := domain.DeliveryJob{ID: id.New(), Address: address, Code: code, Purpose: req.Purpose, CreatedAt: now}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("verification_id", v.ID).Str("purpose", string(req.Purpose)).Msg("could not queue code delivery")
		return res, fmt.Errorf("queue delivery: %v: %w", err, domain.ErrDeliveryFailed)
	}
	s.logger.Info().Str("verification_id", v.ID).Str("purpose", string(req.Purpose)).Msg("verification code issued")
	return res, nil
}

// resolveIdentity finds a user by email or, failing the email shape, by student id.
func (s *service) resolveIdentity(ctx context.Context, users domain.UserRepository, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		u   *domain.User
		err error
	)
	if isEmail(identifier) {
		u, err = users.GetByEmail(ctx, normalizeEmail(identifier))
	} else {
		u, err = users.GetByStudentID(ctx, identifier)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return u, err
}

func (s *service) RedeemCode(ctx context.Context, req RedeemCodeRequest) (*domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Purpose == domain.PurposeRegistration && req.Registration == nil {
		return nil, fmt.Errorf("registration details required: %w", domain.ErrValidation)
	}

	// Hashed before the transaction so the code row is locked only briefly.
	var passwordHash string
	if req.Purpose == domain.PurposeRegistration {
		h, err := bcrypt.GenerateFromPassword([]byte(req.Registration.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = string(h)
	}

	now := s.now().UTC()
	var result *domain.User
	err := s.store.WithinTx(ctx, func(tx domain.Repositories) error {
		address := normalizeEmail(req.Address)
		if req.Purpose == domain.PurposeLogin && !isEmail(address) {
			u, err := tx.Users().GetByStudentID(ctx, strings.TrimSpace(req.Address))
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrInvalidOrExpiredCode
			}
			if err != nil {
				return err
			}
			address = u.Email
		}

		if _, err := tx.Verifications().ConsumeLatest(ctx, address, req.Purpose, otp.Hash(req.Code), now); err != nil {
			return err
		}

		var err error
		if req.Purpose == domain.PurposeRegistration {
			result, err = s.finalizeRegistration(ctx, tx, address, passwordHash, req.Registration, now)
			return err
		}
		result, err = tx.Users().GetByEmail(ctx, address)
		if err != nil {
			return err
		}
		if !result.Enabled {
			return fmt.Errorf("account disabled: %w", domain.ErrNotFound)
		}
		return nil
	})

	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	s.metrics.CodeRedeemed(ctx, string(req.Purpose), outcome)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", result.UserID).Str("purpose", string(req.Purpose)).Msg("verification code redeemed")
	return result, nil
}

// finalizeRegistration creates the identity, or completes an unverified one,
// and applies a matching pre-approval.
func (s *service) finalizeRegistration(ctx context.Context, tx domain.Repositories, email, passwordHash string, reg *Registration, now time.Time) (*domain.User, error) {
	studentID := strings.TrimSpace(reg.StudentID)

	creating := false
	u, err := tx.Users().GetByEmail(ctx, email)
	switch {
	case err == nil && u.Verified:
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		creating = true
		u = &domain.User{UserID: id.New(), Email: email, Enabled: true, CreatedAt: now}
	case err != nil:
		return nil, err
	}

	u.PasswordHash = passwordHash
	u.Verified = true
	u.UpdatedAt = now
	if name := strings.TrimSpace(reg.Name); name != "" {
		u.Name = name
	}
	if studentID != "" {
		u.StudentID = &studentID
	}
	if u.Role == "" {
		u.Role = domain.RoleAlumni
		if studentID != "" {
			u.Role = domain.RoleStudent
		}
	}

	approval, err := tx.Approvals().FindUnused(ctx, email, studentID)
	switch {
	case err == nil:
		u.Role = approval.Role
		u.Approved = true
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if creating {
		err = tx.Users().Create(ctx, u)
	} else {
		err = tx.Users().Update(ctx, u)
	}
	if err != nil {
		return nil, err
	}
	if approval != nil {
		if err := tx.Approvals().MarkUsed(ctx, approval.ID, u.UserID, now); err != nil {
			return nil, err
		}
	}
	return u, nil
}
