package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ProvisionInput carries the fields for an admin-created account. The
// account starts with no password; the invitee sets one through the
// emailed reset link.
type ProvisionInput struct {
	Email      string
	FirstName  string
	LastName   string
	Phone      string
	Department Department
	Role       UserRole
}

// ProvisioningService is the admin-gated account administration
// surface: invite-style account creation plus directory CRUD.
type ProvisioningService struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger
}

func NewProvisioningService(repo RepositoryManager, mailer Mailer) *ProvisioningService {
	if mailer == nil {
		mailer = logMailer{logger: defLogger{}}
	}
	return &ProvisioningService{
		repo:   repo,
		mailer: mailer,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the service.
func (s *ProvisioningService) WithLogger(logger Logger) *ProvisioningService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// requireAdmin resolves the actor and checks the admin role. An
// unknown actor is Unauthorized, a known non-admin Forbidden.
func (s *ProvisioningService) requireAdmin(ctx context.Context, actorID int64) (*User, error) {
	actor, err := s.repo.Users().GetByID(ctx, actorID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return actor, nil
}

// requireAdminOrSelf permits admins and the account owner.
func (s *ProvisioningService) requireAdminOrSelf(ctx context.Context, actorID, targetID int64) error {
	actor, err := s.repo.Users().GetByID(ctx, actorID)
	if err != nil {
		return ErrUnauthorized
	}
	if !actor.IsAdmin() && actor.ID != targetID {
		return ErrForbidden
	}
	return nil
}

// CreatePendingAccount creates a passwordless account, issues a
// one-hour reset token, and emails the reset link. When delivery
// fails, the account and token are removed again and the caller gets
// ErrDeliveryFailed; mail cannot participate in the transaction, so
// the cleanup is a compensating delete.
func (s *ProvisioningService) CreatePendingAccount(ctx context.Context, actorID int64, input ProvisionInput) (*User, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = RoleAnalyst
	}

	record := &User{
		Email:      input.Email,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Phone:      input.Phone,
		Department: input.Department,
		Role:       role,
	}

	var reset *ResetToken
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Users().CreateTx(ctx, tx, record); err != nil {
			return err
		}
		var err error
		reset, err = s.repo.ResetTokens().IssueForTx(ctx, tx, record.ID, time.Now())
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to provision account")
	}

	if err := s.mailer.SendResetEmail(ctx, record.Email, reset.Token); err != nil {
		s.logger.Error("reset email delivery failed for %s: %v", record.Email, err)
		s.rollbackPending(ctx, record.ID)
		return nil, ErrDeliveryFailed
	}

	return record, nil
}

// rollbackPending compensates a failed invite by deleting the account
// and its reset tokens.
func (s *ProvisioningService) rollbackPending(ctx context.Context, userID int64) {
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.ResetTokens().DeleteForUserTx(ctx, tx, userID); err != nil {
			return err
		}
		return s.repo.Users().DeleteTx(ctx, tx, userID)
	})
	if err != nil {
		s.logger.Error("failed to roll back pending account %d: %v", userID, err)
	}
}

// ListAll returns every account. Admin only.
func (s *ProvisioningService) ListAll(ctx context.Context, actorID int64) ([]*User, error) {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.repo.Users().List(ctx)
}

// GetByID returns one account. Admins may read any account, other
// callers only their own.
func (s *ProvisioningService) GetByID(ctx context.Context, actorID, targetID int64) (*User, error) {
	if err := s.requireAdminOrSelf(ctx, actorID, targetID); err != nil {
		return nil, err
	}
	return s.repo.Users().GetByID(ctx, targetID)
}

// Update applies a partial update to an account. Admins may update any
// account, other callers only their own.
func (s *ProvisioningService) Update(ctx context.Context, actorID, targetID int64, update UserUpdate) (*User, error) {
	if err := s.requireAdminOrSelf(ctx, actorID, targetID); err != nil {
		return nil, err
	}
	return s.repo.Users().Update(ctx, targetID, update)
}

// Delete removes an account. Admin only.
func (s *ProvisioningService) Delete(ctx context.Context, actorID, targetID int64) error {
	if _, err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.repo.Users().Delete(ctx, targetID)
}
