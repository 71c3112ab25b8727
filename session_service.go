package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// NoFieldsChangedMarker is recorded when a profile update carries no fields.
const NoFieldsChangedMarker = "no fields changed"

// SignupInput carries the fields required to self-register an account.
type SignupInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Phone      string
	Department Department
	Role       UserRole
}

// SessionService drives the credential and session lifecycle: signup,
// signin, profile reads and updates, password change, and reset-token
// redemption. Every state-changing operation writes exactly one audit
// entry on each terminal branch, except signup and signout which are
// deliberately unaudited.
type SessionService struct {
	repo     RepositoryManager
	hasher   PasswordHasher
	tokens   *TokenService
	activity ActivitySink
	logger   Logger
}

func NewSessionService(repo RepositoryManager, hasher PasswordHasher, tokens *TokenService) *SessionService {
	return &SessionService{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit audit events.
func (s *SessionService) WithActivitySink(sink ActivitySink) *SessionService {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithLogger overrides the logger used by the service.
func (s *SessionService) WithLogger(logger Logger) *SessionService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Signup registers a self-serve account. It does not audit; only
// signin and later profile operations do.
func (s *SessionService) Signup(ctx context.Context, input SignupInput) (*User, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	record := &User{
		Email:      input.Email,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Phone:      input.Phone,
		Department: input.Department,
		Role:       input.Role,
	}
	record.SetPasswordHash(hash)

	return s.repo.Users().Create(ctx, record)
}

// Signin verifies credentials and issues a session token. An unknown
// email audits login_failed with no account id; a wrong password (or
// an account with no password yet) audits login_failed with the id.
func (s *SessionService) Signin(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			s.emit(ctx, nil, ActionLoginFailed, fmt.Sprintf("login attempt for unknown email %s", email))
			return "", nil, ErrUnauthorized
		}
		return "", nil, err
	}

	if !user.HasPassword() || s.hasher.Compare(password, *user.PasswordHash) != nil {
		s.emit(ctx, &user.ID, ActionLoginFailed, fmt.Sprintf("failed login for %s", user.Email))
		return "", nil, ErrUnauthorized
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", nil, err
	}

	s.emit(ctx, &user.ID, ActionLoginSuccess, fmt.Sprintf("successful login for %s", user.Email))

	return token, user, nil
}

// CurrentProfile resolves the session subject to its account record.
func (s *SessionService) CurrentProfile(ctx context.Context, userID int64) (*User, error) {
	return s.repo.Users().GetByID(ctx, userID)
}

// UpdateProfile applies a partial profile update for the session
// subject and audits the outcome with a summary of changed fields.
func (s *SessionService) UpdateProfile(ctx context.Context, userID int64, update UserUpdate) (*User, error) {
	current, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			s.emit(ctx, nil, ActionUpdateProfileFailed, "profile update for missing account")
		}
		return nil, err
	}

	summary := renderFieldChanges(current, update)

	if update.Empty() {
		s.emit(ctx, &current.ID, ActionUpdateProfileSuccess, summary)
		return current, nil
	}

	updated, err := s.repo.Users().Update(ctx, userID, update)
	if err != nil {
		if goerrors.Is(err, ErrDuplicateEmail) {
			s.emit(ctx, &current.ID, ActionUpdateProfileFailed, fmt.Sprintf("profile update for %s rejected: email taken", current.Email))
		}
		return nil, err
	}

	s.emit(ctx, &updated.ID, ActionUpdateProfileSuccess, summary)

	return updated, nil
}

// ChangePassword rotates the subject's password. Checks run in order:
// missing subject, confirmation mismatch, wrong old password, new
// password equal to the old one. Every branch audits.
func (s *SessionService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword, confirm string) error {
	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			s.emit(ctx, nil, ActionChangePasswordFailed, "password change for missing account")
		}
		return err
	}

	if newPassword != confirm {
		s.emit(ctx, &user.ID, ActionChangePasswordFailed, fmt.Sprintf("password change for %s rejected: confirmation mismatch", user.Email))
		return ErrPasswordMismatch
	}

	if !user.HasPassword() || s.hasher.Compare(oldPassword, *user.PasswordHash) != nil {
		s.emit(ctx, &user.ID, ActionChangePasswordFailed, fmt.Sprintf("password change for %s rejected: wrong password", user.Email))
		return ErrUnauthorized
	}

	if s.hasher.Compare(newPassword, *user.PasswordHash) == nil {
		s.emit(ctx, &user.ID, ActionChangePasswordFailed, fmt.Sprintf("password change for %s rejected: password unchanged", user.Email))
		return ErrSamePassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	if err := s.repo.Users().SetPassword(ctx, userID, hash); err != nil {
		return err
	}

	s.emit(ctx, &user.ID, ActionChangePasswordSuccess, fmt.Sprintf("password changed for %s", user.Email))

	return nil
}

// ResetPassword redeems a reset token and stores the new password.
// Lookup, mark-used, and the password write share one transaction so a
// token cannot be redeemed twice under concurrent requests.
func (s *SessionService) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		userID, err := s.repo.ResetTokens().ConsumeTx(ctx, tx, token, time.Now())
		if err != nil {
			return err
		}
		return s.repo.Users().SetPasswordTx(ctx, tx, userID, hash)
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	return nil
}

// emit records an audit event. Recording is best effort: failures are
// logged and never change the outcome of the enclosing operation.
func (s *SessionService) emit(ctx context.Context, userID *int64, action Action, description string) {
	event := AuditEvent{
		UserID:      userID,
		Action:      action,
		Description: description,
		OccurredAt:  time.Now(),
	}
	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error during %s: %v", action, err)
	}
}

func renderFieldChanges(current *User, update UserUpdate) string {
	var changed []string
	if update.Email != nil && *update.Email != current.Email {
		changed = append(changed, "email")
	}
	if update.FirstName != nil && *update.FirstName != current.FirstName {
		changed = append(changed, "first_name")
	}
	if update.LastName != nil && *update.LastName != current.LastName {
		changed = append(changed, "last_name")
	}
	if update.Phone != nil && *update.Phone != current.Phone {
		changed = append(changed, "phone_number")
	}
	if update.Department != nil && *update.Department != current.Department {
		changed = append(changed, "department")
	}
	if update.Role != nil && *update.Role != current.Role {
		changed = append(changed, "user_role")
	}

	if len(changed) == 0 {
		return NoFieldsChangedMarker
	}

	return "changed fields: " + strings.Join(changed, ", ")
}
