package auth

import (
	"context"
	"time"
)

// Action enumerates the audit vocabulary. The set is closed: anything
// outside it aggregates into the catch-all bucket.
type Action string

const (
	ActionLoginSuccess          Action = "login_success"
	ActionLoginFailed           Action = "login_failed"
	ActionUpdateProfileSuccess  Action = "update_profile_success"
	ActionUpdateProfileFailed   Action = "update_profile_failed"
	ActionChangePasswordSuccess Action = "change_password_success"
	ActionChangePasswordFailed  Action = "change_password_failed"
)

// KnownActions returns the closed audit vocabulary.
func KnownActions() []Action {
	return []Action{
		ActionLoginSuccess,
		ActionLoginFailed,
		ActionUpdateProfileSuccess,
		ActionUpdateProfileFailed,
		ActionChangePasswordSuccess,
		ActionChangePasswordFailed,
	}
}

// AuditEvent captures audit-friendly information about an action.
// UserID is nil for unauthenticated failures.
type AuditEvent struct {
	UserID      *int64
	Action      Action
	Description string
	OccurredAt  time.Time
}

// ActivitySink consumes audit events. Recording is best effort: a sink
// failure must never change the outcome of the operation being audited.
type ActivitySink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event AuditEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event AuditEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, AuditEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// NewLogActivitySink returns a sink that appends events to the audit
// log repository.
func NewLogActivitySink(repo RepositoryManager) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event AuditEvent) error {
		entry := &LogEntry{
			UserID:      event.UserID,
			Action:      string(event.Action),
			Description: event.Description,
		}
		return repo.Logs().Append(ctx, entry)
	})
}

// LogSummary is the admin-only reporting view over the audit log: the
// full listing ordered by creation time plus per-action counts.
type LogSummary struct {
	Logs                []*LogEntry    `json:"logs"`
	Total               int            `json:"total"`
	CountsByAction      map[Action]int `json:"counts_by_action"`
	UnrecognizedActions int            `json:"unrecognized_actions"`
}

// AuditService exposes the reporting view over the audit log.
type AuditService struct {
	repo   RepositoryManager
	logger Logger
}

func NewAuditService(repo RepositoryManager, logger Logger) *AuditService {
	if logger == nil {
		logger = defLogger{}
	}
	return &AuditService{repo: repo, logger: logger}
}

// Aggregate returns the reporting view. Only administrators may call
// it: an unknown actor yields ErrUnauthorized, a non-admin ErrForbidden.
func (s *AuditService) Aggregate(ctx context.Context, actorID int64) (*LogSummary, error) {
	actor, err := s.repo.Users().GetByID(ctx, actorID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	logs, err := s.repo.Logs().ListOrdered(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.Logs().CountByAction(ctx)
	if err != nil {
		return nil, err
	}

	summary := &LogSummary{
		Logs:           logs,
		Total:          len(logs),
		CountsByAction: make(map[Action]int, len(KnownActions())),
	}
	for _, action := range KnownActions() {
		summary.CountsByAction[action] = 0
	}
	for tag, n := range counts {
		action := Action(tag)
		if _, ok := summary.CountsByAction[action]; !ok {
			summary.UnrecognizedActions += n
			s.logger.Warn("audit aggregate skipped unrecognized action %q (%d entries)", tag, n)
			continue
		}
		summary.CountsByAction[action] = n
	}

	return summary, nil
}
