package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/bankops/backoffice-auth"
)

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// MockMailer implements auth.Mailer for testing
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendResetEmail(ctx context.Context, address, token string) error {
	args := m.Called(ctx, address, token)
	return args.Error(0)
}

// capturingSink records every audit event it sees.
type capturingSink struct {
	mu     sync.Mutex
	events []auth.AuditEvent
}

func (s *capturingSink) Record(_ context.Context, event auth.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) Events() []auth.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *capturingSink) Actions() []auth.Action {
	events := s.Events()
	actions := make([]auth.Action, len(events))
	for i, e := range events {
		actions[i] = e.Action
	}
	return actions
}

// newTestDB opens an in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared&mode=memory")
	assert.NoError(t, err)

	// A single connection keeps the in-memory database alive for the
	// whole test.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []any{
		(*auth.User)(nil),
		(*auth.ResetToken)(nil),
		(*auth.LogEntry)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		assert.NoError(t, err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestRepo(t *testing.T) auth.RepositoryManager {
	t.Helper()
	return auth.NewRepositoryManager(newTestDB(t))
}

// seedUser creates a user with the given role and password.
func seedUser(t *testing.T, repo auth.RepositoryManager, email, password string, role auth.UserRole) *auth.User {
	t.Helper()

	record := &auth.User{
		Email:      email,
		FirstName:  "Test",
		LastName:   "User",
		Department: auth.DepartmentIT,
		Role:       role,
	}

	if password != "" {
		hash, err := testHasher().Hash(password)
		assert.NoError(t, err)
		record.SetPasswordHash(hash)
	}

	created, err := repo.Users().Create(context.Background(), record)
	assert.NoError(t, err)

	return created
}

// testHasher uses the minimum bcrypt cost to keep the suite fast.
func testHasher() *auth.Hasher {
	return auth.NewHasher(4)
}

func strPtr(s string) *string {
	return &s
}

func rolePtr(r auth.UserRole) *auth.UserRole {
	return &r
}
