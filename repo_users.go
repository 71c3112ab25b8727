package auth

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// UserUpdate carries a partial profile update. Nil fields are untouched.
type UserUpdate struct {
	Email      *string
	FirstName  *string
	LastName   *string
	Phone      *string
	Department *Department
	Role       *UserRole
}

// Empty reports whether the update carries no fields.
func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.FirstName == nil && u.LastName == nil &&
		u.Phone == nil && u.Department == nil && u.Role == nil
}

type Users interface {
	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, id int64, update UserUpdate) (*User, error)
	UpdateTx(ctx context.Context, tx bun.IDB, id int64, update UserUpdate) (*User, error)
	Delete(ctx context.Context, id int64) error
	DeleteTx(ctx context.Context, tx bun.IDB, id int64) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string) error
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

// CreateTx inserts a new account. Email uniqueness is checked before
// the insert so callers get ErrDuplicateEmail rather than a driver error.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	exists, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", record.Email).
		Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check email uniqueness")
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create account")
	}

	return record, nil
}

func (a *users) GetByID(ctx context.Context, id int64) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account")
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load account")
	}
	return record, nil
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	var records []*User
	err := a.db.NewSelect().
		Model(&records).
		Order("usr.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list accounts")
	}
	return records, nil
}

func (a *users) Update(ctx context.Context, id int64, update UserUpdate) (*User, error) {
	return a.UpdateTx(ctx, a.db, id, update)
}

// UpdateTx applies a partial profile update. When the email changes,
// uniqueness is re-checked against every other account first.
func (a *users) UpdateTx(ctx context.Context, tx bun.IDB, id int64, update UserUpdate) (*User, error) {
	record, err := a.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if update.Email != nil && *update.Email != record.Email {
		exists, err := tx.NewSelect().
			Model((*User)(nil)).
			Where("?TableAlias.email = ?", *update.Email).
			Where("?TableAlias.id != ?", id).
			Exists(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check email uniqueness")
		}
		if exists {
			return nil, ErrDuplicateEmail
		}
		record.Email = *update.Email
	}

	if update.FirstName != nil {
		record.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		record.LastName = *update.LastName
	}
	if update.Phone != nil {
		record.Phone = *update.Phone
	}
	if update.Department != nil {
		record.Department = *update.Department
	}
	if update.Role != nil {
		record.Role = *update.Role
	}

	_, err = tx.NewUpdate().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update account")
	}

	return record, nil
}

func (a *users) Delete(ctx context.Context, id int64) error {
	return a.DeleteTx(ctx, a.db, id)
}

func (a *users) DeleteTx(ctx context.Context, tx bun.IDB, id int64) error {
	res, err := tx.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete account")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (a *users) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to store password hash")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
