// Package users is a bun-backed account table that serves as the
// shopcore.IdentityProvider for phone number logins.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	shopcore "github.com/MrEthical07/shopcore"
	"github.com/MrEthical07/shopcore/database"
	"github.com/uptrace/bun"
)

// ErrDuplicatePhone is returned by Create when the number is taken.
var ErrDuplicatePhone = errors.New("phone number already registered")

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	PhoneNumber  string    `bun:"phone_number,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Roles        string    `bun:"roles,notnull"`
	Active       bool      `bun:"active,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

func (r *userRow) toRecord() *shopcore.UserRecord {
	var roles []string
	if r.Roles != "" {
		roles = strings.Split(r.Roles, ",")
	}
	return &shopcore.UserRecord{
		Identity: shopcore.Identity{
			UserID:  r.ID,
			Subject: r.PhoneNumber,
			Roles:   roles,
		},
		PhoneNumber:  r.PhoneNumber,
		PasswordHash: r.PasswordHash,
		Active:       r.Active,
	}
}

// Store reads and writes accounts.
type Store struct {
	db bun.IDB
}

func New(db bun.IDB) *Store {
	return &Store{db: db}
}

// CreateSchema creates the users table when it does not exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	return database.CreateTables(ctx, db, (*userRow)(nil))
}

// Create registers an active account and returns its id. passwordHash must
// already be encoded; see shopcore.Engine.HashPassword.
func (s *Store) Create(ctx context.Context, phone, passwordHash string, roles []string) (int64, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || passwordHash == "" {
		return 0, shopcore.ErrInvalidInput
	}

	exists, err := s.db.NewSelect().Model((*userRow)(nil)).Where("phone_number = ?", phone).Exists(ctx)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	if exists {
		return 0, ErrDuplicatePhone
	}

	row := &userRow{
		PhoneNumber:  phone,
		PasswordHash: passwordHash,
		Roles:        strings.Join(roles, ","),
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return row.ID, nil
}

// GetByPhoneNumber implements shopcore.IdentityProvider.
func (s *Store) GetByPhoneNumber(ctx context.Context, phone string) (*shopcore.UserRecord, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("u.phone_number = ?", phone).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shopcore.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toRecord(), nil
}

// SetActive enables or disables login for user id.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.NewUpdate().
		Model((*userRow)(nil)).
		Set("active = ?", active).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update user: %w", err)
	} else if n == 0 {
		return shopcore.ErrUserNotFound
	}
	return nil
}

var _ shopcore.IdentityProvider = (*Store)(nil)
