// Package sqlstore is a bun-backed session.Store for Postgres and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/shopcore/database"
	"github.com/MrEthical07/shopcore/session"
	"github.com/uptrace/bun"
)

type tokenRow struct {
	bun.BaseModel `bun:"table:tokens,alias:t"`

	ID                    string    `bun:"id,pk"`
	UserID                int64     `bun:"user_id,notnull"`
	Token                 string    `bun:"token,notnull"`
	RefreshToken          string    `bun:"refresh_token,notnull,unique"`
	TokenType             string    `bun:"token_type,notnull"`
	ExpirationDate        time.Time `bun:"expiration_date,notnull"`
	RefreshExpirationDate time.Time `bun:"refresh_expiration_date,notnull"`
	Revoked               bool      `bun:"revoked,notnull"`
	Expired               bool      `bun:"expired,notnull"`
	CreatedAt             time.Time `bun:"created_at,notnull"`
}

func fromToken(t *session.Token) *tokenRow {
	return &tokenRow{
		ID:                    t.ID,
		UserID:                t.UserID,
		Token:                 t.Token,
		RefreshToken:          t.RefreshToken,
		TokenType:             t.TokenType,
		ExpirationDate:        t.ExpirationDate.UTC(),
		RefreshExpirationDate: t.RefreshExpirationDate.UTC(),
		Revoked:               t.Revoked,
		Expired:               t.Expired,
		CreatedAt:             t.CreatedAt.UTC(),
	}
}

func (r *tokenRow) toToken() *session.Token {
	return &session.Token{
		ID:                    r.ID,
		UserID:                r.UserID,
		Token:                 r.Token,
		RefreshToken:          r.RefreshToken,
		TokenType:             r.TokenType,
		ExpirationDate:        r.ExpirationDate,
		RefreshExpirationDate: r.RefreshExpirationDate,
		Revoked:               r.Revoked,
		Expired:               r.Expired,
		CreatedAt:             r.CreatedAt,
	}
}

// Store implements session.Store over a bun handle.
type Store struct {
	db bun.IDB
}

// New returns a Store using db.
func New(db bun.IDB) *Store {
	return &Store{db: db}
}

// CreateSchema creates the tokens table when it does not exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	if err := database.CreateTables(ctx, db, (*tokenRow)(nil)); err != nil {
		return err
	}
	_, err := db.NewCreateIndex().
		Model((*tokenRow)(nil)).
		Index("idx_tokens_token").
		Column("token").
		IfNotExists().
		Exec(ctx)
	return err
}

// Create inserts a new session record.
func (s *Store) Create(ctx context.Context, t *session.Token) error {
	if t == nil || t.ID == "" {
		return errors.New("session id is required")
	}
	if _, err := s.db.NewInsert().Model(fromToken(t)).Exec(ctx); err != nil {
		if _, getErr := s.GetByID(ctx, t.ID); getErr == nil {
			return session.ErrDuplicate
		}
		return fmt.Errorf("%w: create session: %v", session.ErrUnavailable, err)
	}
	return nil
}

// GetByID retrieves a session by id.
func (s *Store) GetByID(ctx context.Context, id string) (*session.Token, error) {
	return s.getBy(ctx, "id", id)
}

// GetByToken retrieves a session by its bearer token.
func (s *Store) GetByToken(ctx context.Context, token string) (*session.Token, error) {
	return s.getBy(ctx, "token", token)
}

// GetByRefreshToken retrieves a session by its current refresh token.
func (s *Store) GetByRefreshToken(ctx context.Context, refreshToken string) (*session.Token, error) {
	return s.getBy(ctx, "refresh_token", refreshToken)
}

func (s *Store) getBy(ctx context.Context, column, value string) (*session.Token, error) {
	row := new(tokenRow)
	err := s.db.NewSelect().
		Model(row).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session by %s: %v", session.ErrUnavailable, column, err)
	}
	return row.toToken(), nil
}

// Rotate updates the record only while its refresh token still equals
// expectedRefresh and it is not revoked. Zero affected rows are classified
// by re-reading the record.
func (s *Store) Rotate(ctx context.Context, id, expectedRefresh string, next session.Rotation) (*session.Token, error) {
	res, err := s.db.NewUpdate().
		Model((*tokenRow)(nil)).
		Set("token = ?", next.Token).
		Set("refresh_token = ?", next.RefreshToken).
		Set("expiration_date = ?", next.ExpirationDate.UTC()).
		Set("refresh_expiration_date = ?", next.RefreshExpirationDate.UTC()).
		Where("id = ?", id).
		Where("refresh_token = ?", expectedRefresh).
		Where("revoked = ?", false).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: rotate session: %v", session.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: rotate session: %v", session.ErrUnavailable, err)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return current.Apply(next), nil
	}
	if current.RefreshToken != expectedRefresh {
		return nil, session.ErrConflict
	}
	if current.Revoked {
		return nil, session.ErrRevoked
	}
	return nil, session.ErrConflict
}

// Revoke marks the session revoked.
func (s *Store) Revoke(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().
		Model((*tokenRow)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: revoke session: %v", session.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: revoke session: %v", session.ErrUnavailable, err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Delete removes the session. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*tokenRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete session: %v", session.ErrUnavailable, err)
	}
	return nil
}

// ListByUser returns a user's sessions, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]*session.Token, error) {
	var rows []tokenRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", session.ErrUnavailable, err)
	}
	out := make([]*session.Token, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toToken())
	}
	return out, nil
}

var _ session.Store = (*Store)(nil)
