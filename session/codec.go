package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const recordSchemaVersion = "1"

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// Hash field names. The rotation script reads "refresh" and "revoked"
// directly, so renaming either requires a schema bump.
const (
	fieldVersion   = "v"
	fieldUserID    = "uid"
	fieldToken     = "token"
	fieldRefresh   = "refresh"
	fieldType      = "type"
	fieldExp       = "exp"
	fieldRefreshEx = "rexp"
	fieldRevoked   = "revoked"
	fieldExpired   = "expired"
	fieldCreated   = "created"
)

// encodeFields flattens t into alternating field/value pairs for HSET.
func encodeFields(t *Token) []interface{} {
	return []interface{}{
		fieldVersion, recordSchemaVersion,
		fieldUserID, strconv.FormatInt(t.UserID, 10),
		fieldToken, t.Token,
		fieldRefresh, t.RefreshToken,
		fieldType, t.TokenType,
		fieldExp, formatInstant(t.ExpirationDate),
		fieldRefreshEx, formatInstant(t.RefreshExpirationDate),
		fieldRevoked, formatFlag(t.Revoked),
		fieldExpired, formatFlag(t.Expired),
		fieldCreated, formatInstant(t.CreatedAt),
	}
}

func decodeFields(id string, m map[string]string) (*Token, error) {
	if v := m[fieldVersion]; v != recordSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %q", ErrCorrupt, v)
	}

	uid, err := strconv.ParseInt(m[fieldUserID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: uid: %v", ErrCorrupt, err)
	}
	exp, err := parseInstant(m[fieldExp])
	if err != nil {
		return nil, fmt.Errorf("%w: exp: %v", ErrCorrupt, err)
	}
	rexp, err := parseInstant(m[fieldRefreshEx])
	if err != nil {
		return nil, fmt.Errorf("%w: rexp: %v", ErrCorrupt, err)
	}
	created, err := parseInstant(m[fieldCreated])
	if err != nil {
		return nil, fmt.Errorf("%w: created: %v", ErrCorrupt, err)
	}

	return &Token{
		ID:                    id,
		UserID:                uid,
		Token:                 m[fieldToken],
		RefreshToken:          m[fieldRefresh],
		TokenType:             m[fieldType],
		ExpirationDate:        exp,
		RefreshExpirationDate: rexp,
		Revoked:               m[fieldRevoked] == "1",
		Expired:               m[fieldExpired] == "1",
		CreatedAt:             created,
	}, nil
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseInstant(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, n).UTC(), nil
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
