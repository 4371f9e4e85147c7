package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	shopcore "github.com/MrEthical07/shopcore"
	"github.com/MrEthical07/shopcore/catalog"
	"github.com/MrEthical07/shopcore/catalog/sqlsource"
	"github.com/MrEthical07/shopcore/metrics/export/prometheus"
	"github.com/MrEthical07/shopcore/middleware"
)

const (
	// maxBodyBytes bounds JSON request bodies.
	maxBodyBytes = 1 << 16
	// adminRole may write the catalog.
	adminRole = "admin"

	maxProductName  = 200
	maxProductPrice = 10_000_000
)

type sessionResponse struct {
	SessionID             string    `json:"session_id"`
	Token                 string    `json:"token"`
	RefreshToken          string    `json:"refresh_token"`
	TokenType             string    `json:"token_type"`
	ExpirationDate        time.Time `json:"expiration_date"`
	RefreshExpirationDate time.Time `json:"refresh_expiration_date"`
}

func newSessionResponse(t *shopcore.SessionToken) sessionResponse {
	return sessionResponse{
		SessionID:             t.ID,
		Token:                 t.Token,
		RefreshToken:          t.RefreshToken,
		TokenType:             t.TokenType,
		ExpirationDate:        t.ExpirationDate,
		RefreshExpirationDate: t.RefreshExpirationDate,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// newServer routes the HTTP API:
//
//	POST /auth/login    {"phone_number", "password"}
//	POST /auth/refresh  {"refresh_token"} with the last bearer token, expired or not
//	POST /auth/logout   guarded; deletes the caller's session
//	GET    /products       ?keyword=&category_id=&page=&limit=
//	POST   /products       admin; {"name", "price", "thumbnail", "description", "category_id"}
//	PUT    /products/{id}  admin; same body, replaces the mutable fields
//	DELETE /products/{id}  admin
//	GET    /metrics        Prometheus text format
//
// Product writes go through engine.CatalogWriter, so each one that commits
// clears the catalog cache.
func newServer(engine *shopcore.Engine, users shopcore.IdentityProvider) http.Handler {
	guard := middleware.Guard(engine)
	admin := func(h http.Handler) http.Handler {
		return guard(middleware.RequireRole(adminRole)(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", loginHandler(engine))
	mux.HandleFunc("POST /auth/refresh", refreshHandler(engine, users))
	mux.Handle("POST /auth/logout", guard(logoutHandler(engine)))
	mux.HandleFunc("GET /products", productsHandler(engine))
	mux.Handle("POST /products", admin(createProductHandler(engine)))
	mux.Handle("PUT /products/{id}", admin(updateProductHandler(engine)))
	mux.Handle("DELETE /products/{id}", admin(deleteProductHandler(engine)))
	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(engine).Handler())
	return middleware.ClientIP(mux)
}

func loginHandler(engine *shopcore.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PhoneNumber string `json:"phone_number"`
			Password    string `json:"password"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}

		tok, err := engine.Login(r.Context(), body.PhoneNumber, body.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(tok))
	}
}

func refreshHandler(engine *shopcore.Engine, users shopcore.IdentityProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := middleware.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, shopcore.ErrUnauthorized)
			return
		}
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}

		subject, err := engine.ExtractSubject(bearer)
		if err != nil {
			writeError(w, err)
			return
		}
		user, err := users.GetByPhoneNumber(r.Context(), subject)
		if err != nil {
			if errors.Is(err, shopcore.ErrUserNotFound) {
				err = shopcore.ErrUnauthorized
			}
			writeError(w, err)
			return
		}
		if !user.Active {
			writeError(w, shopcore.ErrAccountDisabled)
			return
		}

		tok, err := engine.RefreshToken(r.Context(), body.RefreshToken, user.Identity)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(tok))
	}
}

func logoutHandler(engine *shopcore.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
		if err := engine.Logout(r.Context(), token); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func productsHandler(engine *shopcore.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := catalog.ParseQuery(r.URL.Query())
		if err != nil {
			writeError(w, shopcore.ErrInvalidInput)
			return
		}
		page, err := engine.Products(r.Context(), q)
		if err != nil {
			writeError(w, err)
			return
		}
		if page.Items == nil {
			page.Items = []catalog.Item{}
		}
		writeJSON(w, http.StatusOK, page)
	}
}

type productBody struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Thumbnail   string  `json:"thumbnail"`
	Description string  `json:"description"`
	CategoryID  int64   `json:"category_id"`
}

// item validates b and returns it as a catalog item with the given id.
func (b productBody) item(id int64) (*catalog.Item, error) {
	name := strings.TrimSpace(b.Name)
	if name == "" || len(name) > maxProductName {
		return nil, fmt.Errorf("%w: product name must be 1-%d bytes", shopcore.ErrInvalidInput, maxProductName)
	}
	if b.Price < 0 || b.Price > maxProductPrice {
		return nil, fmt.Errorf("%w: product price out of range", shopcore.ErrInvalidInput)
	}
	if b.CategoryID < 0 {
		return nil, fmt.Errorf("%w: negative category id", shopcore.ErrInvalidInput)
	}
	return &catalog.Item{
		ID:          id,
		Name:        name,
		Price:       b.Price,
		Thumbnail:   b.Thumbnail,
		Description: b.Description,
		CategoryID:  b.CategoryID,
	}, nil
}

// productWriter resolves the engine's invalidating writer, answering 503
// when no catalog source is configured.
func productWriter(w http.ResponseWriter, engine *shopcore.Engine) (catalog.Writer, bool) {
	cw := engine.CatalogWriter()
	if cw == nil {
		writeError(w, shopcore.ErrUnavailable)
		return nil, false
	}
	return cw, true
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, shopcore.ErrInvalidInput)
		return 0, false
	}
	return id, true
}

func createProductHandler(engine *shopcore.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw, ok := productWriter(w, engine)
		if !ok {
			return
		}
		var body productBody
		if !decodeJSON(w, r, &body) {
			return
		}
		item, err := body.item(0)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := cw.CreateItem(r.Context(), item); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	})
}

func updateProductHandler(engine *shopcore.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw, ok := productWriter(w, engine)
		if !ok {
			return
		}
		id, ok := productID(w, r)
		if !ok {
			return
		}
		var body productBody
		if !decodeJSON(w, r, &body) {
			return
		}
		item, err := body.item(id)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := cw.UpdateItem(r.Context(), item); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	})
}

func deleteProductHandler(engine *shopcore.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw, ok := productWriter(w, engine)
		if !ok {
			return
		}
		id, ok := productID(w, r)
		if !ok {
			return
		}
		if err := cw.DeleteItem(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, shopcore.ErrInvalidInput)
		return false
	}
	return true
}

// statusFor maps engine failures onto HTTP statuses. Bearer token faults
// are authentication failures even though they classify as invalid input.
func statusFor(err error) int {
	if errors.Is(err, shopcore.ErrTokenInvalid) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, sqlsource.ErrItemNotFound) {
		return http.StatusNotFound
	}
	switch shopcore.KindOf(err) {
	case shopcore.KindInvalid:
		return http.StatusBadRequest
	case shopcore.KindUnauthorized, shopcore.KindNotFound, shopcore.KindExpired, shopcore.KindRevoked:
		return http.StatusUnauthorized
	case shopcore.KindConflict:
		return http.StatusConflict
	case shopcore.KindRateLimited:
		return http.StatusTooManyRequests
	case shopcore.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := shopcore.KindOf(err)
	switch {
	case errors.Is(err, shopcore.ErrTokenInvalid):
		kind = shopcore.KindUnauthorized
	case errors.Is(err, sqlsource.ErrItemNotFound):
		kind = shopcore.KindNotFound
	}
	writeJSON(w, statusFor(err), errorResponse{Error: kind.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
