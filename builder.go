package shopcore

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/MrEthical07/shopcore/catalog"
	"github.com/MrEthical07/shopcore/internal"
	internalaudit "github.com/MrEthical07/shopcore/internal/audit"
	"github.com/MrEthical07/shopcore/internal/flows"
	"github.com/MrEthical07/shopcore/internal/rate"
	"github.com/MrEthical07/shopcore/jwt"
	"github.com/MrEthical07/shopcore/password"
	"github.com/MrEthical07/shopcore/session"
	"github.com/redis/go-redis/v9"
)

// CatalogSource is the authoritative product store behind the catalog
// cache. catalog/sqlsource.Source satisfies it.
type CatalogSource interface {
	Load(ctx context.Context, q catalog.Query) (catalog.Page, error)
	catalog.Writer
}

// Builder collects configuration and collaborators for an Engine. A
// Builder is single-use: Build fails on the second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	sessionStore  session.Store
	catalogCache  catalog.Cache
	catalogSource CatalogSource
	identities    IdentityProvider
	auditSink     AuditSink
	logger        *log.Logger
	now           func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs sessions and the catalog cache with client unless a
// store or cache is injected explicitly.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessionStore = store
	return b
}

func (b *Builder) WithCatalogCache(cache catalog.Cache) *Builder {
	b.catalogCache = cache
	return b
}

func (b *Builder) WithCatalogSource(src CatalogSource) *Builder {
	b.catalogSource = src
	return b
}

// WithIdentityProvider enables Login.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identities = p
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for absorbed failures. Defaults to
// log.Default().
func (b *Builder) WithLogger(l *log.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now for token and session timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}

	// -------- SESSION STORE --------
	store := b.sessionStore
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("session store required: use WithRedis or WithSessionStore")
		}
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Retention)
	}

	// -------- CATALOG CACHE --------
	cache := b.catalogCache
	if cache == nil {
		if b.redis != nil {
			cache = catalog.NewRedisCache(b.redis, cfg.Catalog.Namespace, cfg.Catalog.CacheTTL)
		} else {
			lru, err := catalog.NewLRUCache(cfg.Catalog.LRUSize)
			if err != nil {
				return nil, err
			}
			cache = lru
		}
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	ph, err := password.NewArgon2(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:        cfg,
		now:           now,
		logger:        logger,
		sessionStore:  store,
		jwtManager:    jm,
		passwordHash:  ph,
		identities:    b.identities,
		catalogSource: b.catalogSource,
		metrics:       NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	// -------- LOGIN THROTTLE --------
	if b.redis != nil && cfg.Login.MaxAttempts > 0 {
		engine.throttle = rate.New(b.redis, rate.Config{
			Prefix:      cfg.Session.RedisPrefix,
			MaxAttempts: cfg.Login.MaxAttempts,
			Cooldown:    cfg.Login.Cooldown,
			ThrottleIP:  cfg.Login.ThrottleIP,
		})
	}

	// -------- CATALOG --------
	engine.catalog = catalog.NewCoordinator(cache, catalog.Options{
		Timeout:      cfg.Catalog.CacheTimeout,
		ClearTimeout: cfg.Catalog.ClearTimeout,
		LoadTimeout:  cfg.Catalog.LoadTimeout,
		Warn:         engine.warn,
		Hooks: catalog.Hooks{
			Hit:        func() { engine.metricInc(MetricCatalogHit) },
			Miss:       func() { engine.metricInc(MetricCatalogMiss) },
			LoadFailed: func(error) { engine.metricInc(MetricCatalogLoadFailure) },
			LoadLatency: func(d time.Duration) {
				engine.metrics.Observe(MetricCatalogLoadLatency, d)
			},
			CacheError: func(string, error) { engine.metricInc(MetricCatalogCacheError) },
		},
	})
	engine.trigger = catalog.NewTrigger(engine.catalog, engine.warn)
	engine.trigger.OnFire = engine.onCatalogInvalidated
	if b.catalogSource != nil {
		engine.catalogWriter = catalog.NewInvalidatingWriter(b.catalogSource, engine.trigger)
	}

	// -------- FLOWS --------
	addToken := flows.AddTokenDeps{
		NewSessionID:    internal.NewSessionID,
		NewRefreshToken: internal.NewRefreshToken,
		AccessTTL:       cfg.JWT.AccessTTL,
		RefreshTTL:      cfg.JWT.RefreshTTL,
		Store:           store,
	}
	engine.flows = flows.Deps{
		AddToken: addToken,
		Refresh: flows.RefreshDeps{
			Now:             now,
			NewRefreshToken: internal.NewRefreshToken,
			AccessTTL:       cfg.JWT.AccessTTL,
			RefreshTTL:      cfg.JWT.RefreshTTL,
			Warn:            engine.warn,
			Store:           store,
		},
		Login: flows.LoginDeps{
			Now:            now,
			Users:          loginUsers{provider: b.identities},
			UserNotFound:   ErrUserNotFound,
			VerifyPassword: password.Verify,
			Sign: func(u *flows.LoginUserRecord, issuedAt time.Time) (string, error) {
				return jm.SignAt(jwt.Identity{UserID: u.UserID, Subject: u.Subject, Roles: u.Roles}, issuedAt)
			},
			AddToken: addToken,
		},
		Logout: flows.LogoutDeps{Store: store},
	}

	b.built = true
	return engine, nil
}

// loginUsers adapts an IdentityProvider to the login flow.
type loginUsers struct {
	provider IdentityProvider
}

func (l loginUsers) GetByPhoneNumber(ctx context.Context, phone string) (*flows.LoginUserRecord, error) {
	u, err := l.provider.GetByPhoneNumber(ctx, phone)
	if err != nil || u == nil {
		return nil, err
	}
	return &flows.LoginUserRecord{
		UserID:       u.UserID,
		Subject:      u.Subject,
		PhoneNumber:  u.PhoneNumber,
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles,
		Active:       u.Active,
	}, nil
}
