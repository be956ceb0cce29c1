// Package auth validates and issues the bearer tokens that identify users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
)

// Token validation errors.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidClaims   = errors.New("invalid claims")
	ErrMissingSubject  = errors.New("missing subject claim")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")
	ErrMissingSecret   = errors.New("signing secret is required")
)

// Claims are the validated parts of a token.
type Claims struct {
	UserID    notification.UserID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Validator validates bearer tokens.
type Validator interface {
	// Validate validates token and returns claims.
	Validate(ctx context.Context, token string) (*Claims, error)

	// Close stops background work such as JWKS refresh.
	Close() error
}

// Config contains configuration for validators.
type Config struct {
	// Secret is the HS256 shared secret. Ignored when JWKSURL is set.
	Secret string
	// JWKSURL switches validation to asymmetric keys fetched from this URL.
	JWKSURL string
	// Issuer is the expected iss claim, checked when non-empty.
	Issuer string
	// Audience is the expected aud claim, checked when non-empty.
	Audience string
	// Leeway is the clock skew tolerance.
	Leeway time.Duration
	// RefreshInterval is the JWKS refresh interval.
	RefreshInterval time.Duration
	Logger          *slog.Logger
}

// Default configuration values.
const (
	DefaultLeeway          = 30 * time.Second
	DefaultRefreshInterval = 1 * time.Hour
)

func (c *Config) applyDefaults() {
	if c.Leeway == 0 {
		c.Leeway = DefaultLeeway
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewValidator returns a JWKS validator when a JWKS URL is configured and an
// HS256 validator otherwise.
func NewValidator(config Config) (Validator, error) {
	if config.JWKSURL != "" {
		return NewJWKSValidator(config)
	}
	return NewHMACValidator(config)
}

// jwtValidator implements Validator on top of a jwt.Keyfunc.
type jwtValidator struct {
	keyfunc jwt.Keyfunc
	methods []string
	config  Config
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewHMACValidator validates HS256 tokens signed with config.Secret.
func NewHMACValidator(config Config) (Validator, error) {
	if config.Secret == "" {
		return nil, ErrMissingSecret
	}
	config.applyDefaults()

	secret := []byte(config.Secret)
	return &jwtValidator{
		keyfunc: func(*jwt.Token) (any, error) { return secret, nil },
		methods: []string{jwt.SigningMethodHS256.Alg()},
		config:  config,
		logger:  config.Logger,
	}, nil
}

// NewJWKSValidator validates RS256/ES256 tokens against keys served at
// config.JWKSURL. Keys are cached and refreshed in the background until Close.
func NewJWKSValidator(config Config) (Validator, error) {
	if config.JWKSURL == "" {
		return nil, fmt.Errorf("%w: JWKS URL is required", ErrJWKSFetchFailed)
	}
	config.applyDefaults()
	logger := config.Logger

	logger.Info("initializing JWKS validator",
		slog.String("jwks_url", config.JWKSURL),
		slog.Duration("refresh_interval", config.RefreshInterval),
	)

	ctx, cancel := context.WithCancel(context.Background())

	storage, err := jwkset.NewStorageFromHTTP(config.JWKSURL, jwkset.HTTPClientStorageOptions{
		Ctx:             ctx,
		RefreshInterval: config.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("failed to refresh JWKS", slog.Any("error", err))
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	jwks, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetchFailed, err)
	}

	return &jwtValidator{
		keyfunc: jwks.Keyfunc,
		methods: []string{
			jwt.SigningMethodRS256.Alg(),
			jwt.SigningMethodES256.Alg(),
		},
		config: config,
		logger: logger,
		cancel: cancel,
	}, nil
}

// Validate validates token and returns claims.
func (v *jwtValidator) Validate(_ context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(v.config.Leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods(v.methods),
	}
	if v.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.config.Audience))
	}

	parsed, err := jwt.Parse(token, v.keyfunc, parserOpts...)
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	return extractClaims(claims)
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %w", ErrInvalidIssuer, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %w", ErrInvalidAudience, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}

func extractClaims(claims jwt.MapClaims) (*Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidClaims, err)
	}
	userID, err := notification.ParseUserID(sub)
	if err != nil {
		return nil, ErrMissingSubject
	}

	tc := &Claims{UserID: userID}
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		tc.IssuedAt = iat.Time
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil {
		tc.ExpiresAt = exp.Time
	}
	return tc, nil
}

// Close stops background JWKS refresh.
func (v *jwtValidator) Close() error {
	if v.cancel != nil {
		v.logger.Info("closing JWKS validator")
		v.cancel()
	}
	return nil
}
