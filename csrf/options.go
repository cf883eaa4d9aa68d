package csrf

import (
	"crypto/rand"
	"io"
	"log/slog"
	"time"
)

// Defaults applied by New when the corresponding Config field is empty.
const (
	DefaultTokenKey      = "csrf_token"
	DefaultExpiryKey     = "csrf_token_expire_at"
	DefaultExpiryMinutes = 10
	DefaultFieldName     = "_token"
	DefaultHeaderName    = "X-CSRF-TOKEN"

	minTokenBytes = 32
)

type Config struct {
	// Session slots
	TokenKey  string // default: "csrf_token"
	ExpiryKey string // default: "csrf_token_expire_at"

	// Lifetime of a generated token. Values <= 0 fall back to
	// DefaultExpiryMinutes; use Guard.SetExpiryMinutes for zero or negative.
	ExpiryMinutes int

	// Token transport
	FieldName  string // body/query parameter, default: "_token"
	HeaderName string // fallback header, default: "X-CSRF-TOKEN"

	// Origin check
	AllowedHost   string // if empty, uses the request host
	RequireOrigin bool   // reject requests carrying neither Origin nor Referer

	// Reject sessions holding a token without an expiry slot.
	RequireExpiry bool

	// Entropy, never below 32 bytes.
	TokenBytes int

	Logger   *slog.Logger
	Observer Observer

	// Test hooks
	Now  func() time.Time
	Rand io.Reader
}

func (cfg Config) withDefaults() Config {
	if cfg.TokenKey == "" {
		cfg.TokenKey = DefaultTokenKey
	}
	if cfg.ExpiryKey == "" {
		cfg.ExpiryKey = DefaultExpiryKey
	}
	if cfg.ExpiryMinutes <= 0 {
		cfg.ExpiryMinutes = DefaultExpiryMinutes
	}
	if cfg.FieldName == "" {
		cfg.FieldName = DefaultFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.TokenBytes < minTokenBytes {
		cfg.TokenBytes = minTokenBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	return cfg
}
