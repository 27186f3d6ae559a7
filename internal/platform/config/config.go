package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every configuration key.
const EnvPrefix = "STOREFRONT_"

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultRevealDelay        = 50 * time.Millisecond
	defaultMinPrice           = 0
	defaultMaxPrice           = 10000
	defaultContactBaseURL     = "https://wa.me/"
	defaultCurrencySymbol     = "₹"
	defaultCategoryCacheTTL   = 5 * time.Minute
	defaultSessionIdleTTL     = 30 * time.Minute
	defaultSessionSweep       = time.Minute
	defaultMaxSessions        = 5000
	defaultSessionsPerMinute  = 30
	defaultContactsPerMinute  = 20
	defaultEnvironment        = "local"
	defaultSecretFallbackFile = ".secrets.local"

	// LogLevelKey is read before Load so the logger exists while secrets resolve.
	LogLevelKey = EnvPrefix + "LOG_LEVEL"

	// WhatsAppNumberSecret names the contact number field for WithRequiredSecrets.
	WhatsAppNumberSecret = "Contact.WhatsAppNumber"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Firestore   FirestoreConfig
	Catalog     CatalogConfig
	Contact     ContactConfig
	Cache       CacheConfig
	Events      EventsConfig
	Sessions    SessionsConfig
	RateLimits  RateLimitConfig
	Secrets     SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// CatalogConfig tunes the progressive reveal and the default price range.
type CatalogConfig struct {
	RevealDelay     time.Duration
	DefaultMinPrice float64
	DefaultMaxPrice float64
}

// ContactConfig describes the outbound contact channels.
type ContactConfig struct {
	WhatsAppNumber string
	BaseURL        string
	CurrencySymbol string
	MailAddress    string
}

// CacheConfig configures the category cache. An empty RedisURL selects the
// in-process cache.
type CacheConfig struct {
	RedisURL    string
	CategoryTTL time.Duration
}

// EventsConfig configures contact interest publishing. An empty topic disables it.
type EventsConfig struct {
	ProjectID    string
	ContactTopic string
}

// SessionsConfig bounds the viewer session registry.
type SessionsConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Max           int
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	SessionsPerMinute int
	ContactsPerMinute int
}

// SecretsConfig configures Secret Manager lookups.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.names) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns the sorted hashed identifiers, safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, redactSecretName(name))
	}
	sort.Strings(out)
	return out
}

// Names returns the sorted secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// WithEnvFile overrides the .env file path. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config field names (e.g. "Contact.WhatsAppNumber")
// as mandatory after resolution.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// EnvironmentValues returns the effective key/value map using the same
// precedence as Load (dotenv < OS env < explicit map), so dependencies such as
// the secret fetcher can be built before Load runs.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)

	values, err := readDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the configuration from defaults, the .env file, the process
// environment, the explicit map and resolved secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	dotEnvValues, err := readDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		key = EnvPrefix + key
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "SECURITY_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "SERVER_PORT", defaultPort),
			ReadTimeout:    durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			AllowedOrigins: listWithDefault(lookup, "SERVER_ALLOWED_ORIGINS"),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		Catalog: CatalogConfig{
			RevealDelay:     durationWithDefault(lookup, "CATALOG_REVEAL_DELAY", defaultRevealDelay),
			DefaultMinPrice: floatWithDefault(lookup, "CATALOG_DEFAULT_MIN_PRICE", defaultMinPrice),
			DefaultMaxPrice: floatWithDefault(lookup, "CATALOG_DEFAULT_MAX_PRICE", defaultMaxPrice),
		},
		Contact: ContactConfig{
			WhatsAppNumber: stringWithDefault(lookup, "CONTACT_WHATSAPP_NUMBER", ""),
			BaseURL:        stringWithDefault(lookup, "CONTACT_BASE_URL", defaultContactBaseURL),
			CurrencySymbol: stringWithDefault(lookup, "CONTACT_CURRENCY_SYMBOL", defaultCurrencySymbol),
			MailAddress:    stringWithDefault(lookup, "CONTACT_MAIL_ADDRESS", ""),
		},
		Cache: CacheConfig{
			RedisURL:    stringWithDefault(lookup, "CACHE_REDIS_URL", ""),
			CategoryTTL: durationWithDefault(lookup, "CACHE_CATEGORY_TTL", defaultCategoryCacheTTL),
		},
		Events: EventsConfig{
			ProjectID:    stringWithDefault(lookup, "EVENTS_PROJECT_ID", ""),
			ContactTopic: stringWithDefault(lookup, "EVENTS_CONTACT_TOPIC", ""),
		},
		Sessions: SessionsConfig{
			IdleTTL:       durationWithDefault(lookup, "SESSIONS_IDLE_TTL", defaultSessionIdleTTL),
			SweepInterval: durationWithDefault(lookup, "SESSIONS_SWEEP_INTERVAL", defaultSessionSweep),
			Max:           intWithDefault(lookup, "SESSIONS_MAX", defaultMaxSessions),
		},
		RateLimits: RateLimitConfig{
			SessionsPerMinute: intWithDefault(lookup, "RATELIMIT_SESSIONS_PER_MIN", defaultSessionsPerMinute),
			ContactsPerMinute: intWithDefault(lookup, "RATELIMIT_CONTACTS_PER_MIN", defaultContactsPerMinute),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "SECRETS_FALLBACK_FILE", defaultSecretFallbackFile),
		},
	}

	// Pub/Sub and Secret Manager live in the Firestore project unless told otherwise.
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Secrets.ProjectID == "" {
		cfg.Secrets.ProjectID = cfg.Firestore.ProjectID
	}

	resolvedSecrets := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{WhatsAppNumberSecret, &cfg.Contact.WhatsAppNumber},
		{"Cache.RedisURL", &cfg.Cache.RedisURL},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
		resolvedSecrets[target.name] = strings.TrimSpace(resolved)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "Server.Port")
	}
	if strings.TrimSpace(cfg.Firestore.ProjectID) == "" {
		invalid = append(invalid, "Firestore.ProjectID")
	}
	if cfg.Catalog.RevealDelay < 0 {
		invalid = append(invalid, "Catalog.RevealDelay")
	}
	if cfg.Catalog.DefaultMaxPrice <= cfg.Catalog.DefaultMinPrice {
		invalid = append(invalid, "Catalog.DefaultMaxPrice")
	}
	if strings.TrimSpace(cfg.Contact.WhatsAppNumber) == "" {
		invalid = append(invalid, "Contact.WhatsAppNumber")
	}
	if cfg.Cache.CategoryTTL < 0 {
		invalid = append(invalid, "Cache.CategoryTTL")
	}
	if cfg.Sessions.IdleTTL <= 0 {
		invalid = append(invalid, "Sessions.IdleTTL")
	}
	if cfg.Sessions.SweepInterval <= 0 {
		invalid = append(invalid, "Sessions.SweepInterval")
	}
	if cfg.Sessions.Max <= 0 {
		invalid = append(invalid, "Sessions.Max")
	}
	if cfg.RateLimits.SessionsPerMinute < 0 {
		invalid = append(invalid, "RateLimits.SessionsPerMinute")
	}
	if cfg.RateLimits.ContactsPerMinute < 0 {
		invalid = append(invalid, "RateLimits.ContactsPerMinute")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var missing []string
	seen := make(map[string]struct{}, len(required))
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(resolved[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{names: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

// readDotEnv returns nil when path is empty or the file does not exist.
func readDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// listWithDefault splits a comma separated value, dropping blanks.
func listWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
