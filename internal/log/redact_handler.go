package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys contains attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,

	// Authentication
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"api-key":       true,
	"access_token":  true,
	"refresh_token": true,
	"private_key":   true,
	"secret_key":    true,

	// Session
	"session":    true,
	"session_id": true,
	"sessionid":  true,
	"sid":        true,
	"jsessionid": true,

	// Credentials
	"credential":  true,
	"credentials": true,
	"auth":        true,
}

// sensitiveKeywords mask any key containing one of them. The bare word
// "key" is left out; it matches too much ("primary_key", "keywords").
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// sensitivePatterns mask a string value regardless of its key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// AWS access keys
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),

	// Private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// secretParams are query parameter names whose values are masked in URLs.
// A parameter matches when its lowercased name equals or ends with one.
var secretParams = []string{
	"token", "key", "password", "passwd", "secret", "sig", "signature", "auth",
}

// RedactHandler wraps an slog.Handler and masks sensitive attribute values
// before passing records on.
type RedactHandler struct {
	handler slog.Handler
}

// NewRedactHandler wraps handler. A nil handler uses slog.Default().Handler().
func NewRedactHandler(handler slog.Handler) *RedactHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle redacts the record's attributes and passes it on.
func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, redacted)
}

// WithAttrs redacts attrs before adding them.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(redacted)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if r, ok := RedactURL(s); ok {
			return slog.String(a.Key, r)
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURL masks the userinfo password and secret query values of an
// absolute URL. ok is false when s is not an absolute URL or nothing had to
// change; the caller then keeps s.
func RedactURL(s string) (redacted string, ok bool) {
	if !strings.Contains(s, "://") {
		return s, false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return s, false
	}

	changed := false
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name, values := range q {
			if !isSecretParam(name) {
				continue
			}
			for i := range values {
				values[i] = MaskValue
			}
			changed = true
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	if !changed {
		return s, false
	}
	// Keep the mask readable; Encode and String would escape the asterisks.
	out := u.String()
	out = strings.ReplaceAll(out, url.QueryEscape(MaskValue), MaskValue)
	out = strings.ReplaceAll(out, url.PathEscape(MaskValue), MaskValue)
	return out, true
}

func isSecretParam(name string) bool {
	n := strings.ToLower(name)
	for _, p := range secretParams {
		if n == p || strings.HasSuffix(n, "_"+p) || strings.HasSuffix(n, "-"+p) {
			return true
		}
	}
	return false
}

// Option configures NewLogger.
type Option func(*options)

type options struct {
	baseLevel slog.Level
}

// WithBaseLevel sets the level used when verbose is off. The default is
// slog.LevelWarn; long-running commands use slog.LevelInfo.
func WithBaseLevel(level slog.Level) Option {
	return func(o *options) {
		o.baseLevel = level
	}
}

// NewLogger creates a redacting logger writing to w. verbose lowers the
// level to Debug; jsonOutput selects the JSON handler over the text one.
func NewLogger(w io.Writer, verbose, jsonOutput bool, opts ...Option) *slog.Logger {
	o := options{baseLevel: slog.LevelWarn}
	for _, opt := range opts {
		opt(&o)
	}

	level := o.baseLevel
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(NewRedactHandler(h))
}
