package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate reports every problem with the configuration at once. Secrets are
// never included in the returned values.
func (c Config) Validate() error {
	var errs ValidationErrors

	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs.Add("logFormat", "must be 'text' or 'json'", c.LogFormat)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 1 and 65535", c.Server.Port)
	}
	for _, p := range []struct{ field, value string }{
		{"server.loginPath", c.Server.LoginPath},
		{"server.callbackPath", c.Server.CallbackPath},
		{"server.logoutPath", c.Server.LogoutPath},
	} {
		if !strings.HasPrefix(p.value, "/") {
			errs.Add(p.field, "must be an absolute path", p.value)
		}
	}

	if strings.TrimSpace(c.OAuth.ClientID) == "" {
		errs.Add("oauth.clientId", "is required")
	}
	if strings.TrimSpace(c.OAuth.ClientSecret) == "" {
		errs.Add("oauth.clientSecret", "is required")
	}
	if err := validateAbsoluteURL(c.OAuth.RedirectURI); err != nil {
		errs.Add("oauth.redirectUri", err.Error(), c.OAuth.RedirectURI)
	}
	if len(c.OAuth.Scopes) == 0 {
		errs.Add("oauth.scopes", "must contain at least one scope")
	}
	switch c.OAuth.Prompt {
	case "", "consent", "none":
	default:
		errs.Add("oauth.prompt", "must be 'consent' or 'none'", c.OAuth.Prompt)
	}
	if c.OAuth.StateTTLSeconds <= 0 {
		errs.Add("oauth.stateTtlSeconds", "must be positive", c.OAuth.StateTTLSeconds)
	}

	if err := validateAbsoluteURL(c.API.BaseURL); err != nil {
		errs.Add("api.baseUrl", err.Error(), c.API.BaseURL)
	}
	if c.API.Version < 0 {
		errs.Add("api.version", "must not be negative", c.API.Version)
	}
	if c.API.RequestsPerSecond < 0 {
		errs.Add("api.requestsPerSecond", "must not be negative", c.API.RequestsPerSecond)
	}
	if c.API.TimeoutSeconds <= 0 {
		errs.Add("api.timeoutSeconds", "must be positive", c.API.TimeoutSeconds)
	}

	if c.Cache.TTLSeconds <= 0 {
		errs.Add("cache.ttlSeconds", "must be positive", c.Cache.TTLSeconds)
	}

	if c.Session.CookieName == "" {
		errs.Add("session.cookieName", "is required")
	}
	if c.Session.MaxAgeSeconds <= 0 {
		errs.Add("session.maxAgeSeconds", "must be positive", c.Session.MaxAgeSeconds)
	}
	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendCookie:
		if len(c.Session.Secret) < 32 {
			errs.Add("session.secret", "must be at least 32 bytes for the cookie backend")
		}
	case SessionBackendRedis:
		if c.Session.Redis.Addr == "" {
			errs.Add("session.redis.addr", "is required for the redis backend")
		}
	default:
		errs.Add("session.backend", "must be one of memory, cookie, redis", c.Session.Backend)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}
