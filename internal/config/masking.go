package config

import "strings"

// maskSecret keeps the first and last four characters of secret.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 8 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// Masked returns a copy of the configuration that is safe to print.
func (c Config) Masked() Config {
	c.Credentials.Passphrase = maskSecret(c.Credentials.Passphrase)
	if parts := strings.SplitN(c.Notify.Telegram.Token, ":", 2); len(parts) == 2 {
		c.Notify.Telegram.Token = parts[0] + ":" + maskSecret(parts[1])
	} else {
		c.Notify.Telegram.Token = maskSecret(c.Notify.Telegram.Token)
	}
	return c
}

func formatValidationError(field, message string, secret string) error {
	errorMsg := field + ": " + message
	if secret != "" {
		errorMsg += " (value: " + maskSecret(secret) + ")"
	}
	return &ValidationError{Field: field, Message: errorMsg}
}

// ValidationError is a validation failure whose message never carries a raw secret.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
