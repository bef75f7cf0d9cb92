package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// UserFriendlyError provides actionable error messages for end users
type UserFriendlyError struct {
	Message    string // User-facing message explaining what went wrong
	Suggestion string // Actionable steps to fix the issue
	DocsLink   string // Optional link to documentation
	Details    error  // Original error for debugging/logs
}

func (e *UserFriendlyError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString("How to fix:\n")
		sb.WriteString(e.Suggestion)
	}

	if e.DocsLink != "" {
		sb.WriteString("\n\n")
		sb.WriteString("Documentation: ")
		sb.WriteString(e.DocsLink)
	}

	return sb.String()
}

func (e *UserFriendlyError) Unwrap() error {
	return e.Details
}

// NewFriendlyError creates a user-friendly error
func NewFriendlyError(message, suggestion string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// WithDetails adds the underlying error details
func (e *UserFriendlyError) WithDetails(err error) *UserFriendlyError {
	e.Details = err
	return e
}

// WithDocs adds a documentation link
func (e *UserFriendlyError) WithDocs(link string) *UserFriendlyError {
	e.DocsLink = link
	return e
}

// Short returns the message without the suggestion block, for one-line status bars.
func Short(err error) string {
	var fe *UserFriendlyError
	if errors.As(err, &fe) {
		return fe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// NetworkError returns a network-related error with helpful suggestions
func NetworkError(err error) *UserFriendlyError {
	msg := "Network error occurred"
	suggestion := "Check your internet connection, then press r to retry"

	if err != nil {
		errStr := err.Error()

		if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "name resolution") {
			msg = "Cannot resolve hostname - DNS lookup failed"
			suggestion = "1. Check your internet connection\n2. Verify DNS settings\n3. Check sources.*.base_url in your config"
		}

		if strings.Contains(errStr, "connection refused") {
			msg = "Server refused connection"
			suggestion = "The server may be down or blocking requests. Try again later."
		}

		if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
			msg = "Connection timed out"
			suggestion = "Server is slow or unreachable. Try:\n1. Increase network.timeout_seconds\n2. Check your network speed\n3. Press r to retry"
		}

		var sc statusCoder
		if errors.As(err, &sc) {
			switch code := sc.HTTPStatus(); {
			case code == http.StatusUnauthorized || code == http.StatusForbidden:
				return AuthError(errStr, code, err)
			case code == http.StatusTooManyRequests:
				msg = "Rate limited by the platform"
				suggestion = "Wait a moment, then press r to retry"
			case code >= 500:
				msg = fmt.Sprintf("Platform error (%d)", code)
				suggestion = "The platform is having trouble. Press r to retry later."
			}
		}
	}

	return &UserFriendlyError{
		Message:    msg,
		Suggestion: suggestion,
		Details:    err,
	}
}

// AuthError returns authentication-related errors with token setup guidance
func AuthError(host string, statusCode int, err error) *UserFriendlyError {
	msg := fmt.Sprintf("Authentication failed (%d)", statusCode)
	suggestion := "Check your access token"

	switch {
	case strings.Contains(host, "curseforge"):
		msg = "CurseForge authentication failed"
		suggestion = "1. Set your key: export CURSEFORGE_API_KEY=...\n" +
			"2. Get a key at: https://console.curseforge.com\n" +
			"3. Or point sources.curseforge.base_url at a proxy that injects it"

	case strings.Contains(host, "modrinth"):
		msg = "Modrinth authentication failed"
		suggestion = "1. Unset sources.modrinth.token_env for anonymous access\n" +
			"2. Or create a personal access token at: https://modrinth.com/settings/pats"
	}

	return &UserFriendlyError{
		Message:    msg,
		Suggestion: suggestion,
		Details:    err,
	}
}

// ConfigError returns configuration-related errors
func ConfigError(field, issue string) *UserFriendlyError {
	return &UserFriendlyError{
		Message:    fmt.Sprintf("Configuration error in field '%s': %s", field, issue),
		Suggestion: "Run 'modbrowse config validate' to check your configuration",
		DocsLink:   "https://github.com/jxwalker/modbrowse#configuration",
	}
}

// DatabaseError returns database-related errors with recovery suggestions
func DatabaseError(err error) *UserFriendlyError {
	msg := "Database error"
	suggestion := "Check that general.data_root is writable"

	if err != nil {
		errStr := err.Error()

		if strings.Contains(errStr, "locked") {
			msg = "Database is locked by another process"
			suggestion = "Close other modbrowse instances and try again"
		}

		if strings.Contains(errStr, "corrupt") || strings.Contains(errStr, "malformed") {
			msg = "Database is corrupted"
			suggestion = "Move the instances database aside and re-add your instances:\n" +
				"  mv <data_root>/instances.db <data_root>/instances.db.bak"
		}
	}

	return &UserFriendlyError{
		Message:    msg,
		Suggestion: suggestion,
		Details:    err,
	}
}
