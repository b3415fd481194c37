package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ReasonError es un error con un texto apto para mostrar al usuario.
type ReasonError interface {
	error
	Reason() string
}

// ReasonOf devuelve el texto para la UI de err, o fallback si no tiene uno.
func ReasonOf(err error, fallback string) string {
	var re ReasonError
	if errors.As(err, &re) {
		return re.Reason()
	}
	return fallback
}

// ---------- Connectivity ----------

type ConnKind string

const (
	ConnEventSource ConnKind = "eventsource"
	ConnRelay       ConnKind = "relay"
)

type ConnectivityError struct {
	Conn ConnKind
	Err  error
}

func (e *ConnectivityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: connection error", e.Conn)
	}
	return fmt.Sprintf("%s: connection error: %v", e.Conn, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Reason() string { return "Connection error occurred" }

// ---------- Validation ----------

type ValidationKind int

const (
	ValidationInvalidToken ValidationKind = iota
	ValidationInsufficientScope
	ValidationAPIError
	ValidationNetworkError
	ValidationIdentityMismatch
	ValidationChannelLookupFailed
	ValidationChannelNotFound
)

func (k ValidationKind) String() string {
	switch k {
	case ValidationInvalidToken:
		return "invalid_token"
	case ValidationInsufficientScope:
		return "insufficient_scope"
	case ValidationAPIError:
		return "api_error"
	case ValidationNetworkError:
		return "network_error"
	case ValidationIdentityMismatch:
		return "identity_mismatch"
	case ValidationChannelLookupFailed:
		return "channel_lookup_failed"
	case ValidationChannelNotFound:
		return "channel_not_found"
	default:
		return "unknown"
	}
}

// ValidationError es el resultado negativo del validador de credenciales.
type ValidationError struct {
	Kind    ValidationKind
	Status  int    // APIError
	Login   string // IdentityMismatch
	Channel string // ChannelNotFound
	Err     error
}

func (e *ValidationError) Error() string {
	msg := "validation: " + e.Kind.String()
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Reason() string {
	switch e.Kind {
	case ValidationInvalidToken:
		return "OAuth token invalid or expired"
	case ValidationInsufficientScope:
		return "OAuth token missing required scopes"
	case ValidationAPIError:
		return "API error: " + strconv.Itoa(e.Status)
	case ValidationNetworkError:
		return "Network error during validation"
	case ValidationIdentityMismatch:
		return "Username mismatch: token belongs to '" + e.Login + "'"
	case ValidationChannelLookupFailed:
		return "Failed to validate channel"
	case ValidationChannelNotFound:
		return "Channel '" + e.Channel + "' does not exist"
	default:
		return "Validation failed"
	}
}

// ---------- Auth (handshake del relay) ----------

type AuthKind int

const (
	AuthInvalidToken AuthKind = iota
	AuthInvalidIdentity
	AuthTimeout
	AuthConnectionError
)

func (k AuthKind) String() string {
	switch k {
	case AuthInvalidToken:
		return "invalid_token"
	case AuthInvalidIdentity:
		return "invalid_identity"
	case AuthTimeout:
		return "auth_timeout"
	case AuthConnectionError:
		return "connection_error"
	default:
		return "unknown"
	}
}

type AuthError struct {
	Kind AuthKind
}

func (e *AuthError) Error() string { return "relay auth: " + e.Kind.String() }

func (e *AuthError) Reason() string {
	switch e.Kind {
	case AuthInvalidToken:
		return "OAuth token invalid or expired"
	case AuthInvalidIdentity:
		return "Username not found or invalid"
	case AuthTimeout:
		return "Authentication timeout"
	case AuthConnectionError:
		return "Connection failed - check internet"
	default:
		return "Connection error occurred"
	}
}

// ---------- Config ----------

type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string { return "config: missing " + e.Field }

func (e *ConfigError) Reason() string { return "Missing credentials" }
