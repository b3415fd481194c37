// Package credentials valida las credenciales del relay antes de abrir la sesión.
package credentials

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"bsrBridge/internal/domain"
	"bsrBridge/internal/infrastructure/telemetry"
)

// Identity es un usuario devuelto por la API.
type Identity struct {
	ID    string
	Login string
}

// LookupResult es la respuesta cruda de una consulta de usuarios.
type LookupResult struct {
	StatusCode int
	Users      []Identity
}

// IdentityLookup consulta usuarios con el token del relay. Un error significa
// que la llamada no llegó a tener respuesta HTTP.
type IdentityLookup interface {
	// CurrentUser devuelve el dueño del token.
	CurrentUser(ctx context.Context, token string) (LookupResult, error)
	// UserByLogin busca un usuario por login.
	UserByLogin(ctx context.Context, token, login string) (LookupResult, error)
}

type Validator struct {
	lookup IdentityLookup
	log    *slog.Logger
}

func NewValidator(lookup IdentityLookup, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		lookup: lookup,
		log:    logger.With(slog.String("component", "validator")),
	}
}

// Validate resuelve primero la identidad del token y solo después el canal.
// Devuelve nil o un *domain.ValidationError.
func (v *Validator) Validate(ctx context.Context, creds domain.RelayCredentials) error {
	err := v.validate(ctx, creds)
	if err != nil {
		telemetry.IncValidationFailure(err.Kind.String())
		v.log.Warn("credential validation failed",
			slog.String("account", creds.AccountName),
			slog.String("channel", creds.Channel),
			slog.Any("err", err))
		return err
	}
	v.log.Info("credentials valid", slog.String("account", creds.AccountName), slog.String("channel", creds.Channel))
	return nil
}

func (v *Validator) validate(ctx context.Context, creds domain.RelayCredentials) *domain.ValidationError {
	token := domain.NormalizeToken(creds.Token)

	// 1) Identidad del token
	identity, err := v.lookup.CurrentUser(ctx, token)
	if err != nil {
		return &domain.ValidationError{Kind: domain.ValidationNetworkError, Err: err}
	}
	if verr := statusError(identity.StatusCode); verr != nil {
		return verr
	}
	if len(identity.Users) == 0 {
		return &domain.ValidationError{Kind: domain.ValidationInvalidToken}
	}

	actual := identity.Users[0].Login
	if !strings.EqualFold(actual, strings.TrimSpace(creds.AccountName)) {
		return &domain.ValidationError{Kind: domain.ValidationIdentityMismatch, Login: actual}
	}

	// 2) El canal destino tiene que existir
	channel := domain.NormalizeChannel(creds.Channel)
	target, err := v.lookup.UserByLogin(ctx, token, channel)
	if err != nil {
		return &domain.ValidationError{Kind: domain.ValidationChannelLookupFailed, Err: err}
	}
	if !is2xx(target.StatusCode) {
		return &domain.ValidationError{Kind: domain.ValidationChannelLookupFailed, Status: target.StatusCode}
	}
	if len(target.Users) == 0 {
		return &domain.ValidationError{Kind: domain.ValidationChannelNotFound, Channel: channel}
	}

	return nil
}

func statusError(code int) *domain.ValidationError {
	switch {
	case is2xx(code):
		return nil
	case code == http.StatusUnauthorized:
		return &domain.ValidationError{Kind: domain.ValidationInvalidToken, Status: code}
	case code == http.StatusForbidden:
		return &domain.ValidationError{Kind: domain.ValidationInsufficientScope, Status: code}
	default:
		return &domain.ValidationError{Kind: domain.ValidationAPIError, Status: code}
	}
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}
