package twitchinfra

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nicklaw5/helix/v2"
	"go.opentelemetry.io/otel/attribute"

	"bsrBridge/internal/infrastructure/telemetry"
	"bsrBridge/internal/usecase/credentials"
)

const (
	DefaultClientID   = "gp762nuuoqcoxypju8c569th9wz7q5"
	DefaultAPIBaseURL = "https://api.twitch.tv/helix"
)

type IdentityServiceConfig struct {
	ClientID   string
	APIBaseURL string
	Timeout    time.Duration
}

// IdentityService resuelve usuarios en Helix con el token del relay.
// Cada llamada arma su propio cliente porque el token cambia con las credenciales.
type IdentityService struct {
	clientID   string
	apiBaseURL string
	httpClient *http.Client
}

func NewIdentityService(cfg IdentityServiceConfig) *IdentityService {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = DefaultClientID
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &IdentityService{
		clientID:   clientID,
		apiBaseURL: baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *IdentityService) CurrentUser(ctx context.Context, token string) (credentials.LookupResult, error) {
	return s.getUsers(ctx, "helix.users.current", token, nil)
}

func (s *IdentityService) UserByLogin(ctx context.Context, token, login string) (credentials.LookupResult, error) {
	return s.getUsers(ctx, "helix.users.by_login", token, []string{login})
}

func (s *IdentityService) getUsers(ctx context.Context, spanName, token string, logins []string) (credentials.LookupResult, error) {
	_, span := telemetry.StartSpan(ctx, spanName, attribute.Int("logins", len(logins)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		telemetry.RecordError(span, err)
		return credentials.LookupResult{}, err
	}

	client, err := helix.NewClient(&helix.Options{
		ClientID:        s.clientID,
		UserAccessToken: token,
		APIBaseURL:      s.apiBaseURL,
		HTTPClient:      s.httpClient,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return credentials.LookupResult{}, fmt.Errorf("helix: NewClient: %w", err)
	}

	resp, err := client.GetUsers(&helix.UsersParams{Logins: logins})
	if err != nil {
		telemetry.RecordError(span, err)
		return credentials.LookupResult{}, fmt.Errorf("helix: GetUsers: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	out := credentials.LookupResult{StatusCode: resp.StatusCode}
	for _, u := range resp.Data.Users {
		out.Users = append(out.Users, credentials.Identity{ID: u.ID, Login: u.Login})
	}
	return out, nil
}

var _ credentials.IdentityLookup = (*IdentityService)(nil)
