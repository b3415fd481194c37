package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bsrBridge/internal/app"
	"bsrBridge/internal/domain"
)

type Config struct {
	Addr       string
	Controller Controller
	Logger     *slog.Logger
}

func (c *Config) addr() string {
	if c == nil || c.Addr == "" {
		return ":8080"
	}
	return c.Addr
}

// Controller es lo que la API necesita del runtime. Cada llamada se resuelve
// dentro del loop del bridge.
type Controller interface {
	Status(ctx context.Context) (app.Status, error)
	Credentials(ctx context.Context) (domain.RelayCredentials, error)
	SaveCredentials(ctx context.Context, creds domain.RelayCredentials) error
	ConnectRelay(ctx context.Context) error
	DisconnectRelay(ctx context.Context) error
	EditRelay(ctx context.Context) error
	SourceTarget(ctx context.Context) (domain.ConnectionConfig, error)
	SaveSourceTarget(ctx context.Context, cfg domain.ConnectionConfig, connect bool) error
}

type apiHandlers struct {
	ctrl Controller
	log  *slog.Logger
}

func newAPIHandlers(cfg Config) *apiHandlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &apiHandlers{
		ctrl: cfg.Controller,
		log:  logger.With(slog.String("component", "api")),
	}
}

func (a *apiHandlers) register(mux *http.ServeMux) {
	if a == nil || mux == nil {
		return
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", promhttp.Handler())

	if a.ctrl == nil {
		return
	}
	mux.HandleFunc("/api/status", a.withCORS(a.handleStatus))
	mux.HandleFunc("/api/credentials", a.withCORS(a.handleCredentials))
	mux.HandleFunc("/api/relay/connect", a.withCORS(a.relayAction(a.ctrl.ConnectRelay)))
	mux.HandleFunc("/api/relay/disconnect", a.withCORS(a.relayAction(a.ctrl.DisconnectRelay)))
	mux.HandleFunc("/api/relay/edit", a.withCORS(a.relayAction(a.ctrl.EditRelay)))
	mux.HandleFunc("/api/source", a.withCORS(a.handleSource))
}

func (a *apiHandlers) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
}

func (a *apiHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st, err := a.ctrl.Status(r.Context())
	if err != nil {
		a.internalError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type credentialsResponse struct {
	HasToken    bool   `json:"has_token"`
	AccountName string `json:"account_name"`
	Channel     string `json:"channel"`
	Complete    bool   `json:"complete"`
}

type credentialsRequest struct {
	Token       string `json:"token"`
	AccountName string `json:"account_name"`
	Channel     string `json:"channel"`
}

func (a *apiHandlers) handleCredentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		creds, err := a.ctrl.Credentials(r.Context())
		if err != nil {
			a.internalError(w, "credentials", err)
			return
		}
		writeJSON(w, http.StatusOK, credentialsResponse{
			HasToken:    strings.TrimSpace(creds.Token) != "",
			AccountName: creds.AccountName,
			Channel:     creds.Channel,
			Complete:    creds.Complete(),
		})

	case http.MethodPost:
		defer r.Body.Close()
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		creds := domain.RelayCredentials{
			Token:       domain.NormalizeToken(req.Token),
			AccountName: strings.TrimSpace(req.AccountName),
			Channel:     strings.TrimSpace(req.Channel),
		}
		if creds.Channel == "" {
			creds.Channel = creds.AccountName
		}
		// el GET nunca devuelve el token: un token vacío significa "conservar el guardado"
		if creds.Token == "" {
			stored, err := a.ctrl.Credentials(r.Context())
			if err != nil {
				a.internalError(w, "credentials", err)
				return
			}
			creds.Token = domain.NormalizeToken(stored.Token)
		}
		if err := a.ctrl.SaveCredentials(r.Context(), creds); err != nil {
			a.internalError(w, "save credentials", err)
			return
		}
		writeJSON(w, http.StatusOK, credentialsResponse{
			HasToken:    creds.Token != "",
			AccountName: creds.AccountName,
			Channel:     creds.Channel,
			Complete:    creds.Complete(),
		})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *apiHandlers) relayAction(action func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := action(r.Context()); err != nil {
			a.internalError(w, "relay action", err)
			return
		}
		st, err := a.ctrl.Status(r.Context())
		if err != nil {
			a.internalError(w, "status", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

type sourceRequest struct {
	Address string `json:"address"`
	Port    string `json:"port"`
	Path    string `json:"path"`
	Connect bool   `json:"connect"`
}

type sourceResponse struct {
	Address string `json:"address"`
	Port    string `json:"port"`
	Path    string `json:"path"`
	URL     string `json:"url"`
}

func (a *apiHandlers) handleSource(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := a.ctrl.SourceTarget(r.Context())
		if err != nil {
			a.internalError(w, "source target", err)
			return
		}
		writeJSON(w, http.StatusOK, newSourceResponse(cfg))

	case http.MethodPost:
		defer r.Body.Close()
		var req sourceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		cfg := domain.ConnectionConfig{Address: req.Address, Port: req.Port, Path: req.Path}
		if err := a.ctrl.SaveSourceTarget(r.Context(), cfg, req.Connect); err != nil {
			a.internalError(w, "save source target", err)
			return
		}
		writeJSON(w, http.StatusOK, newSourceResponse(cfg))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newSourceResponse(cfg domain.ConnectionConfig) sourceResponse {
	return sourceResponse{Address: cfg.Address, Port: cfg.Port, Path: cfg.Path, URL: cfg.URL()}
}

func (a *apiHandlers) internalError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "bridge not available")
		return
	}
	a.log.Warn("api request failed", slog.String("op", op), slog.Any("err", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
