package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bsrBridge/internal/domain"
)

const (
	settingSourceAddress = "source_address"
	settingSourcePort    = "source_port"
	settingSourcePath    = "source_path"
	settingRelayEnabled  = "relay_enabled"
)

// CredentialStore guarda las credenciales del relay y el destino de la fuente.
type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(dbPath string) (*CredentialStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: creating dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &CredentialStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const credentialsTable = `
CREATE TABLE IF NOT EXISTS relay_credentials (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	token TEXT NOT NULL,
	account_name TEXT NOT NULL,
	channel TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

	if _, err := db.Exec(credentialsTable); err != nil {
		return fmt.Errorf("sqlite: migrate relay_credentials: %w", err)
	}

	const settingsTable = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at TIMESTAMP NOT NULL
);`

	if _, err := db.Exec(settingsTable); err != nil {
		return fmt.Errorf("sqlite: migrate settings: %w", err)
	}

	return nil
}

func (s *CredentialStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetCredentials devuelve las credenciales guardadas; sin fila devuelve valores vacíos.
func (s *CredentialStore) GetCredentials(ctx context.Context) (domain.RelayCredentials, error) {
	const query = `
SELECT token, account_name, channel
FROM relay_credentials
WHERE id = 1
LIMIT 1;
`

	var creds domain.RelayCredentials
	err := s.db.QueryRowContext(ctx, query).Scan(&creds.Token, &creds.AccountName, &creds.Channel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RelayCredentials{}, nil
		}
		return domain.RelayCredentials{}, fmt.Errorf("sqlite: get credentials: %w", err)
	}
	return creds, nil
}

// SaveCredentials reemplaza la fila única. El token se guarda sin prefijo "oauth:".
func (s *CredentialStore) SaveCredentials(ctx context.Context, creds domain.RelayCredentials) error {
	const stmt = `
INSERT INTO relay_credentials (id, token, account_name, channel, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	token=excluded.token,
	account_name=excluded.account_name,
	channel=excluded.channel,
	updated_at=excluded.updated_at;
`

	_, err := s.db.ExecContext(
		ctx,
		stmt,
		domain.NormalizeToken(creds.Token),
		strings.TrimSpace(creds.AccountName),
		strings.TrimSpace(creds.Channel),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save credentials: %w", err)
	}
	return nil
}

// GetSourceTarget devuelve el destino guardado; los campos vacíos quedan vacíos.
func (s *CredentialStore) GetSourceTarget(ctx context.Context) (domain.ConnectionConfig, error) {
	var cfg domain.ConnectionConfig
	var err error
	if cfg.Address, err = s.getSetting(ctx, settingSourceAddress); err != nil {
		return domain.ConnectionConfig{}, err
	}
	if cfg.Port, err = s.getSetting(ctx, settingSourcePort); err != nil {
		return domain.ConnectionConfig{}, err
	}
	if cfg.Path, err = s.getSetting(ctx, settingSourcePath); err != nil {
		return domain.ConnectionConfig{}, err
	}
	return cfg, nil
}

func (s *CredentialStore) SaveSourceTarget(ctx context.Context, cfg domain.ConnectionConfig) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	values := map[string]string{
		settingSourceAddress: strings.TrimSpace(cfg.Address),
		settingSourcePort:    strings.TrimSpace(cfg.Port),
		settingSourcePath:    strings.TrimSpace(cfg.Path),
	}
	now := time.Now().UTC()
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, upsertSetting, key, value, now); err != nil {
			return fmt.Errorf("sqlite: save source target: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit source target: %w", err)
	}
	return nil
}

// SetRelayEnabled persiste el toggle del relay entre reinicios.
func (s *CredentialStore) SetRelayEnabled(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return s.setSetting(ctx, settingRelayEnabled, value)
}

// GetRelayEnabled devuelve (valor, existe).
func (s *CredentialStore) GetRelayEnabled(ctx context.Context) (bool, bool, error) {
	value, err := s.getSetting(ctx, settingRelayEnabled)
	if err != nil {
		return false, false, err
	}
	if value == "" {
		return false, false, nil
	}
	return value == "true", true, nil
}

const upsertSetting = `
INSERT INTO settings (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	value=excluded.value,
	updated_at=excluded.updated_at;
`

func (s *CredentialStore) setSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("sqlite: empty setting key")
	}

	if _, err := s.db.ExecContext(ctx, upsertSetting, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: set setting: %w", err)
	}

	return nil
}

func (s *CredentialStore) getSetting(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("sqlite: empty setting key")
	}

	const query = `SELECT value FROM settings WHERE key = ? LIMIT 1;`
	row := s.db.QueryRowContext(ctx, query, key)

	var value sql.NullString
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("sqlite: get setting: %w", err)
	}

	return value.String, nil
}
