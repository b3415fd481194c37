package domain

import (
	"strings"
)

// EventChat es el tag de los frames de chat que emite la fuente local.
const EventChat = "chat"

// ChatEvent representa un mensaje de chat recibido desde la fuente de eventos.
// Se construye una sola vez al decodificar el frame y no se modifica después.
type ChatEvent struct {
	UniqueID      string `json:"uniqueId"`
	UserID        string `json:"userId,omitempty"`
	Nickname      string `json:"nickname"`
	FollowRole    string `json:"followRole"`
	Comment       string `json:"comment"`
	IsModerator   bool   `json:"isModerator"`
	IsSubscriber  bool   `json:"isSubscriber"`
	TopGifterRank string `json:"topGifterRank"`
}

const (
	DefaultSourceAddress = "ws://localhost"
	DefaultSourcePort    = "21213"
	DefaultSourcePath    = "/"
)

// ConnectionConfig es el destino de la fuente de eventos, resuelto al conectar.
type ConnectionConfig struct {
	Address string `json:"address"`
	Port    string `json:"port"`
	Path    string `json:"path"`
}

// WithDefaults rellena los campos vacíos con los valores por defecto.
func (c ConnectionConfig) WithDefaults() ConnectionConfig {
	out := ConnectionConfig{
		Address: strings.TrimSpace(c.Address),
		Port:    strings.TrimSpace(c.Port),
		Path:    strings.TrimSpace(c.Path),
	}
	if out.Address == "" {
		out.Address = DefaultSourceAddress
	}
	if out.Port == "" {
		out.Port = DefaultSourcePort
	}
	if out.Path == "" {
		out.Path = DefaultSourcePath
	}
	return out
}

// URL arma address + ":" + port + path.
func (c ConnectionConfig) URL() string {
	resolved := c.WithDefaults()
	path := resolved.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(resolved.Address, "/") + ":" + resolved.Port + path
}

// RelayCredentials es la foto de credenciales que se lee al abrir una sesión.
type RelayCredentials struct {
	Token       string `json:"token"`
	AccountName string `json:"account_name"`
	Channel     string `json:"channel"`
}

// MissingField devuelve el primer campo vacío, o "" si están completas.
func (c RelayCredentials) MissingField() string {
	switch {
	case strings.TrimSpace(c.Token) == "":
		return "token"
	case strings.TrimSpace(c.AccountName) == "":
		return "account_name"
	case strings.TrimSpace(c.Channel) == "":
		return "channel"
	default:
		return ""
	}
}

// Complete indica si los tres campos tienen valor.
func (c RelayCredentials) Complete() bool {
	return c.MissingField() == ""
}
