package domain

type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusValidating
	StatusAuthenticating
	StatusConnected
	StatusFailed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusValidating:
		return "validating"
	case StatusAuthenticating:
		return "authenticating"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Razones que acompañan a estados que no son errores.
const (
	ReasonValidating       = "Checking credentials..."
	ReasonValidated        = "Credentials valid, connecting..."
	ReasonAuthenticating   = "Sending credentials..."
	ReasonConnected        = "Successfully connected to chat"
	ReasonManualDisconnect = "Manually disconnected"
	ReasonConnectionClosed = "Connection closed"
	ReasonReadyToEdit      = "Ready to edit"
	ReasonSettingsSaved    = "Settings saved"
)

// JoinedReason es la razón que se reporta cuando el JOIN al canal se confirma.
func JoinedReason(channel string) string {
	return "Joined #" + NormalizeChannel(channel) + " successfully"
}

// StatusReport es el par estado/razón que se publica hacia la UI.
type StatusReport struct {
	Status ConnectionStatus `json:"status"`
	Reason string           `json:"reason"`
}
