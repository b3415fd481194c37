package domain

import "time"

// Loop serializa todo el estado del bridge en una sola goroutine.
// El trabajo bloqueante corre fuera del loop y su continuación vuelve por Post.
type Loop interface {
	// Post encola fn para ejecutarse en el loop.
	Post(fn func())
	// Go ejecuta work fuera del loop y luego done(work()) dentro del loop.
	Go(work func() error, done func(error))
	// AfterFunc ejecuta fn en el loop cuando pasa d.
	AfterFunc(d time.Duration, fn func()) Timer
}

type Timer interface {
	Stop() bool
}

// SocketHandlers se registran una sola vez por socket. Todas las llamadas llegan
// ya serializadas en el loop.
type SocketHandlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
	OnClose   func(err error)
}

// Transport abre conexiones websocket de texto.
type Transport interface {
	Open(url string, h SocketHandlers) Socket
}

type Socket interface {
	Send(text string) error
	Close() error
}

// ConnectionConfigProvider entrega el destino actual de la fuente de eventos.
type ConnectionConfigProvider interface {
	ConnectionConfig() ConnectionConfig
}

// CredentialsProvider entrega la foto actual de credenciales del relay.
type CredentialsProvider interface {
	Credentials() RelayCredentials
}

// ChatDisplay recibe cada ChatEvent decodificado (y los frames que no son chat).
type ChatDisplay interface {
	DisplayChat(ev ChatEvent)
	DisplayFrame(event string, raw []byte)
}

// StatusReporter recibe los cambios de estado de ambas conexiones.
type StatusReporter interface {
	LocalStatus(connected bool)
	RelayStatus(status ConnectionStatus, reason string)
}

// MessageSender es la salida del pipeline hacia la sesión de relay actual.
type MessageSender interface {
	Send(text string) error
}
