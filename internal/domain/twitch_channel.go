package domain

import "strings"

// NormalizeChannel deja el nombre del canal en minúsculas y sin '#'.
func NormalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}

// NormalizeToken quita el prefijo "oauth:" que usa el login IRC; la API lo rechaza.
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) >= len("oauth:") && strings.EqualFold(token[:len("oauth:")], "oauth:") {
		return token[len("oauth:"):]
	}
	return token
}

// IRCPassword agrega "oauth:" si el token no lo trae.
func IRCPassword(token string) string {
	return "oauth:" + NormalizeToken(token)
}
