package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConnectionConfigURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  ConnectionConfig
		want string
	}{
		{"defaults", ConnectionConfig{}, "ws://localhost:21213/"},
		{"custom", ConnectionConfig{Address: "ws://10.0.0.5", Port: "9000", Path: "/feed"}, "ws://10.0.0.5:9000/feed"},
		{"path without slash", ConnectionConfig{Address: "ws://host", Port: "1", Path: "x"}, "ws://host:1/x"},
		{"blank fields", ConnectionConfig{Address: "  ", Port: " ", Path: ""}, "ws://localhost:21213/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.URL(); got != tc.want {
				t.Fatalf("URL() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRelayCredentialsMissingField(t *testing.T) {
	full := RelayCredentials{Token: "t", AccountName: "a", Channel: "c"}
	if !full.Complete() {
		t.Fatalf("expected complete credentials")
	}
	if got := (RelayCredentials{AccountName: "a", Channel: "c"}).MissingField(); got != "token" {
		t.Fatalf("missing = %q", got)
	}
	if got := (RelayCredentials{Token: "t", Channel: "c"}).MissingField(); got != "account_name" {
		t.Fatalf("missing = %q", got)
	}
	if got := (RelayCredentials{Token: "t", AccountName: "a", Channel: " "}).MissingField(); got != "channel" {
		t.Fatalf("missing = %q", got)
	}
}

func TestTokenHelpers(t *testing.T) {
	if got := NormalizeToken("oauth:abc"); got != "abc" {
		t.Fatalf("NormalizeToken = %q", got)
	}
	if got := NormalizeToken("abc"); got != "abc" {
		t.Fatalf("NormalizeToken = %q", got)
	}
	if got := IRCPassword("abc"); got != "oauth:abc" {
		t.Fatalf("IRCPassword = %q", got)
	}
	if got := IRCPassword("oauth:abc"); got != "oauth:abc" {
		t.Fatalf("IRCPassword = %q", got)
	}
	if got := NormalizeChannel("#SomeChannel"); got != "somechannel" {
		t.Fatalf("NormalizeChannel = %q", got)
	}
}

func TestReasons(t *testing.T) {
	cases := []struct {
		err  ReasonError
		want string
	}{
		{&ValidationError{Kind: ValidationInvalidToken}, "OAuth token invalid or expired"},
		{&ValidationError{Kind: ValidationInsufficientScope}, "OAuth token missing required scopes"},
		{&ValidationError{Kind: ValidationAPIError, Status: 500}, "API error: 500"},
		{&ValidationError{Kind: ValidationNetworkError}, "Network error during validation"},
		{&ValidationError{Kind: ValidationIdentityMismatch, Login: "other"}, "Username mismatch: token belongs to 'other'"},
		{&ValidationError{Kind: ValidationChannelLookupFailed}, "Failed to validate channel"},
		{&ValidationError{Kind: ValidationChannelNotFound, Channel: "ghost"}, "Channel 'ghost' does not exist"},
		{&AuthError{Kind: AuthInvalidToken}, "OAuth token invalid or expired"},
		{&AuthError{Kind: AuthInvalidIdentity}, "Username not found or invalid"},
		{&AuthError{Kind: AuthTimeout}, "Authentication timeout"},
		{&AuthError{Kind: AuthConnectionError}, "Connection failed - check internet"},
		{&ConfigError{Field: "token"}, "Missing credentials"},
		{&ConnectivityError{Conn: ConnRelay}, "Connection error occurred"},
	}
	for _, tc := range cases {
		if got := tc.err.Reason(); got != tc.want {
			t.Errorf("%v: Reason() = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestReasonOfWrapped(t *testing.T) {
	base := &ValidationError{Kind: ValidationChannelNotFound, Channel: "x"}
	wrapped := fmt.Errorf("open: %w", base)
	if got := ReasonOf(wrapped, "fallback"); got != "Channel 'x' does not exist" {
		t.Fatalf("ReasonOf = %q", got)
	}
	if got := ReasonOf(errors.New("boom"), "fallback"); got != "fallback" {
		t.Fatalf("ReasonOf = %q", got)
	}
}
