package adapters

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"fleet-manifests/internal/ports"
	"fleet-manifests/internal/types"
)

// TokenAuthAdapter checks bearer tokens against static tables from
// configuration: one admin token and a token per client.
type TokenAuthAdapter struct {
	adminToken string
	clients    map[string]string
}

// NewTokenAuthAdapter takes the admin token and a client token -> client
// id table. An empty admin token disables the admin zone.
func NewTokenAuthAdapter(adminToken string, clientTokens map[string]string) TokenAuthAdapter {
	clients := make(map[string]string, len(clientTokens))
	for token, clientID := range clientTokens {
		token = strings.TrimSpace(token)
		clientID = strings.TrimSpace(clientID)
		if token == "" || clientID == "" {
			continue
		}
		clients[token] = clientID
	}
	return TokenAuthAdapter{adminToken: strings.TrimSpace(adminToken), clients: clients}
}

func (a TokenAuthAdapter) AuthenticateClient(ctx context.Context, token string) (types.Identity, error) {
	token = strings.TrimSpace(token)
	if token != "" {
		for known, clientID := range a.clients {
			if tokenEqual(known, token) {
				return types.Identity{ClientID: clientID}, nil
			}
		}
	}
	return types.Identity{}, unauthenticated("unknown client token")
}

func (a TokenAuthAdapter) AuthenticateAdmin(ctx context.Context, token string) error {
	if a.adminToken == "" {
		return unauthenticated("admin zone is disabled")
	}
	if !tokenEqual(a.adminToken, strings.TrimSpace(token)) {
		return unauthenticated("invalid admin token")
	}
	return nil
}

func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unauthenticated(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodePermissionDenied).
		WithMsg(msg)
}

var _ ports.AuthPort = TokenAuthAdapter{}
