package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/windi-messenger/chathub/internal/auth"
	"github.com/windi-messenger/chathub/internal/channel"
	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/token"
	"github.com/windi-messenger/chathub/internal/userauth"
)

// Authenticator verifies user credentials attached to request.
type Authenticator interface {
	Authenticate(r *http.Request) (userauth.Identity, error)
}

// TokenIssuer issues connection tokens and subscription proofs.
type TokenIssuer interface {
	IssueConnectionToken(user string, opts ...token.IssueOption) (token.Token, error)
	IssueSubscriptionProof(user string, channel string) (token.Token, error)
}

// SubscribeAuthorizer checks that user may subscribe to channel.
type SubscribeAuthorizer interface {
	AuthorizeSubscribe(ctx context.Context, s auth.Subject, ch string, proof string) error
}

// TokenHandler exchanges user access tokens for connection tokens and
// subscription proofs.
type TokenHandler struct {
	mux        *http.ServeMux
	users      Authenticator
	tokens     TokenIssuer
	authorizer SubscribeAuthorizer
}

// NewTokenHandler creates TokenHandler serving /connection and /subscription.
func NewTokenHandler(users Authenticator, tokens TokenIssuer, authorizer SubscribeAuthorizer) *TokenHandler {
	h := &TokenHandler{
		mux:        http.NewServeMux(),
		users:      users,
		tokens:     tokens,
		authorizer: authorizer,
	}
	h.mux.HandleFunc("/connection", h.handleConnection)
	h.mux.HandleFunc("/subscription", h.handleSubscription)
	return h
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func writeError(w http.ResponseWriter, status int, apiErr *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(map[string]*Error{"error": apiErr})
	_, _ = w.Write(data)
}

func (h *TokenHandler) authenticate(w http.ResponseWriter, r *http.Request) (userauth.Identity, bool) {
	identity, err := h.users.Authenticate(r)
	if err != nil {
		if errors.Is(err, userauth.ErrUnauthorized) {
			log.Debug().Err(err).Msg("access token rejected")
			writeError(w, http.StatusUnauthorized, ErrorUnauthorized)
		} else {
			log.Error().Err(err).Msg("error verifying access token")
			writeError(w, http.StatusServiceUnavailable, ErrorNotAvailable)
		}
		return userauth.Identity{}, false
	}
	return identity, true
}

func (h *TokenHandler) handleConnection(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var opts []token.IssueOption
	if identity.Name != "" {
		info, err := json.Marshal(map[string]string{"name": identity.Name})
		if err == nil {
			opts = append(opts, token.WithInfo(info))
		}
	}
	t, err := h.tokens.IssueConnectionToken(identity.User, opts...)
	if err != nil {
		log.Error().Err(err).Str("user", identity.User).Msg("error issuing connection token")
		writeError(w, http.StatusInternalServerError, ErrorInternal)
		return
	}
	writeJSON(w, map[string]TokenResult{"result": {Token: t.Value, ExpiresAt: t.ExpiresAt}})
}

func (h *TokenHandler) handleSubscription(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	var req SubscriptionTokenRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Channel == "" {
		writeError(w, http.StatusBadRequest, ErrorBadRequest)
		return
	}
	if _, err := channel.Parse(req.Channel); err != nil {
		writeError(w, http.StatusBadRequest, &Error{Code: hub.ErrorUnknownChannel.Code, Message: hub.ErrorUnknownChannel.Message})
		return
	}
	err := h.authorizer.AuthorizeSubscribe(r.Context(), auth.Subject{User: identity.User}, req.Channel, "")
	if err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			writeError(w, http.StatusForbidden, &Error{Code: hub.ErrorPermissionDenied.Code, Message: hub.ErrorPermissionDenied.Message})
			return
		}
		log.Error().Err(err).Str("user", identity.User).Str("channel", req.Channel).Msg("error authorizing subscription")
		writeError(w, http.StatusServiceUnavailable, ErrorInternal)
		return
	}
	t, err := h.tokens.IssueSubscriptionProof(identity.User, req.Channel)
	if err != nil {
		log.Error().Err(err).Str("user", identity.User).Msg("error issuing subscription proof")
		writeError(w, http.StatusInternalServerError, ErrorInternal)
		return
	}
	writeJSON(w, map[string]TokenResult{"result": {Token: t.Value, Channel: t.Channel, ExpiresAt: t.ExpiresAt}})
}
