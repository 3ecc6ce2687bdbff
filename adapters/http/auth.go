package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/artpar/trustmeter/adapters/ethereum"
	"github.com/artpar/trustmeter/domain/identity"
	"github.com/artpar/trustmeter/pkg/jsonapi"
)

// Wallet authentication headers.
const (
	HeaderWalletAddress   = "X-Wallet-Address"
	HeaderWalletSignature = "X-Wallet-Signature"

	// Header names used by earlier clients.
	legacyHeaderAddress   = "Wallet-Address"
	legacyHeaderSignature = "Signature"
)

type ctxKey string

const ctxUserKey ctxKey = "user"

// UserFromContext returns the authenticated user stored by the auth middleware.
func UserFromContext(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(ctxUserKey).(identity.User)
	return u, ok
}

// RequireWallet authenticates a request by wallet signature headers or a
// session bearer token and stores the user in the request context.
func (h *Handler) RequireWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var (
			u   identity.User
			err error
		)
		if token := bearerToken(r); token != "" {
			u, err = h.auth.ResumeSession(ctx, token)
		} else {
			address, sig := walletHeaders(r)
			if address == "" || sig == "" {
				jsonapi.WriteError(w, jsonapi.ErrUnauthorized("Wallet address and signature required"))
				return
			}
			signature, decodeErr := ethereum.DecodeSignature(sig)
			if decodeErr != nil {
				jsonapi.WriteError(w, jsonapi.ErrUnauthorized("Malformed wallet signature"))
				return
			}
			u, err = h.auth.Authenticate(ctx, address, signature)
		}
		if err != nil {
			writeAppError(w, r, h.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxUserKey, u)))
	})
}

func walletHeaders(r *http.Request) (address, signature string) {
	address = r.Header.Get(HeaderWalletAddress)
	if address == "" {
		address = r.Header.Get(legacyHeaderAddress)
	}
	signature = r.Header.Get(HeaderWalletSignature)
	if signature == "" {
		signature = r.Header.Get(legacyHeaderSignature)
	}
	return strings.TrimSpace(address), strings.TrimSpace(signature)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// mustUser returns the authenticated user. Routes using it sit behind RequireWallet.
func mustUser(r *http.Request) identity.User {
	u, _ := UserFromContext(r.Context())
	return u
}

// -----------------------------------------------------------------------------
// Sign-in
// -----------------------------------------------------------------------------

type nonceRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,eth_addr"`
}

// Nonce returns the sign-in challenge for a wallet, registering the wallet on first sight.
//
//	@Summary		Get sign-in challenge
//	@Description	Returns the nonce and sign-in message for a wallet, registering the wallet on first sight
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			wallet_address	query	string			false	"Wallet address"
//	@Param			body			body	http.nonceRequest	false	"Wallet address"
//	@Success		200	{object}	jsonapi.Document	"Challenge"
//	@Failure		400	{object}	jsonapi.Document	"Invalid request"
//	@Failure		422	{object}	jsonapi.Document	"Validation failed"
//	@Router			/api/nonce [get]
//	@Router			/api/nonce [post]
func (h *Handler) Nonce(w http.ResponseWriter, r *http.Request) {
	var req nonceRequest
	if err := decodeBody(r, &req); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("Invalid JSON body"))
		return
	}
	if q := r.URL.Query().Get("wallet_address"); q != "" {
		req.WalletAddress = q
	}
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if err := h.validate.Struct(req); err != nil {
		jsonapi.WriteError(w, validationErrors(err)...)
		return
	}

	ch, err := h.auth.Challenge(r.Context(), req.WalletAddress)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	jsonapi.WriteResource(w, http.StatusOK, jsonapi.NewResource("challenges", ch.Address).
		Attr("wallet_address", ch.Address).
		Attr("nonce", ch.Nonce).
		Attr("message", ch.Message).
		Attr("issued_at", ch.IssuedAt).
		AttrIf(!ch.ExpiresAt.IsZero(), "expires_at", ch.ExpiresAt).
		Build())
}

type sessionRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,eth_addr"`
	Signature     string `json:"signature" validate:"required"`
}

// CreateSession exchanges a signed challenge for a session token.
//
//	@Summary		Create session
//	@Description	Exchanges a signed challenge for a bearer session token
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		http.sessionRequest	true	"Signed challenge"
//	@Success		201	{object}	jsonapi.Document	"Session"
//	@Failure		401	{object}	jsonapi.Document	"Invalid signature"
//	@Failure		404	{object}	jsonapi.Document	"Sessions disabled"
//	@Failure		422	{object}	jsonapi.Document	"Validation failed"
//	@Router			/api/auth/session [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !h.auth.SessionsEnabled() {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("session endpoint"))
		return
	}

	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("Invalid JSON body"))
		return
	}
	if req.WalletAddress == "" && req.Signature == "" {
		req.WalletAddress, req.Signature = walletHeaders(r)
	}
	if err := h.validate.Struct(req); err != nil {
		jsonapi.WriteError(w, validationErrors(err)...)
		return
	}
	signature, err := ethereum.DecodeSignature(req.Signature)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrValidation("signature", "signature must be 65 hex-encoded bytes"))
		return
	}

	s, err := h.auth.StartSession(r.Context(), req.WalletAddress, signature)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	jsonapi.WriteResource(w, http.StatusCreated, jsonapi.NewResource("sessions", s.User.ID).
		Attr("token", s.Token).
		Attr("token_type", "Bearer").
		Attr("expires_at", s.ExpiresAt).
		BelongsTo("user", "users", s.User.ID).
		Build())
}

// Me returns the authenticated user.
//
//	@Summary		Current user
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"User"
//	@Failure		401	{object}	jsonapi.Document	"Not authenticated"
//	@Security		WalletAddress && WalletSignature
//	@Security		BearerAuth
//	@Router			/api/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteResource(w, http.StatusOK, userResource(mustUser(r)))
}
