package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/revittco/costgate/internal/oauth"
)

type oauthHandler struct {
	provider *oauth.Provider
}

func (h *oauthHandler) metadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Metadata())
}

func (h *oauthHandler) resourceMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.ResourceMetadata())
}

// register implements RFC 7591 dynamic client registration.
func (h *oauthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req oauth.DCRRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "malformed JSON body")
		return
	}
	resp, err := h.provider.RegisterClient(r.Context(), req)
	if errors.Is(err, oauth.ErrInvalidClient) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_redirect_uri", err.Error())
		return
	}
	if err != nil {
		slog.Error("register client", "error", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	slog.Info("oauth client registered", "client_id", resp.ClientID, "client_name", resp.ClientName)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, resp)
}

// token redeems an authorization code.
func (h *oauthHandler) token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	if gt := r.PostForm.Get("grant_type"); gt != "authorization_code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		return
	}

	resp, err := h.provider.Exchange(r.Context(), oauth.ExchangeRequest{
		Code:         r.PostForm.Get("code"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
		ClientID:     r.PostForm.Get("client_id"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
	})
	if errors.Is(err, oauth.ErrInvalidGrant) {
		slog.Info("token exchange refused", "error", err)
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", err.Error())
		return
	}
	if err != nil {
		slog.Error("token exchange", "error", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
