package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/revittco/costgate/internal/consent"
	"github.com/revittco/costgate/internal/oauth"
)

type consentHandler struct {
	workflow *consent.Workflow
	provider *oauth.Provider
	pending  *oauth.StateStore
}

// show renders the credential form for a fresh authorization request.
func (h *consentHandler) show(w http.ResponseWriter, r *http.Request) {
	req, err := oauth.ParseAuthRequest(r.URL.Query())
	if err == nil {
		err = h.provider.ValidateRequest(r.Context(), req)
	}
	if err != nil {
		h.invalid(w, err)
		return
	}
	renderPage(w, http.StatusOK, "credential", pageData{
		Title:   "Authorize",
		Request: req.Encode(),
	})
}

// submitCredential handles the credential form.
func (h *consentHandler) submitCredential(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.invalid(w, err)
		return
	}
	req, err := oauth.DecodeAuthRequest(r.PostForm.Get("request"))
	if err == nil {
		err = h.provider.ValidateRequest(r.Context(), req)
	}
	if err != nil {
		h.invalid(w, err)
		return
	}
	credential := r.PostForm.Get("api_key")

	out, err := h.workflow.SubmitCredential(r.Context(), req, credential)
	if errors.Is(err, oauth.ErrInvalidRequest) {
		h.invalid(w, err)
		return
	}
	if err != nil {
		slog.Error("consent approval failed", "client_id", req.ClientID, "error", err)
		renderPage(w, http.StatusInternalServerError, "rejected", pageData{
			Title: "Authorization failed",
			Error: "Authorization could not be completed. Try again.",
		})
		return
	}

	switch out.State {
	case consent.AwaitingCustomerSelection:
		state, err := h.pending.Create(req, credential)
		if err != nil {
			slog.Error("create pending selection", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		renderPage(w, http.StatusOK, "customer", pageData{
			Title: "Select customer",
			State: state,
			Email: out.Email,
		})
	case consent.Approved:
		h.approved(w, out)
	default:
		renderPage(w, http.StatusUnauthorized, "rejected", pageData{Title: "Authorization failed"})
	}
}

// selectCustomer handles the operator's customer selection form.
func (h *consentHandler) selectCustomer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.invalid(w, err)
		return
	}
	state := r.PostForm.Get("state")
	pending, ok := h.pending.Peek(state)
	if !ok {
		h.invalid(w, errors.New("unknown or expired selection"))
		return
	}
	customerContext := r.PostForm.Get("customer_context")

	out, err := h.workflow.SelectCustomer(r.Context(), pending.Request, pending.Credential, customerContext)
	if errors.Is(err, consent.ErrCustomerRequired) {
		renderPage(w, http.StatusBadRequest, "customer", pageData{
			Title: "Select customer",
			State: state,
			Error: "Enter a customer context.",
		})
		return
	}
	// Any other outcome ends the selection.
	h.pending.Take(state)
	if err != nil {
		slog.Error("consent approval failed", "client_id", pending.Request.ClientID, "error", err)
		renderPage(w, http.StatusInternalServerError, "rejected", pageData{
			Title: "Authorization failed",
			Error: "Authorization could not be completed. Try again.",
		})
		return
	}
	if out.State != consent.Approved {
		renderPage(w, http.StatusUnauthorized, "rejected", pageData{Title: "Authorization failed"})
		return
	}
	h.approved(w, out)
}

func (h *consentHandler) approved(w http.ResponseWriter, out consent.Outcome) {
	renderPage(w, http.StatusOK, "approved", pageData{
		Title:           "Authorized",
		CustomerContext: out.CustomerContext,
		RedirectTo:      out.RedirectTo,
	})
}

// invalid answers a missing or malformed authorization request.
func (h *consentHandler) invalid(w http.ResponseWriter, err error) {
	slog.Warn("invalid authorization request", "error", err)
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, "invalid authorization request", http.StatusUnauthorized)
}
