package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"certledger/internal/verify"
	domainerrors "certledger/pkg/domain-errors"
)

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	view, err := h.verify.Verify(r.Context(), tokenID, h.callerFromRequest(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toVerifyResponse(view))
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "claim token is required"))
		return
	}

	summary, err := h.verify.Claim(r.Context(), token, verify.ClaimMeta{
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toClaimResponse(summary))
}
