package httptransport

import (
	"encoding/json"
	"net/http"

	"certledger/internal/domain"
	domainerrors "certledger/pkg/domain-errors"
)

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "malformed request body"))
		return
	}
	if req.Reason == "" {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "revocation reason is required"))
		return
	}

	identity := identityFrom(r)
	if err := h.issuer.Revoke(r.Context(), identity.SubjectID, tokenID, req.Reason); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type transferRequest struct {
	To             string `json:"to"`
	NewRecipientID string `json:"new_recipient_id,omitempty"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "malformed request body"))
		return
	}
	to := domain.Address(req.To)
	if to.IsZero() {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "destination address is required"))
		return
	}

	// Transfers move the caller's own credential; the source address comes
	// from the authenticated identity, never from the body.
	identity := identityFrom(r)
	if identity.Address.IsZero() {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "caller has no ledger address"))
		return
	}

	receipt, err := h.issuer.Transfer(r.Context(), identity.SubjectID, identity.Address, to, tokenID, req.NewRecipientID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "transferred",
		"tx_hash": receipt.TxHash,
	})
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	identity := identityFrom(r)
	if err := h.issuer.Burn(r.Context(), identity.SubjectID, tokenID); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "burned"})
}

func (h *Handler) handleBurnExpired(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	identity := identityFrom(r)
	if err := h.issuer.BurnExpired(r.Context(), identity.SubjectID, tokenID); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "burned"})
}

type setVerifiedRequest struct {
	Verified bool `json:"verified"`
}

func (h *Handler) handleSetVerified(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req setVerifiedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "malformed request body"))
		return
	}

	identity := identityFrom(r)
	if err := h.issuer.SetVerified(r.Context(), identity.SubjectID, tokenID, req.Verified); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"is_verified": req.Verified})
}

func (h *Handler) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	identity := identityFrom(r)
	if err := h.issuer.Anonymize(r.Context(), identity.SubjectID, tokenID); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "anonymized"})
}

func (h *Handler) handleResendClaim(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	identity := identityFrom(r)
	if err := h.issuer.ResendClaim(r.Context(), identity.SubjectID, tokenID); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "claim-resent"})
}
