package httptransport

import (
	"encoding/json"
	"net/http"

	"certledger/internal/issuer"
	"certledger/internal/platform/middleware"
	domainerrors "certledger/pkg/domain-errors"
)

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "malformed request body"))
		return
	}

	identity := identityFrom(r)
	result, err := h.issuer.Issue(r.Context(), req.toDomain(identity.SubjectID))
	if err != nil {
		h.logger.WarnContext(r.Context(), "issue rejected",
			"request_id", middleware.GetRequestID(r.Context()),
			"enrollment_id", req.EnrollmentID,
			"error", err,
		)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toIssueResponse(result))
}

func (h *Handler) handleBatchIssue(w http.ResponseWriter, r *http.Request) {
	var req batchIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, domainerrors.New(domainerrors.CodeValidation, "malformed request body"))
		return
	}

	identity := identityFrom(r)
	items := make([]issuer.IssueRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = item.toDomain(identity.SubjectID)
	}

	result, err := h.issuer.BatchIssue(r.Context(), items)
	if err != nil {
		WriteError(w, err)
		return
	}

	// The batch as a whole succeeded even when individual items were
	// rejected; per-item outcomes are in the body.
	WriteJSON(w, http.StatusOK, toBatchResponse(result))
}
