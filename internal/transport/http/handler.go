// Package httptransport is the thin HTTP layer over the credential services.
// Handlers delegate to the issuer and verify services; the disclosure and
// authorization rules live there and in the middleware, not here.
package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"certledger/internal/domain"
	"certledger/internal/issuer"
	"certledger/internal/jwtauth"
	"certledger/internal/platform/middleware"
	"certledger/internal/record"
	"certledger/internal/verify"
	domainerrors "certledger/pkg/domain-errors"
)

// Handler wires the credential endpoints.
type Handler struct {
	logger    *slog.Logger
	issuer    *issuer.Service
	verify    *verify.Service
	validator middleware.TokenValidator
}

func New(issuerSvc *issuer.Service, verifySvc *verify.Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		issuer:    issuerSvc,
		verify:    verifySvc,
		validator: validator,
	}
}

// Register mounts all credential routes. Verification and claiming are
// public; everything that mutates or discloses requires a bearer token.
func (h *Handler) Register(r chi.Router) {
	base := chi.NewRouter()
	base.Use(middleware.Recovery(h.logger))
	base.Use(middleware.RequestID)
	base.Use(middleware.Logger(h.logger))
	base.Use(middleware.Timeout(30 * time.Second))
	base.Use(middleware.ContentTypeJSON)

	base.Get("/healthz", h.handleHealth)
	base.Get("/credentials/{tokenID}/verify", h.handleVerify)
	base.Post("/claims/{token}", h.handleClaim)

	base.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(h.validator, h.logger))

		authed.Group(func(issuers chi.Router) {
			issuers.Use(middleware.RequireCapability(domain.CapabilityIssuer, domain.CapabilityAdmin))
			issuers.Post("/credentials", h.handleIssue)
			issuers.Post("/credentials/batch", h.handleBatchIssue)
			issuers.Post("/credentials/{tokenID}/revoke", h.handleRevoke)
			issuers.Post("/credentials/{tokenID}/resend-claim", h.handleResendClaim)
		})

		authed.Group(func(holders chi.Router) {
			holders.Use(middleware.RequireCapability(domain.CapabilityRecipient, domain.CapabilityAdmin))
			holders.Post("/credentials/{tokenID}/transfer", h.handleTransfer)
			holders.Post("/credentials/{tokenID}/burn", h.handleBurn)
		})

		authed.Group(func(verifiers chi.Router) {
			verifiers.Use(middleware.RequireCapability(domain.CapabilityVerifier, domain.CapabilityAdmin))
			verifiers.Post("/credentials/{tokenID}/verified", h.handleSetVerified)
		})

		authed.Group(func(admins chi.Router) {
			admins.Use(middleware.RequireCapability(domain.CapabilityAdmin))
			admins.Post("/credentials/{tokenID}/burn-expired", h.handleBurnExpired)
			admins.Post("/credentials/{tokenID}/anonymize", h.handleAnonymize)
		})

		authed.Get("/credentials", h.handleList)
	})

	r.Mount("/", base)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callerFromRequest lifts an optional bearer token into a verify.Caller.
// Verification is public; a token only widens what the response may disclose.
func (h *Handler) callerFromRequest(r *http.Request) verify.Caller {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			if id, err := h.validator.IdentityFromToken(header[len(prefix):]); err == nil {
				identity = id
				ok = true
			}
		}
	}
	if !ok {
		return verify.Caller{}
	}
	return verify.Caller{
		SubjectID:  identity.SubjectID,
		Address:    identity.Address,
		Capability: identity.Capability,
	}
}

func identityFrom(r *http.Request) jwtauth.Identity {
	identity, _ := middleware.GetIdentity(r.Context())
	return identity
}

func tokenIDParam(r *http.Request) (domain.TokenID, error) {
	raw := chi.URLParam(r, "tokenID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domainerrors.New(domainerrors.CodeValidation, "token id must be a positive integer")
	}
	return domain.TokenID(id), nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	recipientID := r.URL.Query().Get("recipient")
	if recipientID == "" {
		recipientID = identity.SubjectID
	}
	// Recipients may only list themselves; admins may list anyone.
	if identity.Capability != domain.CapabilityAdmin && recipientID != identity.SubjectID {
		WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "cannot list another recipient's credentials"))
		return
	}

	filters := record.Filters{}
	if r.URL.Query().Get("include_revoked") == "true" {
		filters.IncludeRevoked = true
	}
	if t := r.URL.Query().Get("type"); t != "" {
		if n, err := strconv.Atoi(t); err == nil {
			filters.CredentialType = domain.CredentialType(n)
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			filters.Limit = n
		}
	}

	items, err := h.issuer.List(r.Context(), recipientID, filters)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list credentials failed",
			"request_id", middleware.GetRequestID(r.Context()), "error", err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"credentials": toListResponse(items)})
}
