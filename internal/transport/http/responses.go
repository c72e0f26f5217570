package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	domainerrors "certledger/pkg/domain-errors"
)

type errorEnvelope struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError centralizes domain error translation to HTTP responses so every
// handler emits the same JSON envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	envelope := errorEnvelope{Error: string(code)}

	var de *domainerrors.Error
	if errors.As(err, &de) {
		envelope.Description = de.Message
	}

	WriteJSON(w, domainerrors.ToHTTPStatus(code), envelope)
}
