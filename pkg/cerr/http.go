package cerr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taskbridge/taskbridge/pkg/clog"
)

type httpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSONError renders err as a JSON error response, attaching the
// underlying cause to the request's log context.
func WriteJSONError(ctx context.Context, w http.ResponseWriter, err error) {
	clog.AddError(ctx, err)

	code := Unknown
	msg := "unknown error"
	var cerr *Error
	if errors.As(err, &cerr) {
		code = cerr.Code
		msg = cerr.Msg
		if cerr.Stack != "" {
			clog.AddAttribute(ctx, "error.stack", cerr.Stack)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.HTTPCode())
	if encodeErr := json.NewEncoder(w).Encode(httpError{Code: code.String(), Message: msg}); encodeErr != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", encodeErr)
	}
}

// WriteJSON renders a success payload.
func WriteJSON(ctx context.Context, w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
