// Package httputil writes JSON responses and classified errors for the
// HTTP surface.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/phonelink/internal/apperr"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// ErrorBody is the envelope for every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the kind name and a user-facing message.
type ErrorDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

// WriteError maps err to its kind's status. Internal errors are logged and
// their message is replaced so store details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.Message(err)
	if kind == apperr.Internal {
		zap.L().Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	WriteJSON(w, kind.HTTPStatus(), ErrorBody{Error: ErrorDetail{Status: kind.String(), Message: msg}})
}

// Decode reads a JSON body into v. An empty body leaves v untouched.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return apperr.Wrap(apperr.InvalidArgument, err, "invalid request body")
	}
	return nil
}
