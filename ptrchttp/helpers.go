package ptrchttp

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/peterbourgon/ptrc"
)

// RequestHasContentType returns true if the request Content-Type matches any
// of the acceptable media types.
func RequestHasContentType(r *http.Request, acceptable ...string) bool {
	return headerHasMediaType(r, "content-type", acceptable...)
}

// RequestExplicitlyAccepts returns true if the request Accept header lists any
// of the acceptable media types. Wildcards don't count.
func RequestExplicitlyAccepts(r *http.Request, acceptable ...string) bool {
	return headerHasMediaType(r, "accept", acceptable...)
}

func headerHasMediaType(r *http.Request, header string, acceptable ...string) bool {
	have := map[string]struct{}{}
	for _, val := range strings.Split(r.Header.Get(header), ",") {
		mediaType, _, err := mime.ParseMediaType(val)
		if err != nil {
			continue
		}
		have[mediaType] = struct{}{}
	}
	for _, want := range acceptable {
		if _, ok := have[want]; ok {
			return true
		}
	}
	return false
}

//
//
//

func respondJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error, code int) {
	respondJSON(w, code, errorResponse{
		Error:      err.Error(),
		Kind:       errorKind(err),
		StatusCode: code,
		StatusText: http.StatusText(code),
	})
}

type errorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	StatusCode int    `json:"status_code"`
	StatusText string `json:"status_text"`
}

// sessionErrors are the session errors that survive a round trip through an
// error response, keyed by kind.
var sessionErrors = map[string]error{
	"invalid_state":  ptrc.ErrInvalidState,
	"duplicate_key":  ptrc.ErrDuplicateKey,
	"pool_exhausted": ptrc.ErrPoolExhausted,
	"not_supported":  ptrc.ErrNotSupported,
	"not_writable":   ptrc.ErrNotWritable,
}

func errorKind(err error) string {
	for kind, target := range sessionErrors {
		if errors.Is(err, target) {
			return kind
		}
	}
	return ""
}

// statusCode maps session errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ptrc.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ptrc.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, ptrc.ErrPoolExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, ptrc.ErrNotSupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

const maxRequestBodySizeBytes = 1024 * 1024
