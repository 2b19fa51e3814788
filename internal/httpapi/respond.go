package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/WooodHead/yeep/internal/iam"
)

// Domain failures ride a 200 response inside the envelope; only transport
// problems (bad JSON, rate limits, internal faults) surface as non-200.
const (
	codeInvalidInput     = "invalid_input"
	codeConflict         = "conflict"
	codeNotFound         = "not_found"
	codePermissionDenied = "permission_denied"
	codeInternal         = "internal"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK emits the success envelope: the given fields plus "ok": true.
func writeOK(w http.ResponseWriter, fields map[string]any) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["ok"] = true
	writeJSON(w, http.StatusOK, payload)
}

// writeFail emits the failure envelope at the given HTTP status.
func writeFail(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func failDomain(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, iam.ErrInvalidInput):
		writeFail(w, http.StatusOK, codeInvalidInput, err.Error())
	case errors.Is(err, iam.ErrConflict):
		writeFail(w, http.StatusOK, codeConflict, err.Error())
	case errors.Is(err, iam.ErrNotFound):
		writeFail(w, http.StatusOK, codeNotFound, err.Error())
	case errors.Is(err, iam.ErrPermissionDenied):
		writeFail(w, http.StatusOK, codePermissionDenied, err.Error())
	default:
		writeFail(w, http.StatusInternalServerError, codeInternal, "operation failed")
	}
}

// maskNotFound hides a resource from callers who may not know it exists.
func maskNotFound(w http.ResponseWriter) {
	writeFail(w, http.StatusNotFound, codeNotFound, "resource not found")
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeFail(w, http.StatusMethodNotAllowed, codeInvalidInput, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
