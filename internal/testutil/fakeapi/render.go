package fakeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func renderJSON(w http.ResponseWriter, data any) {
	jsonWithStatus(w, data, http.StatusOK)
}

func serviceError(w http.ResponseWriter, message string, code int) {
	jsonWithStatus(w, errorResponse{Error: "service_error", Message: message}, code)
}

// bind decodes JSON body and renders 400 on failure
func bind[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var value T
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		jsonWithStatus(w, errorResponse{
			Error:   "decoding_failed",
			Message: fmt.Sprintf("Failed to parse JSON: %s", err.Error()),
		}, http.StatusBadRequest)
		return value, false
	}
	return value, true
}

func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
