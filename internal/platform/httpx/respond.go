// Package httpx provides the JSON response envelope shared by every
// API handler.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the wire shape of every API response.
type Envelope struct {
	Result  any      `json:"result"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// OK sends a successful envelope with the given result payload.
func OK(w http.ResponseWriter, result any) {
	write(w, http.StatusOK, Envelope{Result: result, Success: true, Errors: []string{}})
}

// Created sends a successful envelope with status 201.
func Created(w http.ResponseWriter, result any) {
	write(w, http.StatusCreated, Envelope{Result: result, Success: true, Errors: []string{}})
}

// Fail sends a failed envelope with the given status and error messages.
func Fail(w http.ResponseWriter, status int, errs ...string) {
	if len(errs) == 0 {
		errs = []string{http.StatusText(status)}
	}
	write(w, status, Envelope{Success: false, Errors: errs})
}

// DecodeJSON decodes the request body into target, rejecting unknown fields.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
