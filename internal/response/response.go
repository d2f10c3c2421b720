// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"encoding/json"
	"net/http"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// Meta describes one page of a paginated listing.
type Meta struct {
	Page      int `json:"page"`
	Limit     int `json:"limit"`
	Total     int `json:"total"`
	TotalPage int `json:"totalPage"`
}

// Paginated is the data of a paginated listing.
type Paginated struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// Success writes a success envelope. data is omitted when nil.
func Success(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{
		Status:  statusSuccess,
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error writes an error envelope. errs is omitted when nil.
func Error(w http.ResponseWriter, status int, message string, errs any) {
	write(w, status, Envelope{
		Status:  statusError,
		Success: false,
		Message: message,
		Errors:  errs,
	})
}

// InternalError writes the generic 500 envelope.
func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "Internal server error", nil)
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
