package http

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"

	genericErrorMessage = "Something went wrong"
)

// Response is the envelope wrapping every API response
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// CodedError is implemented by operational errors that carry their own HTTP
// status and a message that is safe to return to clients.
type CodedError interface {
	error
	StatusCode() int
	PublicMessage() string
}

// statusLabel returns "success" for 2xx/3xx, "fail" for 4xx and "error" otherwise
func statusLabel(statusCode int) string {
	switch {
	case statusCode < 400:
		return StatusSuccess
	case statusCode < 500:
		return StatusFail
	default:
		return StatusError
	}
}

// WriteJSON writes a response envelope with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := Response{
		Status:  statusLabel(statusCode),
		Message: message,
		Data:    data,
	}

	// Encoding errors are not recoverable once the header is written
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteSuccess writes a 2xx envelope
func WriteSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, message, data)
}

// WriteError renders err. Errors implementing CodedError keep their status
// and public message; anything else becomes a generic 500. It reports
// whether err was operational.
func WriteError(w http.ResponseWriter, err error) bool {
	var coded CodedError
	if errors.As(err, &coded) {
		WriteJSON(w, coded.StatusCode(), coded.PublicMessage(), nil)
		return coded.StatusCode() < http.StatusInternalServerError
	}
	WriteInternalError(w)
	return false
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, message, nil)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusUnauthorized, message, nil)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusForbidden, message, nil)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusNotFound, message, nil)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusTooManyRequests, message, nil)
}

func WriteInternalError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, genericErrorMessage, nil)
}
