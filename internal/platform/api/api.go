// Package api defines the JSON envelopes shared by every forum endpoint.
// Success payloads carry {success, message, data} plus pagination for list
// endpoints; failures always reduce to {success: false, error}.
package api

import (
	"encoding/json"
	"net/http"
)

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

type successResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type errorResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	IsFormError bool   `json:"isFormError,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Success writes a success envelope without pagination.
func Success(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, successResponse{Success: true, Message: message, Data: data})
}

// Paginated writes a success envelope for one page of a list.
func Paginated(w http.ResponseWriter, status int, message string, data any, page, totalPages int) {
	WriteJSON(w, status, successResponse{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: &Pagination{Page: page, TotalPages: totalPages},
	})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorResponse{Success: false, Error: message})
}

// FormError marks validation failures so clients can attach them to a field.
func FormError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, errorResponse{Success: false, Error: message, IsFormError: true})
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func Unauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, "Unauthorized")
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func Internal(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}
