package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/xavierca1/dj-funnel/internal/usecase"
)

type ErrorResponse struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Fields  []usecase.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// writeUseCaseError maps the error taxonomy to HTTP: domain errors are the
// caller's fault, everything else is a 500 without internals.
func writeUseCaseError(w http.ResponseWriter, err error) {
	var de *usecase.DomainError
	if errors.As(err, &de) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: de.Code, Message: de.Message, Fields: de.Fields})
		return
	}

	var te *usecase.TechnicalError
	if errors.As(err, &te) {
		log.Printf("❌ [HTTP] %s: %v", te.Code, te.Err)
		writeErrorResponse(w, http.StatusInternalServerError, te.Code, "internal error, please try again")
		return
	}

	log.Printf("❌ [HTTP] unexpected error: %v", err)
	writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error, please try again")
}
