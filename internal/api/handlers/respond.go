package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes: validation 400,
// not-found 404, precondition 409, everything else 500 with the detail kept
// out of the response.
func writeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	switch {
	case apperrors.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case apperrors.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case apperrors.IsPrecondition(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.WithError(err).Error("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}
