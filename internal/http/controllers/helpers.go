// Package controllers implementa los handlers de la API admin.
package controllers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/memberkeys/internal/http/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodifica el body rechazando campos desconocidos y bodies grandes.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.ErrBadRequest.WithDetail("body too large")
		}
		return errors.ErrInvalidJSON.WithDetail(err.Error())
	}
	return nil
}
