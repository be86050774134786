// Package errors define el formato JSON de error de la API admin y el mapeo
// desde los errores del dominio.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/memberkeys/internal/canonical"
	"github.com/dropDatabas3/memberkeys/internal/keys"
)

// AppError es el error que ve el cliente. Err es la causa y nunca se serializa.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail devuelve una COPIA con detalle; las variables base no se mutan.
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene parámetros inválidos o faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrKeyNotFound = &AppError{
		Code:       "KEY_NOT_FOUND",
		Message:    "No existe una clave utilizable para ese criterio.",
		HTTPStatus: http.StatusNotFound,
	}
	ErrKeyExpired = &AppError{
		Code:       "KEY_EXPIRED",
		Message:    "La clave ya expiró.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
	ErrSignatureInvalid = &AppError{
		Code:       "SIGNATURE_VERIFICATION_FAILED",
		Message:    "La firma no corresponde al payload y la clave.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
	ErrUnsupportedAlgorithm = &AppError{
		Code:       "UNSUPPORTED_ALGORITHM",
		Message:    "El algoritmo de la clave no permite esta operación.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Demasiadas solicitudes. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Error interno del servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// FromError traduce errores de otras capas. Lo que no se reconoce es 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	switch {
	case stderrors.Is(err, keys.ErrKeyNotFound):
		return ErrKeyNotFound.WithCause(err)
	case stderrors.Is(err, keys.ErrKeyExpired):
		return ErrKeyExpired.WithCause(err)
	case stderrors.Is(err, keys.ErrSignatureVerificationFailed):
		return ErrSignatureInvalid.WithCause(err)
	case stderrors.Is(err, keys.ErrUnsupportedAlgorithm):
		return ErrUnsupportedAlgorithm.WithCause(err)
	case stderrors.Is(err, canonical.ErrInvalidUTF8):
		return ErrBadRequest.WithDetail("message must be valid UTF-8").WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe el error como JSON con el status que corresponde.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}
