package controllers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/memberkeys/internal/engine"
	"github.com/dropDatabas3/memberkeys/internal/http/errors"
	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	"github.com/dropDatabas3/memberkeys/internal/validation"
)

// KeysController expone las claves públicas de un member y la verificación de firmas.
// No hay endpoints que firmen ni que devuelvan material privado.
type KeysController struct {
	factory *engine.Factory
}

func NewKeysController(f *engine.Factory) *KeysController {
	return &KeysController{factory: f}
}

// memberParam lee {memberID} y responde 400 si no es válido.
func memberParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "memberID")
	if !validation.ValidMemberID(id) {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("invalid member id"))
		return "", false
	}
	return id, true
}

type keysResponse struct {
	MemberID string     `json:"memberId"`
	Keys     []keys.Key `json:"keys"`
}

// ListKeys maneja GET /v1/members/{memberID}/keys
func (c *KeysController) ListKeys(w http.ResponseWriter, r *http.Request) {
	memberID, ok := memberParam(w, r)
	if !ok {
		return
	}
	list, err := c.factory.ForMember(memberID).PublicKeys(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("list keys failed", logger.MemberID(memberID), logger.Err(err))
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keysResponse{MemberID: memberID, Keys: list})
}

// VerifyRequest lleva el mensaje como JSON (se canonicaliza antes de verificar)
// o, alternativamente, bytes crudos en base64url.
type VerifyRequest struct {
	KeyID      string          `json:"keyId"`
	Message    json.RawMessage `json:"message,omitempty"`
	PayloadB64 string          `json:"payloadB64,omitempty"`
	Signature  string          `json:"signature"`
}

type verifyResponse struct {
	Valid     bool           `json:"valid"`
	KeyID     string         `json:"keyId"`
	Algorithm keys.Algorithm `json:"algorithm"`
}

// Verify maneja POST /v1/members/{memberID}/verify
func (c *KeysController) Verify(w http.ResponseWriter, r *http.Request) {
	memberID, ok := memberParam(w, r)
	if !ok {
		return
	}
	log := logger.From(r.Context()).With(logger.MemberID(memberID), logger.Op("verify"))

	var req VerifyRequest
	if err := readJSON(w, r, &req); err != nil {
		errors.WriteError(w, err)
		return
	}
	if req.KeyID == "" || req.Signature == "" || (len(req.Message) == 0) == (req.PayloadB64 == "") {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("keyId, signature and exactly one of message or payloadB64 are required"))
		return
	}

	v, err := c.factory.ForMember(memberID).CreateVerifier(r.Context(), req.KeyID)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	if len(req.Message) > 0 {
		err = v.VerifyMessage(req.Message, req.Signature)
	} else {
		payload, decErr := base64.RawURLEncoding.DecodeString(req.PayloadB64)
		if decErr != nil {
			errors.WriteError(w, errors.ErrBadRequest.WithDetail("payloadB64 must be base64url without padding"))
			return
		}
		err = v.Verify(payload, req.Signature)
	}
	if err != nil {
		log.Debug("verification failed", logger.KeyID(req.KeyID), logger.Err(err))
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, KeyID: v.KeyID(), Algorithm: v.Algorithm()})
}
