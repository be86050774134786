package controllers

import (
	"net/http"

	"github.com/dropDatabas3/memberkeys/internal/alias"
	"github.com/dropDatabas3/memberkeys/internal/http/errors"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	"github.com/dropDatabas3/memberkeys/internal/util"
)

type AliasController struct{}

func NewAliasController() *AliasController { return &AliasController{} }

type aliasHashResponse struct {
	Type alias.Type `json:"type"`
	Hash string     `json:"hash"`
}

// Hash maneja POST /v1/aliases/hash
func (c *AliasController) Hash(w http.ResponseWriter, r *http.Request) {
	var a alias.Alias
	if err := readJSON(w, r, &a); err != nil {
		errors.WriteError(w, err)
		return
	}
	t, err := alias.ParseType(string(a.Type))
	if err != nil {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	a.Type = t

	h, err := alias.Hash(a)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	logger.From(r.Context()).Debug("alias hashed",
		logger.String("alias_type", string(t)),
		logger.String("alias", maskAlias(a)))
	writeJSON(w, http.StatusOK, aliasHashResponse{Type: t, Hash: h})
}

// el valor crudo puede ser PII; a los logs va enmascarado
func maskAlias(a alias.Alias) string {
	if a.Type == alias.TypeEmail {
		return util.MaskEmail(a.Value)
	}
	return util.MaskValue(a.Value)
}
