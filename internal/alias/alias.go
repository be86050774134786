// Package alias calcula el hash determinístico de un identificador de usuario
// (email, teléfono, dominio...) para usarlo como clave de búsqueda sin guardar el texto.
//
// El hash no lleva sal: dos alias normalizados iguales dan el mismo hash, lo que
// permite lookups por igualdad. No es secreto frente a diccionarios de valores comunes.
package alias

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	sha256 "github.com/minio/sha256-simd"

	"github.com/dropDatabas3/memberkeys/internal/canonical"
)

type Type string

const (
	TypeEmail    Type = "EMAIL"
	TypePhone    Type = "PHONE"
	TypeDomain   Type = "DOMAIN"
	TypeUsername Type = "USERNAME"
	TypeBank     Type = "BANK"
	TypeCustom   Type = "CUSTOM"
	TypeEIDAS    Type = "EIDAS"
)

var knownTypes = map[Type]struct{}{
	TypeEmail: {}, TypePhone: {}, TypeDomain: {}, TypeUsername: {},
	TypeBank: {}, TypeCustom: {}, TypeEIDAS: {},
}

// ParseType acepta el nombre en cualquier capitalización.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("unknown alias type %q", s)
	}
	return t, nil
}

// Alias es el identificador tal como lo manda el cliente.
// Realm y RealmID son contexto del emisor y no participan del hash.
type Alias struct {
	Type    Type   `json:"type"`
	Value   string `json:"value"`
	Realm   string `json:"realm,omitempty"`
	RealmID string `json:"realmId,omitempty"`
}

// Normalize devuelve la forma que se hashea: sin realm ni realmId, y con el valor
// en minúsculas para EMAIL y DOMAIN.
func Normalize(a Alias) Alias {
	out := Alias{Type: a.Type, Value: a.Value}
	switch a.Type {
	case TypeEmail, TypeDomain:
		out.Value = strings.ToLower(a.Value)
	}
	return out
}

// Hash = Base58(SHA-256(Canonicalize(Normalize(a)))).
func Hash(a Alias) (string, error) {
	if a.Type == "" {
		return "", fmt.Errorf("alias type required")
	}
	payload, err := canonical.Canonicalize(Normalize(a))
	if err != nil {
		return "", fmt.Errorf("canonicalize alias: %w", err)
	}
	sum := sha256.Sum256(payload)
	return Base58(sum[:]), nil
}

// Base58 codifica con el alfabeto de Bitcoin; cada byte cero inicial produce un '1'.
func Base58(b []byte) string {
	return base58.Encode(b)
}
