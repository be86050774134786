package keys

import (
	"fmt"
	"strings"
)

// Algorithm identifica el esquema de firma de un par de claves.
type Algorithm string

const (
	AlgorithmEd25519 Algorithm = "ED25519"
	AlgorithmRS256   Algorithm = "RS256"
	// AlgorithmInvalid sólo existe para pruebas negativas: se pueden generar claves
	// con él pero nunca firmar ni verificar.
	AlgorithmInvalid Algorithm = "INVALID_ALGORITHM"
)

// ParseAlgorithm normaliza y valida un nombre de algoritmo.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToUpper(strings.TrimSpace(s))); a {
	case AlgorithmEd25519, AlgorithmRS256, AlgorithmInvalid:
		return a, nil
	case "EDDSA":
		return AlgorithmEd25519, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
}

func (a Algorithm) String() string { return string(a) }
