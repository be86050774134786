package keys

import (
	"fmt"
	"strings"
)

// Level es el nivel de confianza de una clave. El orden importa:
// LevelLow < LevelStandard < LevelPrivileged.
type Level int

const (
	LevelLow Level = iota
	LevelStandard
	LevelPrivileged
)

var levelNames = [...]string{
	LevelLow:        "LOW",
	LevelStandard:   "STANDARD",
	LevelPrivileged: "PRIVILEGED",
}

// Levels devuelve todos los niveles en orden ascendente.
func Levels() []Level {
	return []Level{LevelLow, LevelStandard, LevelPrivileged}
}

// Valid reporta si l es uno de los niveles conocidos.
func (l Level) Valid() bool {
	return l >= LevelLow && l <= LevelPrivileged
}

// AndAbove devuelve l seguido de todos los niveles estrictamente mayores, en orden ascendente.
func (l Level) AndAbove() []Level {
	if !l.Valid() {
		return nil
	}
	out := make([]Level, 0, len(levelNames))
	for _, lv := range Levels() {
		if lv >= l {
			out = append(out, lv)
		}
	}
	return out
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel acepta el nombre del nivel sin importar mayúsculas ("low", "Standard", ...).
func ParseLevel(s string) (Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown key level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid key level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
