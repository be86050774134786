package keys

import (
	"errors"
	"reflect"
	"testing"
)

func TestLevel_Ordering(t *testing.T) {
	t.Parallel()
	if !(LevelLow < LevelStandard && LevelStandard < LevelPrivileged) {
		t.Fatalf("levels must be ordered Low < Standard < Privileged")
	}
}

func TestLevel_AndAbove(t *testing.T) {
	t.Parallel()
	cases := map[Level][]Level{
		LevelLow:        {LevelLow, LevelStandard, LevelPrivileged},
		LevelStandard:   {LevelStandard, LevelPrivileged},
		LevelPrivileged: {LevelPrivileged},
	}
	for in, want := range cases {
		if got := in.AndAbove(); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s.AndAbove() = %v, want %v", in, got, want)
		}
	}
	if got := Level(-1).AndAbove(); got != nil {
		t.Fatalf("invalid level must have no escalation path, got %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"low", " LOW ", "Low"} {
		if l, err := ParseLevel(s); err != nil || l != LevelLow {
			t.Fatalf("ParseLevel(%q) = %v, %v", s, l, err)
		}
	}
	if _, err := ParseLevel("root"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLevel_TextRoundTrip(t *testing.T) {
	t.Parallel()
	var l Level
	if err := l.UnmarshalText([]byte("PRIVILEGED")); err != nil || l != LevelPrivileged {
		t.Fatalf("UnmarshalText = %v, %v", l, err)
	}
	if _, err := Level(9).MarshalText(); err == nil {
		t.Fatalf("expected error marshaling invalid level")
	}
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()
	cases := map[string]Algorithm{
		"ed25519":           AlgorithmEd25519,
		"EdDSA":             AlgorithmEd25519,
		"rs256":             AlgorithmRS256,
		"INVALID_ALGORITHM": AlgorithmInvalid,
	}
	for in, want := range cases {
		got, err := ParseAlgorithm(in)
		if err != nil || got != want {
			t.Fatalf("ParseAlgorithm(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseAlgorithm("ES256"); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}
