package alias

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash_RealmIndependentAndCaseInsensitive(t *testing.T) {
	t.Parallel()
	a, err := Hash(Alias{Type: TypeEmail, Value: "Bob@X.com", Realm: "a"})
	require.NoError(t, err)
	b, err := Hash(Alias{Type: TypeEmail, Value: "bob@x.com", Realm: "b", RealmID: "r-2"})
	require.NoError(t, err)
	require.Equal(t, a, b)

	d1, err := Hash(Alias{Type: TypeDomain, Value: "Example.ORG"})
	require.NoError(t, err)
	d2, err := Hash(Alias{Type: TypeDomain, Value: "example.org"})
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestHash_CaseSensitiveForOtherTypes(t *testing.T) {
	t.Parallel()
	a, err := Hash(Alias{Type: TypeUsername, Value: "Bob"})
	require.NoError(t, err)
	b, err := Hash(Alias{Type: TypeUsername, Value: "bob"})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHash_TypeIsPartOfInput(t *testing.T) {
	t.Parallel()
	a, err := Hash(Alias{Type: TypeUsername, Value: "bob"})
	require.NoError(t, err)
	b, err := Hash(Alias{Type: TypeCustom, Value: "bob"})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHash_KnownVector(t *testing.T) {
	t.Parallel()
	got, err := Hash(Alias{Type: TypeEmail, Value: "Alice@Example.com", Realm: "bank"})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(`{"type":"EMAIL","value":"alice@example.com"}`))
	require.Equal(t, Base58(sum[:]), got)
	require.NotContains(t, got, "0")
	require.NotContains(t, got, "O")
	require.NotContains(t, got, "I")
	require.NotContains(t, got, "l")
}

func TestHash_RequiresType(t *testing.T) {
	t.Parallel()
	_, err := Hash(Alias{Value: "x"})
	require.Error(t, err)
}

func TestBase58(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   []byte
		want string
	}{
		{in: []byte{0}, want: "1"},
		{in: []byte{0, 0, 1}, want: "112"},
		{in: []byte{57}, want: "z"},
		{in: []byte{58}, want: "21"},
		{in: []byte("hello world"), want: "StV1DL6CwTryKyV"},
	}
	for _, tc := range cases {
		if got := Base58(tc.in); got != tc.want {
			t.Fatalf("Base58(%x) = %q, want %q", tc.in, got, tc.want)
		}
	}

	zeros := make([]byte, 32)
	if got := Base58(zeros); got != strings.Repeat("1", 32) {
		t.Fatalf("Base58(32 zero bytes) = %q", got)
	}
}

func TestParseType(t *testing.T) {
	t.Parallel()
	got, err := ParseType(" email ")
	require.NoError(t, err)
	require.Equal(t, TypeEmail, got)

	_, err = ParseType("passport")
	require.Error(t, err)
}
