package middlewares

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	t.Parallel()
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.10 ", "", "::1"})
	require.NoError(t, err)
	require.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.10/32"),
		netip.MustParsePrefix("::1/128"),
	}, got)

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	require.Error(t, err)
}

func TestClientIP(t *testing.T) {
	t.Parallel()
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		remote  string
		xff     string
		trusted []netip.Prefix
		want    string
	}{
		{"no proxy config ignores header", "203.0.113.5:4000", "1.2.3.4", nil, "203.0.113.5"},
		{"untrusted peer ignores header", "203.0.113.5:4000", "1.2.3.4", trusted, "203.0.113.5"},
		{"trusted peer uses header", "10.1.2.3:4000", "198.51.100.7", trusted, "198.51.100.7"},
		{"rightmost untrusted hop wins", "10.1.2.3:4000", "1.2.3.4, 198.51.100.7, 10.9.9.9", trusted, "198.51.100.7"},
		{"all hops trusted falls back to peer", "10.1.2.3:4000", "10.5.5.5", trusted, "10.1.2.3"},
		{"garbage header falls back to peer", "10.1.2.3:4000", "nope", trusted, "10.1.2.3"},
		{"no header", "10.1.2.3:4000", "", trusted, "10.1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			require.Equal(t, tc.want, ClientIP(r, tc.trusted))
		})
	}
}
