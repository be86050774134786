// Package util reúne helpers chicos sin dependencias del dominio.
package util

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskEmail deja la primera letra del usuario y del dominio: bob@example.com -> b…@e….com
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexByte(s, '@')
	if i <= 0 {
		return MaskValue(s)
	}
	user, dom := s[:i], s[i+1:]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	dparts := strings.Split(dom, ".")
	if len(dparts) > 0 && len(dparts[0]) > 1 {
		dparts[0] = dparts[0][:1] + "…"
	}
	return user + "@" + strings.Join(dparts, ".")
}

// MaskValue deja solo el primer y el último carácter.
func MaskValue(s string) string {
	r := []rune(strings.TrimSpace(s))
	switch {
	case len(r) == 0:
		return ""
	case len(r) <= 3:
		return "***"
	}
	return string(r[0]) + "…" + string(r[len(r)-1])
}

var kvPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// MaskDSN oculta la contraseña de un DSN en forma URL (postgres://u:p@h/db) o key=value.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return kvPassword.ReplaceAllString(dsn, "${1}xxxxx")
}
