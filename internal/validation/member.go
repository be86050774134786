package validation

import "regexp"

// Reglas de member id:
// - Empieza y termina con [A-Za-z0-9].
// - En el medio admite además [:_.@-].
// - Largo 1..128.
// - Sin espacios, barras ni caracteres de control.
//
// Válidos: m:2f1c..., alice, user@example.com, org.team_1
// Inválidos: "", ":lead", "trail:", "a b", "a/b", 129+ chars.
var memberIDRe = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9:_.@-]{0,126}[A-Za-z0-9])?$`)

// ValidMemberID reporta si id cumple el formato de member id.
func ValidMemberID(id string) bool {
	return memberIDRe.MatchString(id)
}
