package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/memberkeys/internal/canonical"
	"github.com/dropDatabas3/memberkeys/internal/keys"
)

func TestFromError_MapsDomainErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{keys.NotFoundByID("m", "k"), http.StatusNotFound, "KEY_NOT_FOUND"},
		{fmt.Errorf("store: %w", keys.ErrKeyExpired), http.StatusUnprocessableEntity, "KEY_EXPIRED"},
		{keys.ErrSignatureVerificationFailed, http.StatusUnprocessableEntity, "SIGNATURE_VERIFICATION_FAILED"},
		{keys.ErrUnsupportedAlgorithm, http.StatusUnprocessableEntity, "UNSUPPORTED_ALGORITHM"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{ErrInvalidJSON.WithDetail("x"), http.StatusBadRequest, "INVALID_JSON"},
		{fmt.Errorf("sign: %w", canonical.ErrInvalidUTF8), http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		if got.HTTPStatus != tc.status || got.Code != tc.code {
			t.Fatalf("FromError(%v) = %d %s, want %d %s", tc.err, got.HTTPStatus, got.Code, tc.status, tc.code)
		}
	}
}

func TestWriteError_DoesNotLeakCause(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("secret path /var/keys: %w", keys.ErrKeyExpired))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "KEY_EXPIRED" {
		t.Fatalf("code = %q", body["code"])
	}
	if _, ok := body["err"]; ok {
		t.Fatalf("cause leaked: %v", body)
	}
	if ErrKeyExpired.Err != nil {
		t.Fatalf("base error mutated")
	}
}
