package signing

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dropDatabas3/memberkeys/internal/canonical"
	"github.com/dropDatabas3/memberkeys/internal/keys"
)

var (
	testRegistry = NewRegistry(nil)

	rsaOnce  sync.Once
	rsaPairs [2]keys.KeyPair
	rsaErr   error
)

// pairFor genera (o reutiliza, para RSA) un par del algoritmo pedido.
func pairFor(t *testing.T, alg keys.Algorithm, idx int) keys.KeyPair {
	t.Helper()
	if alg == keys.AlgorithmRS256 {
		rsaOnce.Do(func() {
			for i := range rsaPairs {
				rsaPairs[i], rsaErr = testRegistry.Generate(keys.AlgorithmRS256, keys.LevelStandard, 0)
				if rsaErr != nil {
					return
				}
			}
		})
		if rsaErr != nil {
			t.Fatalf("generate rsa: %v", rsaErr)
		}
		return rsaPairs[idx]
	}
	kp, err := testRegistry.Generate(alg, keys.LevelLow, 0)
	if err != nil {
		t.Fatalf("generate %s: %v", alg, err)
	}
	return kp
}

func signerAndVerifier(t *testing.T, kp keys.KeyPair) (Signer, Verifier) {
	t.Helper()
	s, err := testRegistry.NewSigner(kp)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	v, err := testRegistry.NewVerifier(kp)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return s, v
}

func TestSignVerify_RoundTrip(t *testing.T) {
	for _, alg := range []keys.Algorithm{keys.AlgorithmEd25519, keys.AlgorithmRS256} {
		alg := alg
		t.Run(string(alg), func(t *testing.T) {
			t.Parallel()
			kp := pairFor(t, alg, 0)
			s, v := signerAndVerifier(t, kp)
			if s.KeyID() != kp.ID || v.KeyID() != kp.ID {
				t.Fatalf("signer/verifier bound to wrong key")
			}
			msg := map[string]any{"to": "alice", "amount": "10.00", "memo": []string{"a", "b"}}
			sig, err := s.SignMessage(msg)
			if err != nil {
				t.Fatalf("SignMessage: %v", err)
			}
			if strings.ContainsAny(sig, "=+/") {
				t.Fatalf("signature must be unpadded base64url: %q", sig)
			}
			reordered := map[string]any{"memo": []string{"a", "b"}, "amount": "10.00", "to": "alice"}
			if err := v.VerifyMessage(reordered, sig); err != nil {
				t.Fatalf("VerifyMessage: %v", err)
			}
		})
	}
}

func TestSign_IsDeterministic(t *testing.T) {
	t.Parallel()
	for _, alg := range []keys.Algorithm{keys.AlgorithmEd25519, keys.AlgorithmRS256} {
		s, _ := signerAndVerifier(t, pairFor(t, alg, 0))
		a, err := s.Sign([]byte("payload"))
		if err != nil {
			t.Fatalf("%s Sign: %v", alg, err)
		}
		b, _ := s.Sign([]byte("payload"))
		if a != b {
			t.Fatalf("%s signatures differ for the same payload", alg)
		}
	}
}

func TestVerify_FailsOnWrongKeyOrTamper(t *testing.T) {
	for _, alg := range []keys.Algorithm{keys.AlgorithmEd25519, keys.AlgorithmRS256} {
		alg := alg
		t.Run(string(alg), func(t *testing.T) {
			t.Parallel()
			s, v := signerAndVerifier(t, pairFor(t, alg, 0))
			_, other := signerAndVerifier(t, pairFor(t, alg, 1))

			payload := []byte(`{"a":1}`)
			sig, err := s.Sign(payload)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}

			if err := other.Verify(payload, sig); !errors.Is(err, keys.ErrSignatureVerificationFailed) {
				t.Fatalf("wrong key: expected ErrSignatureVerificationFailed, got %v", err)
			}

			tamperedPayload := []byte(`{"a":2}`)
			if err := v.Verify(tamperedPayload, sig); !errors.Is(err, keys.ErrSignatureVerificationFailed) {
				t.Fatalf("tampered payload: expected failure, got %v", err)
			}

			raw, err := DecodeSignature(sig)
			if err != nil {
				t.Fatalf("DecodeSignature: %v", err)
			}
			raw[len(raw)/2] ^= 0x01
			if err := v.Verify(payload, EncodeSignature(raw)); !errors.Is(err, keys.ErrSignatureVerificationFailed) {
				t.Fatalf("tampered signature: expected failure, got %v", err)
			}

			if err := v.Verify(payload, "***not-base64***"); !errors.Is(err, keys.ErrSignatureVerificationFailed) {
				t.Fatalf("garbage signature: expected failure, got %v", err)
			}
		})
	}
}

func TestVerifyMessage_InvalidUTF8DoesNotMatch(t *testing.T) {
	t.Parallel()
	s, v := signerAndVerifier(t, pairFor(t, keys.AlgorithmEd25519, 0))

	signed := json.RawMessage("{\"to\":\"acct-1\"}")
	sig, err := s.SignMessage(signed)
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if err := v.VerifyMessage(json.RawMessage("{\"to\":\"acct-\xff\"}"), sig); err == nil {
		t.Fatal("payload with invalid UTF-8 verified")
	}
	if _, err := s.SignMessage(json.RawMessage("{\"to\":\"acct-\xfe\"}")); !errors.Is(err, canonical.ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestVerify_AcceptsPaddedSignature(t *testing.T) {
	t.Parallel()
	s, v := signerAndVerifier(t, pairFor(t, keys.AlgorithmEd25519, 0))
	sig, err := s.Sign([]byte("x"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	// 64 bytes -> 86 chars sin padding, 88 con "==".
	if err := v.Verify([]byte("x"), sig+"=="); err != nil {
		t.Fatalf("padded signature rejected: %v", err)
	}
}

func TestInvalidAlgorithm_GeneratesButRefuses(t *testing.T) {
	t.Parallel()
	kp, err := testRegistry.Generate(keys.AlgorithmInvalid, keys.LevelLow, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if kp.Algorithm != keys.AlgorithmInvalid || len(kp.PublicKey) == 0 {
		t.Fatalf("unexpected key pair %+v", kp.Key())
	}
	if _, err := testRegistry.NewSigner(kp); !errors.Is(err, keys.ErrUnsupportedAlgorithm) {
		t.Fatalf("NewSigner: expected ErrUnsupportedAlgorithm, got %v", err)
	}
	if _, err := testRegistry.NewVerifier(kp); !errors.Is(err, keys.ErrUnsupportedAlgorithm) {
		t.Fatalf("NewVerifier: expected ErrUnsupportedAlgorithm, got %v", err)
	}
	if _, err := testRegistry.Scheme("ES512"); !errors.Is(err, keys.ErrUnsupportedAlgorithm) {
		t.Fatalf("Scheme: expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestSigner_ConcurrentUse(t *testing.T) {
	t.Parallel()
	for _, alg := range []keys.Algorithm{keys.AlgorithmEd25519, keys.AlgorithmRS256} {
		s, v := signerAndVerifier(t, pairFor(t, alg, 0))
		var wg sync.WaitGroup
		errs := make(chan error, 32)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				msg := map[string]int{"n": i}
				sig, err := s.SignMessage(msg)
				if err != nil {
					errs <- err
					return
				}
				if err := v.VerifyMessage(msg, sig); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("%s concurrent sign/verify: %v", alg, err)
		}
	}
}
