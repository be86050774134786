package engine

import (
	"errors"

	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/metrics"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	"github.com/dropDatabas3/memberkeys/internal/signing"
)

// instrumentedSigner cuenta firmas exitosas. No agrega estado: sigue siendo concurrente.
type instrumentedSigner struct {
	signing.Signer
	metrics *metrics.Keys
}

func (s *instrumentedSigner) Sign(payload []byte) (string, error) {
	sig, err := s.Signer.Sign(payload)
	if err == nil {
		s.metrics.Signed(string(s.Algorithm()))
	}
	return sig, err
}

func (s *instrumentedSigner) SignMessage(msg any) (string, error) {
	sig, err := s.Signer.SignMessage(msg)
	if err == nil {
		s.metrics.Signed(string(s.Algorithm()))
	}
	return sig, err
}

type instrumentedVerifier struct {
	signing.Verifier
	metrics *metrics.Keys
	log     *zap.Logger
}

func (v *instrumentedVerifier) Verify(payload []byte, signature string) error {
	return v.observe(v.Verifier.Verify(payload, signature))
}

func (v *instrumentedVerifier) VerifyMessage(msg any, signature string) error {
	return v.observe(v.Verifier.VerifyMessage(msg, signature))
}

func (v *instrumentedVerifier) observe(err error) error {
	if errors.Is(err, keys.ErrSignatureVerificationFailed) {
		v.metrics.VerifyFailed(string(v.Algorithm()))
		v.log.Debug("signature rejected", logger.KeyID(v.KeyID()))
	}
	return err
}
