package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/memberkeys/internal/alias"
	"github.com/dropDatabas3/memberkeys/internal/keys"
	"github.com/dropDatabas3/memberkeys/internal/security/secretbox"
	"github.com/dropDatabas3/memberkeys/internal/signing"
	"github.com/dropDatabas3/memberkeys/internal/validation"
)

// newMemberID genera ids de member con prefijo "m:".
func newMemberID() string { return "m:" + uuid.NewString() }

func checkMember(id string) error {
	if id == "" {
		return errors.New("--member es requerido")
	}
	if !validation.ValidMemberID(id) {
		return fmt.Errorf("member id inválido: %q", id)
	}
	return nil
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		member string
		level  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave para un member (crea el member si no se pasa --member)",
		RunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := keys.ParseLevel(level)
			if err != nil {
				return err
			}
			if member == "" {
				member = newMemberID()
			}
			if err := checkMember(member); err != nil {
				return err
			}
			f, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			e := f.ForMember(member)

			var key keys.Key
			if ttl > 0 {
				key, err = e.GenerateKeyTTL(cmd.Context(), lvl, ttl)
			} else {
				key, err = e.GenerateKey(cmd.Context(), lvl)
			}
			if err != nil {
				return err
			}
			a.print(struct {
				MemberID string   `json:"memberId"`
				Key      keys.Key `json:"key"`
			}{member, key}, func() string {
				return fmt.Sprintf("%s %s %s %s", member, key.ID, key.Level, key.Algorithm)
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "id del member (default: m:<uuid> nuevo)")
	cmd.Flags().StringVar(&level, "level", "STANDARD", "nivel: LOW|STANDARD|PRIVILEGED")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expiración relativa (0 = no expira)")
	return cmd
}

func newKeysCmd(a *app) *cobra.Command {
	var member string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Lista las claves públicas vigentes de un member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkMember(member); err != nil {
				return err
			}
			f, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			list, err := f.ForMember(member).PublicKeys(cmd.Context())
			if err != nil {
				return err
			}
			a.print(list, func() string {
				var b strings.Builder
				for _, k := range list {
					fmt.Fprintf(&b, "%s\t%s\t%s\t%d\n", k.ID, k.Level, k.Algorithm, k.ExpiresAtMs)
				}
				return strings.TrimRight(b.String(), "\n")
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "id del member")
	return cmd
}

// readMessage lee el mensaje JSON de --message, o de --file ("-" es stdin).
func readMessage(message, file string) (json.RawMessage, error) {
	var raw []byte
	switch {
	case message != "" && file != "":
		return nil, errors.New("usar --message o --file, no ambos")
	case message != "":
		raw = []byte(message)
	case file == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		raw = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		raw = b
	default:
		return nil, errors.New("falta --message o --file")
	}
	if !json.Valid(raw) {
		return nil, errors.New("el mensaje no es JSON válido")
	}
	return json.RawMessage(raw), nil
}

func newSignCmd(a *app) *cobra.Command {
	var (
		member, level, atLeast, keyID string
		message, file                 string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Firma un mensaje JSON canonicalizado",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkMember(member); err != nil {
				return err
			}
			msg, err := readMessage(message, file)
			if err != nil {
				return err
			}
			f, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			e := f.ForMember(member)

			var s signing.Signer
			switch {
			case keyID != "":
				s, err = e.CreateSignerByID(cmd.Context(), keyID)
			case atLeast != "":
				lvl, perr := keys.ParseLevel(atLeast)
				if perr != nil {
					return perr
				}
				s, err = e.CreateSignerForLevelAtLeast(cmd.Context(), lvl)
			default:
				lvl, perr := keys.ParseLevel(level)
				if perr != nil {
					return perr
				}
				s, err = e.CreateSigner(cmd.Context(), lvl)
			}
			if err != nil {
				return err
			}

			sig, err := s.SignMessage(msg)
			if err != nil {
				return err
			}
			a.print(struct {
				KeyID     string         `json:"keyId"`
				Algorithm keys.Algorithm `json:"algorithm"`
				Signature string         `json:"signature"`
			}{s.KeyID(), s.Algorithm(), sig}, func() string { return s.KeyID() + " " + sig })
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "id del member")
	cmd.Flags().StringVar(&level, "level", "LOW", "nivel de la clave current a usar")
	cmd.Flags().StringVar(&atLeast, "at-least", "", "usar la primera clave desde este nivel hacia arriba")
	cmd.Flags().StringVar(&keyID, "key-id", "", "firmar con una clave concreta")
	cmd.Flags().StringVar(&message, "message", "", "mensaje JSON")
	cmd.Flags().StringVar(&file, "file", "", "archivo con el mensaje JSON (- = stdin)")
	cmd.MarkFlagsMutuallyExclusive("key-id", "at-least")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var member, keyID, signature, message, file string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verifica la firma de un mensaje JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkMember(member); err != nil {
				return err
			}
			if keyID == "" || signature == "" {
				return errors.New("--key-id y --signature son requeridos")
			}
			msg, err := readMessage(message, file)
			if err != nil {
				return err
			}
			f, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			v, err := f.ForMember(member).CreateVerifier(cmd.Context(), keyID)
			if err != nil {
				return err
			}
			if err := v.VerifyMessage(msg, signature); err != nil {
				return err
			}
			a.print(map[string]any{"valid": true, "keyId": keyID}, func() string { return "ok" })
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "id del member")
	cmd.Flags().StringVar(&keyID, "key-id", "", "id de la clave")
	cmd.Flags().StringVar(&signature, "signature", "", "firma base64url")
	cmd.Flags().StringVar(&message, "message", "", "mensaje JSON")
	cmd.Flags().StringVar(&file, "file", "", "archivo con el mensaje JSON (- = stdin)")
	return cmd
}

func newAliasHashCmd(a *app) *cobra.Command {
	var typ, value, realm, realmID string
	cmd := &cobra.Command{
		Use:   "alias-hash",
		Short: "Calcula el hash Base58 de un alias (no necesita keystore)",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := alias.ParseType(typ)
			if err != nil {
				return err
			}
			h, err := alias.Hash(alias.Alias{Type: t, Value: value, Realm: realm, RealmID: realmID})
			if err != nil {
				return err
			}
			a.print(map[string]string{"type": string(t), "hash": h}, func() string { return h })
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "EMAIL", "EMAIL|PHONE|DOMAIN|USERNAME|BANK|CUSTOM|EIDAS")
	cmd.Flags().StringVar(&value, "value", "", "valor del alias")
	cmd.Flags().StringVar(&realm, "realm", "", "realm (no participa del hash)")
	cmd.Flags().StringVar(&realmID, "realm-id", "", "realm id (no participa del hash)")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newGenMasterKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gen-master-key",
		Short: "Genera una master key para KEYSTORE_MASTER_KEY (32 bytes, base64)",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := secretbox.GenerateKey(nil)
			if err != nil {
				return err
			}
			a.print(map[string]string{"masterKey": k}, func() string { return k })
			return nil
		},
	}
}
