package system

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Alijeyrad/karsaz_backend/pkg/crypto"
	pasetotoken "github.com/Alijeyrad/karsaz_backend/pkg/paseto"
)

type keygenPaseto struct {
	Mode         string `yaml:"mode"`
	LocalKeyHex  string `yaml:"local_key_hex,omitempty"`
	SecretKeyHex string `yaml:"secret_key_hex,omitempty"`
	PublicKeyHex string `yaml:"public_key_hex,omitempty"`
}

type keygenOutput struct {
	Authentication struct {
		EncryptionKey string       `yaml:"encryption_key"`
		Paseto        keygenPaseto `yaml:"paseto"`
	} `yaml:"authentication"`
}

// generateSecrets builds a fresh authentication section for mode.
func generateSecrets(mode string) (keygenOutput, error) {
	var out keygenOutput

	keys, err := pasetotoken.GenerateKeys(pasetotoken.Mode(mode))
	if err != nil {
		return out, err
	}
	enc, err := crypto.GenerateKeyHex()
	if err != nil {
		return out, err
	}

	h := keys.Hex()
	out.Authentication.EncryptionKey = enc
	out.Authentication.Paseto = keygenPaseto{
		Mode:         h.Mode,
		LocalKeyHex:  h.LocalKeyHex,
		SecretKeyHex: h.SecretKeyHex,
		PublicKeyHex: h.PublicKeyHex,
	}
	return out, nil
}

func NewKeygenCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print fresh token and payout-encryption keys as config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := generateSecrets(mode)
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("encode keys: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(pasetotoken.ModeLocal), "paseto mode: local or public")

	return cmd
}
