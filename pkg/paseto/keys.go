package pasetotoken

import (
	"strings"

	paseto "aidanwoods.dev/go-paseto"

	"github.com/Alijeyrad/karsaz_backend/config"
)

type Mode string

const (
	ModeLocal  Mode = "local"  // v4.local, encrypted
	ModePublic Mode = "public" // v4.public, signed
)

// Keys holds the key material for one Mode. A public-mode replica that
// only verifies tokens may carry Public alone.
type Keys struct {
	Mode Mode

	Symmetric *paseto.V4SymmetricKey

	Secret *paseto.V4AsymmetricSecretKey
	Public *paseto.V4AsymmetricPublicKey
}

// LoadKeys decodes the hex keys of the authentication.paseto section.
func LoadKeys(cfg config.PasetoConfig) (Keys, error) {
	switch mode := Mode(cfg.Mode); mode {
	case ModeLocal:
		h := strings.TrimSpace(cfg.LocalKeyHex)
		if h == "" {
			return Keys{}, configErr("local mode needs local_key_hex")
		}
		k, err := paseto.V4SymmetricKeyFromHex(h)
		if err != nil {
			return Keys{}, configErr("local_key_hex: %v", err)
		}
		return Keys{Mode: mode, Symmetric: &k}, nil

	case ModePublic:
		out := Keys{Mode: mode}
		if h := strings.TrimSpace(cfg.SecretKeyHex); h != "" {
			sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(h)
			if err != nil {
				return Keys{}, configErr("secret_key_hex: %v", err)
			}
			pk := sk.Public()
			out.Secret, out.Public = &sk, &pk
		}
		if h := strings.TrimSpace(cfg.PublicKeyHex); h != "" {
			pk, err := paseto.NewV4AsymmetricPublicKeyFromHex(h)
			if err != nil {
				return Keys{}, configErr("public_key_hex: %v", err)
			}
			if out.Public != nil && out.Public.ExportHex() != pk.ExportHex() {
				return Keys{}, configErr("public_key_hex does not match secret_key_hex")
			}
			out.Public = &pk
		}
		if out.Public == nil {
			return Keys{}, configErr("public mode needs secret_key_hex or public_key_hex")
		}
		return out, nil

	default:
		return Keys{}, configErr("unknown mode %q (use local or public)", cfg.Mode)
	}
}

// GenerateKeys returns fresh random keys for mode.
func GenerateKeys(mode Mode) (Keys, error) {
	switch mode {
	case ModeLocal:
		k := paseto.NewV4SymmetricKey()
		return Keys{Mode: mode, Symmetric: &k}, nil
	case ModePublic:
		sk := paseto.NewV4AsymmetricSecretKey()
		pk := sk.Public()
		return Keys{Mode: mode, Secret: &sk, Public: &pk}, nil
	default:
		return Keys{}, configErr("unknown mode %q", mode)
	}
}

// Hex renders k in the shape of the config section, ready to paste.
func (k Keys) Hex() config.PasetoConfig {
	out := config.PasetoConfig{Mode: string(k.Mode)}
	if k.Symmetric != nil {
		out.LocalKeyHex = k.Symmetric.ExportHex()
	}
	if k.Secret != nil {
		out.SecretKeyHex = k.Secret.ExportHex()
	}
	if k.Public != nil {
		out.PublicKeyHex = k.Public.ExportHex()
	}
	return out
}

// NewLocalKeys generates a random v4.local key.
func NewLocalKeys() Keys {
	k, _ := GenerateKeys(ModeLocal)
	return k
}
