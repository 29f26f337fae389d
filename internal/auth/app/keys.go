package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/workbench/pkg/cryptox"
	"github.com/aussiebroadwan/workbench/pkg/jwtx"
)

// signingKID labels the only signing key. It just has to be stable for the
// JWKS document.
const signingKID = "workbench-1"

// InitAuthKeys builds the KeyManager for the configured algorithm.
//
//   - HS256 signs with AUTH_SIGNING_KEY. In dev an unset key is replaced by a
//     random one and every token dies with the process.
//   - EdDSA loads the PKCS8 key at AUTH_SIGNING_KEY_FILE, generating it on
//     first start. In dev an unset path yields an in-memory key.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		KID:       signingKID,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
	}

	switch cfg.Algorithm {
	case jwtx.AlgorithmHS256:
		secret := cfg.SigningKey
		if secret == "" {
			generated, err := cryptox.GenerateToken(jwtx.MinHS256SecretSize)
			if err != nil {
				return nil, fmt.Errorf("generate signing key: %w", err)
			}
			secret = generated
			logger.Warn("AUTH_SIGNING_KEY not set, using an ephemeral key; tokens will not survive a restart")
		}
		opts.Secret = []byte(secret)

	case jwtx.AlgorithmEdDSA:
		var (
			pem []byte
			err error
		)
		if cfg.SigningKeyFile != "" {
			pem, err = cryptox.LoadOrGenerateEd25519Key(cfg.SigningKeyFile)
		} else {
			pem, err = cryptox.GenerateEd25519Key()
			logger.Warn("AUTH_SIGNING_KEY_FILE not set, using an ephemeral key; tokens will not survive a restart")
		}
		if err != nil {
			return nil, fmt.Errorf("load signing key: %w", err)
		}
		opts.PrivateKeyPEM = pem
	}

	keys, err := jwtx.NewKeyManager(opts)
	if err != nil {
		return nil, fmt.Errorf("init key manager: %w", err)
	}

	logger.Info("signing key ready",
		slog.String("algorithm", keys.Algorithm()),
		slog.String("kid", signingKID),
		slog.String("issuer", cfg.Issuer),
	)
	return keys, nil
}

// initSealer derives the MFA secret key. Dev gets a throwaway key, which
// makes every enrolled secret unreadable after a restart.
func initSealer(cfg Config, logger *slog.Logger) (*cryptox.Sealer, error) {
	material := cfg.MFAEncryptionKey
	if material == "" {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, fmt.Errorf("generate mfa key: %w", err)
		}
		material = generated
		logger.Warn("AUTH_MFA_ENCRYPTION_KEY not set, using an ephemeral key; enrolled MFA secrets will not survive a restart")
	}
	return cryptox.NewSealer(cryptox.DeriveSealerKey(material))
}
