package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/identity/pkg/jwtx"
)

// InitKeys builds the signing KeyManager.
//
// With IDENTITY_SIGNING_KEY_FILE set, a single key is loaded from (or
// generated into) that file and tokens survive restarts. Otherwise
// IDENTITY_NUM_KEYS keys are generated in memory and every outstanding token
// becomes invalid when the process restarts.
func InitKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audiences(),
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
		KeyFile:   cfg.SigningKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}

	if cfg.SigningKeyFile != "" {
		logger.Info("signing key loaded",
			"algorithm", km.Algorithm(),
			"key_file", cfg.SigningKeyFile,
			"issuer", cfg.Issuer,
		)
	} else {
		logger.Info("generated ephemeral signing keys",
			"algorithm", km.Algorithm(),
			"num_keys", km.NumSigners(),
			"issuer", cfg.Issuer,
		)
		logger.Warn("all existing tokens are now invalid due to key rotation on startup")
	}
	return km, nil
}
