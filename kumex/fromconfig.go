package kumex

import (
	"context"
	"errors"
	"fmt"
	"io"

	"kumex-futures-sdk/auth"
	"kumex-futures-sdk/config"
	"kumex-futures-sdk/internal/logging"
	"kumex-futures-sdk/internal/vault"
	"kumex-futures-sdk/transport"

	"github.com/rs/zerolog"
)

// NewFromConfig wires a client from process configuration: logger, transport
// and credentials, read from Vault when it is enabled. The returned closer
// releases the log file.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, io.Closer, error) {
	if cfg == nil {
		return nil, nil, &ConfigurationError{Field: "config", Err: errors.New("config is nil")}
	}

	logger, closer := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		Path:       cfg.LoggingConfig.Path,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "kumex",
		MaxSizeMB:  cfg.LoggingConfig.MaxSizeMB,
		MaxBackups: cfg.LoggingConfig.MaxBackups,
		MaxAgeDays: cfg.LoggingConfig.MaxAgeDays,
	})

	creds, err := loadCredentials(ctx, cfg, logger)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	var t transport.Transport
	switch cfg.APIConfig.Transport {
	case config.TransportResty:
		t = transport.NewRestyTransport(cfg.APIConfig.SkipVerifyTLS)
	case config.TransportHTTP, "":
		t = transport.NewHTTPTransport(cfg.APIConfig.SkipVerifyTLS)
	default:
		closer.Close()
		return nil, nil, &ConfigurationError{Field: "transport", Err: fmt.Errorf("unknown transport %q", cfg.APIConfig.Transport)}
	}

	client, err := NewClient(Settings{
		BaseURI:       cfg.APIConfig.BaseURI,
		SkipVerifyTLS: cfg.APIConfig.SkipVerifyTLS,
		DebugMode:     cfg.APIConfig.DebugMode,
		Timeout:       cfg.APIConfig.Timeout,
		Logger:        &logger,
	}, creds, t)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	logger.Info().
		Str("base_uri", client.BaseURI()).
		Str("transport", cfg.APIConfig.Transport).
		Bool("authenticated", client.Authenticated()).
		Bool("debug", cfg.APIConfig.DebugMode).
		Msg("KuMex client initialized")

	return client, closer, nil
}

func loadCredentials(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*auth.Credentials, error) {
	if cfg.VaultConfig.Enabled {
		store, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			return nil, &ConfigurationError{Field: "vault", Err: err}
		}
		creds, err := store.GetCredentials(ctx, cfg.VaultConfig.Account)
		if err != nil {
			return nil, &ConfigurationError{Field: "credentials", Err: err}
		}
		logger.Debug().
			Str("account", cfg.VaultConfig.Account).
			Str("key", creds.String()).
			Msg("Loaded credentials from vault")
		return creds, nil
	}

	if !cfg.CredentialsConfig.HasCredentials() {
		return nil, nil
	}
	creds, err := auth.NewCredentials(
		cfg.CredentialsConfig.APIKey,
		cfg.CredentialsConfig.APISecret,
		cfg.CredentialsConfig.Passphrase,
		cfg.CredentialsConfig.KeyVersion,
	)
	if err != nil {
		return nil, &ConfigurationError{Field: "credentials", Err: err}
	}
	return creds, nil
}
