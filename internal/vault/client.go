package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kumex-futures-sdk/auth"
	"kumex-futures-sdk/config"

	"github.com/hashicorp/vault/api"
)

// ErrNotFound is returned when no credential set exists for an account
var ErrNotFound = errors.New("credentials not found")

// CredentialData represents the credential set stored in Vault
type CredentialData struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Passphrase string `json:"api_passphrase"`
	KeyVersion string `json:"key_version"`
}

// Credentials validates the stored data into an auth credential set
func (d CredentialData) Credentials() (*auth.Credentials, error) {
	return auth.NewCredentials(d.APIKey, d.APISecret, d.Passphrase, d.KeyVersion)
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cache  map[string]*CredentialData // account -> credentials
}

// NewClient creates a new Vault client. With Vault disabled the client keeps
// credentials in memory only.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[string]*CredentialData),
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]*CredentialData),
	}, nil
}

// StoreCredentials writes a credential set for an account
func (c *Client) StoreCredentials(ctx context.Context, account string, data CredentialData) error {
	if !c.config.Enabled {
		// Store in local cache only (for development/testing)
		c.mu.Lock()
		c.cache[account] = &data
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":        data.APIKey,
			"api_secret":     data.APISecret,
			"api_passphrase": data.Passphrase,
			"key_version":    data.KeyVersion,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(account), secretData); err != nil {
		return fmt.Errorf("failed to store credentials in vault: %w", err)
	}

	c.mu.Lock()
	c.cache[account] = &data
	c.mu.Unlock()

	return nil
}

// GetCredentials returns the validated credential set of an account
func (c *Client) GetCredentials(ctx context.Context, account string) (*auth.Credentials, error) {
	data, err := c.GetCredentialData(ctx, account)
	if err != nil {
		return nil, err
	}
	creds, err := data.Credentials()
	if err != nil {
		return nil, fmt.Errorf("invalid credentials for account %s: %w", account, err)
	}
	return creds, nil
}

// GetCredentialData retrieves the raw credential data of an account
func (c *Client) GetCredentialData(ctx context.Context, account string) (*CredentialData, error) {
	// Check cache first
	c.mu.RLock()
	if cached, ok := c.cache[account]; ok {
		c.mu.RUnlock()
		copied := *cached
		return &copied, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("account %s: %w (vault is disabled)", account, ErrNotFound)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(account))
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("account %s: %w", account, ErrNotFound)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	credData := &CredentialData{
		APIKey:     getString(data, "api_key"),
		APISecret:  getString(data, "api_secret"),
		Passphrase: getString(data, "api_passphrase"),
		KeyVersion: getString(data, "key_version"),
	}

	c.mu.Lock()
	c.cache[account] = credData
	c.mu.Unlock()

	copied := *credData
	return &copied, nil
}

// DeleteCredentials removes every version of an account's credentials
func (c *Client) DeleteCredentials(ctx context.Context, account string) error {
	c.mu.Lock()
	delete(c.cache, account)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(account)); err != nil {
		return fmt.Errorf("failed to delete credentials from vault: %w", err)
	}

	return nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*CredentialData)
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path of an account
func (c *Client) secretPath(account string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, account)
}

// metadataPath returns the KV v2 metadata path of an account
func (c *Client) metadataPath(account string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, account)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
