package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"go.uber.org/zap"
)

// secretFetcher is the part of the Key Vault SDK the client needs
type secretFetcher interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// VaultClient wraps Azure Key Vault client for secret retrieval
type VaultClient struct {
	client    secretFetcher
	vaultName string
	logger    *zap.Logger
	cache     *cache.MemoryCache
	cacheTTL  time.Duration
}

// VaultConfig holds configuration for the vault client
type VaultConfig struct {
	VaultName    string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewVaultClient creates a new Azure Key Vault client.
// DefaultAzureCredential tries environment credentials, managed identity and the Azure CLI in turn.
func NewVaultClient(cfg *VaultConfig, logger *zap.Logger) (*VaultClient, error) {
	if cfg.VaultName == "" {
		return nil, fmt.Errorf("vault name is required")
	}

	logger.Info("Initializing Azure Key Vault client",
		zap.String("vault_name", cfg.VaultName),
		zap.Bool("cache_enabled", cfg.CacheEnabled),
	)

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		logger.Error("Failed to create Azure credential", zap.Error(err))
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", cfg.VaultName)

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		logger.Error("Failed to create Key Vault client", zap.Error(err))
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	logger.Info("Azure Key Vault client initialized successfully", zap.String("vault_url", vaultURL))

	return newVaultClient(client, cfg, logger), nil
}

func newVaultClient(client secretFetcher, cfg *VaultConfig, logger *zap.Logger) *VaultClient {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	v := &VaultClient{
		client:    client,
		vaultName: cfg.VaultName,
		logger:    logger,
		cacheTTL:  ttl,
	}
	if cfg.CacheEnabled {
		v.cache = cache.NewMemoryCache(cache.WithDefaultTTL(ttl), cache.WithLogger(logger))
	}
	return v
}

// GetSecret retrieves a secret from Azure Key Vault
func (v *VaultClient) GetSecret(ctx context.Context, secretName string) (string, error) {
	if v.cache != nil {
		var cached string
		if ok, _ := v.cache.Get(ctx, secretName, &cached); ok {
			v.logger.Debug("Secret retrieved from cache", zap.String("secret_name", secretName))
			return cached, nil
		}
	}

	resp, err := v.client.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		v.logger.Error("Failed to get secret from Key Vault",
			zap.String("secret_name", secretName),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to get secret '%s': %w", secretName, err)
	}

	if resp.Value == nil {
		return "", fmt.Errorf("secret '%s' has no value", secretName)
	}
	value := *resp.Value

	if v.cache != nil {
		_ = v.cache.Set(ctx, secretName, value, v.cacheTTL)
	}

	return value, nil
}

// ClearCache drops all cached secrets
func (v *VaultClient) ClearCache() {
	if v.cache != nil {
		_, _ = v.cache.DeletePrefix(context.Background(), "")
	}
}

// Close stops the cache cleanup goroutine
func (v *VaultClient) Close() error {
	if v.cache != nil {
		return v.cache.Close()
	}
	return nil
}
