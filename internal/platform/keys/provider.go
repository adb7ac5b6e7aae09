package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
	"shopmirror/internal/platform/config"
	"shopmirror/internal/platform/models"
	"shopmirror/internal/platform/repositories"
)

// DataKey is one version of a tenant's symmetric encryption key.
type DataKey struct {
	Version int
	Key     []byte
}

// Provider hands out tenant secrets and encryption keys. Implementations must
// pick up a rotated key or secret without a process restart, so callers may
// not hold results beyond a single delivery.
type Provider interface {
	ActiveSecret(tenantID string) (string, error)
	ActiveDataKey(tenantID string) (DataKey, error)
	DataKeyVersion(tenantID string, version int) (DataKey, error)
	Invalidate(tenantID string)
}

type cacheEntry struct {
	tenant  *models.Tenant
	expires time.Time
}

// HKDFProvider derives per-tenant, per-version data keys from a master key, so
// rotation is just bumping the tenant's key_version: the new version derives a
// new key and every historical version stays reconstructible for old
// ciphertexts. Tenant records are cached for a short TTL.
type HKDFProvider struct {
	repo      *repositories.TenantRepository
	masterKey []byte
	ttl       time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewHKDFProvider(repo *repositories.TenantRepository, cfg config.EncryptionConfig) (*HKDFProvider, error) {
	master, err := hex.DecodeString(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("invalid master key: %w", err)
	}
	if len(master) < 32 {
		return nil, errors.New("master key must be at least 32 bytes")
	}
	ttl := cfg.KeyCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &HKDFProvider{
		repo:      repo,
		masterKey: master,
		ttl:       ttl,
		cache:     make(map[string]cacheEntry),
	}, nil
}

func (p *HKDFProvider) ActiveSecret(tenantID string) (string, error) {
	tenant, err := p.tenant(tenantID)
	if err != nil {
		return "", err
	}
	return tenant.WebhookSecret, nil
}

func (p *HKDFProvider) ActiveDataKey(tenantID string) (DataKey, error) {
	tenant, err := p.tenant(tenantID)
	if err != nil {
		return DataKey{}, err
	}
	return p.derive(tenantID, tenant.KeyVersion)
}

func (p *HKDFProvider) DataKeyVersion(tenantID string, version int) (DataKey, error) {
	if version < 1 {
		return DataKey{}, fmt.Errorf("invalid key version %d", version)
	}
	return p.derive(tenantID, version)
}

func (p *HKDFProvider) Invalidate(tenantID string) {
	p.mu.Lock()
	delete(p.cache, tenantID)
	p.mu.Unlock()
}

func (p *HKDFProvider) tenant(tenantID string) (*models.Tenant, error) {
	p.mu.RLock()
	entry, ok := p.cache[tenantID]
	p.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.tenant, nil
	}

	tenant, err := p.repo.GetByID(tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, fmt.Errorf("tenant not found: %s", tenantID)
	}

	p.mu.Lock()
	p.cache[tenantID] = cacheEntry{tenant: tenant, expires: time.Now().Add(p.ttl)}
	p.mu.Unlock()

	return tenant, nil
}

func (p *HKDFProvider) derive(tenantID string, version int) (DataKey, error) {
	info := fmt.Sprintf("shopmirror:data-key:%s:v%d", tenantID, version)
	r := hkdf.New(sha256.New, p.masterKey, []byte(tenantID), []byte(info))

	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return DataKey{}, err
	}
	return DataKey{Version: version, Key: key}, nil
}
