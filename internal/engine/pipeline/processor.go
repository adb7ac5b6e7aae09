package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopmirror/internal/engine/reconcile"
	"shopmirror/internal/engine/tenants"
	"shopmirror/internal/engine/webhooks"
	apperrors "shopmirror/internal/pkg/errors"
	"shopmirror/internal/platform/audit"
	"shopmirror/internal/platform/database"
	"shopmirror/internal/platform/keys"
	"shopmirror/internal/platform/models"
)

// Delivery states. A delivery terminates in Persisted or Failed(stage); the
// failing stage is recorded on the audit row. There is no internal retry: the
// platform retries non-2xx responses and the pipeline is idempotent.
const (
	StageReceived       = "received"
	StageAuthenticated  = "authenticated"
	StageTenantResolved = "tenant_resolved"
	StageNormalized     = "normalized"
	StagePersisted      = "persisted"
)

type Delivery struct {
	ShopDomain string
	Topic      string
	Signature  string
	Body       []byte
}

type Result struct {
	Log   *models.WebhookLog
	Event webhooks.Event
}

type Processor struct {
	resolver   *tenants.Resolver
	keys       keys.Provider
	pool       *database.TenantDBPool
	reconciler *reconcile.Service
	trail      *audit.Trail
}

func NewProcessor(resolver *tenants.Resolver, provider keys.Provider, pool *database.TenantDBPool, reconciler *reconcile.Service, trail *audit.Trail) *Processor {
	return &Processor{
		resolver:   resolver,
		keys:       provider,
		pool:       pool,
		reconciler: reconciler,
		trail:      trail,
	}
}

// Process runs one delivery through the pipeline. The audit row is written
// before any processing and finalized on every exit path.
func (p *Processor) Process(ctx context.Context, d Delivery) (*Result, error) {
	start := time.Now()

	entry, err := p.trail.Begin(d.ShopDomain, d.Topic)
	if err != nil {
		return nil, err
	}

	fail := func(stage string, tenantID, externalID string, err error) (*Result, error) {
		p.trail.Finish(entry, tenantID, externalID, fmt.Sprintf("%s: %v", stage, err), time.Since(start))
		return nil, err
	}

	tenant, err := p.resolver.Resolve(d.ShopDomain)
	if err != nil {
		// A malformed shop-domain header never reached a lookup; audit it as a
		// failure of the received request, not of resolution.
		stage := StageTenantResolved
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) {
			stage = StageReceived
		}
		return fail(stage, "", "", err)
	}

	// The secret comes from the key provider, never from the caller.
	secret, err := p.keys.ActiveSecret(tenant.ID)
	if err != nil {
		return fail(StageAuthenticated, tenant.ID, "", err)
	}
	if err := webhooks.VerifySignature(d.Body, d.Signature, secret); err != nil {
		return fail(StageAuthenticated, tenant.ID, "", err)
	}

	event, err := webhooks.Normalize(d.Topic, d.Body)
	if err != nil {
		return fail(StageNormalized, tenant.ID, "", err)
	}

	switch event.(type) {
	case *webhooks.NoOpEvent:
		// Accepted and marked processed with no side effect.
	case *webhooks.AppUninstalledEvent:
		if err := p.resolver.Deactivate(tenant.ID); err != nil {
			return fail(StagePersisted, tenant.ID, "", err)
		}
		p.keys.Invalidate(tenant.ID)
	default:
		db, err := p.pool.Get(tenant.ID, tenant.DBFilePath)
		if err != nil {
			return fail(StagePersisted, tenant.ID, event.EntityID(), err)
		}
		if err := p.reconciler.Apply(ctx, tenant.ID, db, event); err != nil {
			return fail(StagePersisted, tenant.ID, event.EntityID(), err)
		}
	}

	p.trail.Finish(entry, tenant.ID, event.EntityID(), "", time.Since(start))
	return &Result{Log: entry, Event: event}, nil
}
