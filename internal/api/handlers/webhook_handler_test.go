package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"shopmirror/internal/engine/crypto"
	"shopmirror/internal/engine/pipeline"
	"shopmirror/internal/engine/reconcile"
	"shopmirror/internal/engine/tenants"
	"shopmirror/internal/platform/audit"
	"shopmirror/internal/platform/config"
	"shopmirror/internal/platform/database"
	"shopmirror/internal/platform/keys"
	"shopmirror/internal/platform/repositories"
)

const (
	testShopDomain = "example.myshopify.com"
	testSecret     = "whsec_test"
	testMasterKey  = "5b1d2c3e4f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c"

	orderBody = `{
		"id": 820982911946154500,
		"email": "jon@example.com",
		"created_at": "2024-03-01T10:15:00Z",
		"updated_at": "2024-03-01T10:20:00Z",
		"currency": "USD",
		"financial_status": "paid",
		"total_price": "89.97",
		"line_items": [{"id": 1, "title": "Widget", "quantity": 3, "price": "29.99"}],
		"customer": {"id": 115310627314723950, "email": "jon@example.com", "first_name": "Jon"}
	}`
)

type fixture struct {
	handler  *WebhookHandler
	globalDB *sql.DB
	tenantDB *sql.DB
}

// newFixture wires the full ingestion pipeline against temp-file databases,
// with one active tenant and one deactivated tenant registered.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	globalDB, err := sql.Open("sqlite3", filepath.Join(dir, "global.db"))
	require.NoError(t, err)
	t.Cleanup(func() { globalDB.Close() })

	globalSchema, err := os.ReadFile("../../../migrations/global/001_init.sql")
	require.NoError(t, err)
	_, err = globalDB.Exec(string(globalSchema))
	require.NoError(t, err)

	tenantPath := filepath.Join(dir, "tnt_1.db")
	_, err = globalDB.Exec(`
		INSERT INTO tenants (id, shop_domain, active, webhook_secret, key_version, db_file_path, created_at, updated_at)
		VALUES ('tnt_1', ?, 1, ?, 1, ?, 1700000000, 1700000000),
		       ('tnt_2', 'closed.myshopify.com', 0, ?, 1, ?, 1700000000, 1700000000)
	`, testShopDomain, testSecret, tenantPath, testSecret, filepath.Join(dir, "tnt_2.db"))
	require.NoError(t, err)

	pool := database.NewTenantDBPool(config.TenantDBConfig{MaxConnectionsPerTenant: 4, BusyTimeoutMillis: 1000})
	t.Cleanup(pool.CloseAll)

	tenantDB, err := pool.Get("tnt_1", tenantPath)
	require.NoError(t, err)
	tenantSchema, err := os.ReadFile("../../../migrations/tenant/001_init.sql")
	require.NoError(t, err)
	_, err = tenantDB.Exec(string(tenantSchema))
	require.NoError(t, err)

	tenantRepo := repositories.NewTenantRepository(globalDB)
	logRepo := repositories.NewWebhookLogRepository(globalDB)

	provider, err := keys.NewHKDFProvider(tenantRepo, config.EncryptionConfig{MasterKey: testMasterKey})
	require.NoError(t, err)

	processor := pipeline.NewProcessor(
		tenants.NewResolver(tenantRepo),
		provider,
		pool,
		reconcile.NewService(crypto.NewFieldCipher(provider)),
		audit.NewTrail(logRepo),
	)

	handler := NewWebhookHandler(processor, config.WebhooksConfig{
		ShopDomainHeader: "X-Shopify-Shop-Domain",
		TopicHeader:      "X-Shopify-Topic",
		SignatureHeader:  "X-Shopify-Hmac-Sha256",
		MaxBodyBytes:     2048,
	})

	return &fixture{handler: handler, globalDB: globalDB, tenantDB: tenantDB}
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (f *fixture) deliver(shop, topic, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/commerce", bytes.NewReader([]byte(body)))
	if shop != "" {
		req.Header.Set("X-Shopify-Shop-Domain", shop)
	}
	if topic != "" {
		req.Header.Set("X-Shopify-Topic", topic)
	}
	if signature != "" {
		req.Header.Set("X-Shopify-Hmac-Sha256", signature)
	}
	rr := httptest.NewRecorder()
	f.handler.Receive(rr, req)
	return rr
}

func (f *fixture) count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestReceive_OrderCreate(t *testing.T) {
	f := newFixture(t)

	rr := f.deliver(testShopDomain, "orders/create", orderBody, sign(orderBody, testSecret))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Success   bool `json:"success"`
		Processed bool `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.True(t, resp.Processed)

	require.Equal(t, 1, f.count(t, f.tenantDB, "orders"))
	require.Equal(t, 1, f.count(t, f.tenantDB, "customers"))

	var processed bool
	var tenantID, externalID string
	require.NoError(t, f.globalDB.QueryRow(
		`SELECT tenant_id, external_id, processed FROM webhook_logs`).
		Scan(&tenantID, &externalID, &processed))
	require.True(t, processed)
	require.Equal(t, "tnt_1", tenantID)
	require.Equal(t, "820982911946154500", externalID)
}

func TestReceive_DuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	signature := sign(orderBody, testSecret)

	require.Equal(t, http.StatusOK, f.deliver(testShopDomain, "orders/create", orderBody, signature).Code)
	require.Equal(t, http.StatusOK, f.deliver(testShopDomain, "orders/create", orderBody, signature).Code)

	// One audit row per attempt, one entity row total.
	require.Equal(t, 2, f.count(t, f.globalDB, "webhook_logs"))
	require.Equal(t, 1, f.count(t, f.tenantDB, "orders"))

	var ordersCount int
	var totalSpent string
	require.NoError(t, f.tenantDB.QueryRow(
		`SELECT orders_count, total_spent FROM customers`).Scan(&ordersCount, &totalSpent))
	require.Equal(t, 1, ordersCount)
	require.Equal(t, "89.97", totalSpent)
}

func TestReceive_InvalidSignature(t *testing.T) {
	f := newFixture(t)

	rr := f.deliver(testShopDomain, "orders/create", orderBody, sign(orderBody, "wrong-secret"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	require.Zero(t, f.count(t, f.tenantDB, "orders"))
	require.Zero(t, f.count(t, f.tenantDB, "customers"))

	// The attempt is still audited, marked unprocessed.
	var processed bool
	var errMsg string
	require.NoError(t, f.globalDB.QueryRow(
		`SELECT processed, error FROM webhook_logs`).Scan(&processed, &errMsg))
	require.False(t, processed)
	require.Contains(t, errMsg, "authenticated")
}

func TestReceive_UnknownShop(t *testing.T) {
	f := newFixture(t)

	body := `{"id": 1, "created_at": "2024-03-01T10:15:00Z"}`
	rr := f.deliver("nobody.myshopify.com", "orders/create", body, sign(body, testSecret))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReceive_InactiveTenant(t *testing.T) {
	f := newFixture(t)

	body := `{"id": 1, "created_at": "2024-03-01T10:15:00Z"}`
	rr := f.deliver("closed.myshopify.com", "orders/create", body, sign(body, testSecret))
	require.Equal(t, http.StatusGone, rr.Code)
}

func TestReceive_MissingTopic(t *testing.T) {
	f := newFixture(t)

	rr := f.deliver(testShopDomain, "", orderBody, sign(orderBody, testSecret))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReceive_BadShopDomainHeader(t *testing.T) {
	f := newFixture(t)

	body := `{"id": 1, "created_at": "2024-03-01T10:15:00Z"}`
	rr := f.deliver("not a shop domain", "orders/create", body, sign(body, testSecret))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Header-format failures are audited against the received request, not
	// against tenant resolution or payload normalization.
	var errMsg string
	require.NoError(t, f.globalDB.QueryRow(`SELECT error FROM webhook_logs`).Scan(&errMsg))
	require.True(t, strings.HasPrefix(errMsg, "received:"), errMsg)
}

func TestReceive_MalformedPayload(t *testing.T) {
	f := newFixture(t)

	body := `{"id": `
	rr := f.deliver(testShopDomain, "orders/create", body, sign(body, testSecret))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Zero(t, f.count(t, f.tenantDB, "orders"))
}

func TestReceive_OversizedBody(t *testing.T) {
	f := newFixture(t)

	body := strings.Repeat("x", 4096)
	rr := f.deliver(testShopDomain, "orders/create", body, sign(body, testSecret))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	// Rejected before the pipeline starts: nothing is audited or persisted.
	require.Zero(t, f.count(t, f.globalDB, "webhook_logs"))
	require.Zero(t, f.count(t, f.tenantDB, "orders"))
}

func TestReceive_UnknownTopic(t *testing.T) {
	f := newFixture(t)

	body := `{"id": 7, "created_at": "2024-03-01T10:15:00Z"}`
	rr := f.deliver(testShopDomain, "fulfillments/create", body, sign(body, testSecret))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Success   bool `json:"success"`
		Processed bool `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Processed, "unknown topics are acknowledged so the sender stops retrying")

	require.Zero(t, f.count(t, f.tenantDB, "orders"))
	require.Zero(t, f.count(t, f.tenantDB, "customers"))
	require.Zero(t, f.count(t, f.tenantDB, "products"))
}

func TestReceive_ConcurrentUpdatesConverge(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.deliver(testShopDomain, "orders/create", orderBody, sign(orderBody, testSecret)).Code)

	paid := `{"id": 820982911946154500, "created_at": "2024-03-01T10:15:00Z", "updated_at": "2024-03-01T10:25:00Z", "financial_status": "paid", "total_price": "89.97"}`
	refunded := `{"id": 820982911946154500, "created_at": "2024-03-01T10:15:00Z", "updated_at": "2024-03-01T10:25:00Z", "financial_status": "refunded", "total_price": "89.97"}`

	// Two simultaneous updates to the same order serialize on the tenant
	// database write lock; both must land, in either order.
	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, body := range []string{paid, refunded} {
		wg.Add(1)
		go func(i int, body string) {
			defer wg.Done()
			codes[i] = f.deliver(testShopDomain, "orders/updated", body, sign(body, testSecret)).Code
		}(i, body)
	}
	wg.Wait()

	require.Equal(t, http.StatusOK, codes[0])
	require.Equal(t, http.StatusOK, codes[1])

	// One audit row per attempt, one order row, one coherent winner status.
	require.Equal(t, 3, f.count(t, f.globalDB, "webhook_logs"))
	require.Equal(t, 1, f.count(t, f.tenantDB, "orders"))

	var status string
	require.NoError(t, f.tenantDB.QueryRow(`SELECT financial_status FROM orders`).Scan(&status))
	require.Contains(t, []string{"paid", "refunded"}, status)
}

func TestReceive_AppUninstalled(t *testing.T) {
	f := newFixture(t)

	body := `{}`
	rr := f.deliver(testShopDomain, "app/uninstalled", body, sign(body, testSecret))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var active bool
	require.NoError(t, f.globalDB.QueryRow(
		`SELECT active FROM tenants WHERE id = 'tnt_1'`).Scan(&active))
	require.False(t, active)

	// Later deliveries for the deactivated shop are refused.
	rr = f.deliver(testShopDomain, "orders/create", orderBody, sign(orderBody, testSecret))
	require.Equal(t, http.StatusGone, rr.Code)
}
