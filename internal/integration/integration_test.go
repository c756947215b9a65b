//go:build integration
// +build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	httpapi "github.com/lendledger/lendledger/internal/api/http"
	"github.com/lendledger/lendledger/internal/application/agreement"
	"github.com/lendledger/lendledger/internal/application/audit"
	"github.com/lendledger/lendledger/internal/application/auth"
	"github.com/lendledger/lendledger/internal/application/notification"
	"github.com/lendledger/lendledger/internal/application/repayment"
	"github.com/lendledger/lendledger/internal/application/user"
	"github.com/lendledger/lendledger/internal/infrastructure/postgres"
	"github.com/lendledger/lendledger/internal/infrastructure/sse"
	"github.com/lendledger/lendledger/internal/migrations"
)

const auditKeyHex = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
const jwtSecret = "integration-secret"

type testEnv struct {
	server   *httptest.Server
	pool     *pgxpool.Pool
	auditSvc *audit.Service
	creditor uuid.UUID
	debtor   uuid.UUID
	admin    uuid.UUID
}

func TestMoneyLoanLifecycleIntegration(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()

	itemID := env.seedItem(t, "MONEY")
	stream := env.openStream(t, env.creditor)

	var created struct {
		Agreement struct {
			AgreementID string `json:"agreementId"`
			Status      string `json:"status"`
		} `json:"agreement"`
	}
	status := env.call(t, http.MethodPost, "/v1/agreements", env.creditor, "USER", map[string]interface{}{
		"itemId":    itemID,
		"debtorId":  env.debtor,
		"principal": "10000.00",
		"dueAt":     time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"terms":     "two installments",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create agreement status %d", status)
	}
	base := "/v1/agreements/" + created.Agreement.AgreementID

	if status := env.call(t, http.MethodPost, base+"/accept", env.creditor, "USER", nil, nil); status != http.StatusForbidden {
		t.Fatalf("creditor accept status %d, want 403", status)
	}
	if status := env.call(t, http.MethodPost, base+"/accept", env.debtor, "USER", nil, nil); status != http.StatusOK {
		t.Fatalf("accept status %d", status)
	}
	if ev := stream.next(t); !strings.Contains(ev, "AGREEMENT_ACCEPTED") {
		t.Fatalf("unexpected event: %s", ev)
	}
	if got := env.itemStatus(t, itemID); got != "ON_LOAN" {
		t.Fatalf("item status %s, want ON_LOAN", got)
	}

	if status := env.call(t, http.MethodPost, base+"/transactions", env.debtor, "USER", map[string]string{"amount": "12000"}, nil); status != http.StatusConflict {
		t.Fatalf("over-repayment status %d, want 409", status)
	}

	for _, amount := range []string{"6000", "4000"} {
		var tx struct {
			Transaction struct {
				TransactionID string `json:"transactionId"`
			} `json:"transaction"`
			Settled bool `json:"settled"`
		}
		if status := env.call(t, http.MethodPost, base+"/transactions", env.debtor, "USER", map[string]string{"amount": amount}, &tx); status != http.StatusCreated {
			t.Fatalf("create transaction status %d", status)
		}
		if ev := stream.next(t); !strings.Contains(ev, "REPAYMENT_REQUESTED") {
			t.Fatalf("unexpected event: %s", ev)
		}
		if status := env.call(t, http.MethodPost, "/v1/transactions/"+tx.Transaction.TransactionID+"/confirm", env.creditor, "USER", nil, &tx); status != http.StatusOK {
			t.Fatalf("confirm status %d", status)
		}
		if settled := amount == "4000"; tx.Settled != settled {
			t.Fatalf("settled=%v after %s", tx.Settled, amount)
		}
	}

	var details struct {
		Agreement struct {
			Status string `json:"status"`
		} `json:"agreement"`
		Ledger struct {
			Remaining decimal.Decimal `json:"remaining"`
		} `json:"ledger"`
	}
	if status := env.call(t, http.MethodGet, base, env.debtor, "USER", nil, &details); status != http.StatusOK {
		t.Fatalf("get status %d", status)
	}
	if details.Agreement.Status != "COMPLETED" || !details.Ledger.Remaining.IsZero() {
		t.Fatalf("unexpected details: %+v", details)
	}
	if got := env.itemStatus(t, itemID); got != "AVAILABLE" {
		t.Fatalf("item status %s, want AVAILABLE", got)
	}

	env.auditSvc.Wait()
	var trail struct {
		Events []struct {
			Action   string `json:"action"`
			Verified bool   `json:"verified"`
		} `json:"events"`
	}
	if status := env.call(t, http.MethodGet, "/v1/admin/agreements/"+created.Agreement.AgreementID+"/audit", env.admin, "ADMIN", nil, &trail); status != http.StatusOK {
		t.Fatalf("audit status %d", status)
	}
	if len(trail.Events) < 6 {
		t.Fatalf("expected at least 6 audit events, got %d", len(trail.Events))
	}
	for _, ev := range trail.Events {
		if !ev.Verified {
			t.Fatalf("audit event %s not verified", ev.Action)
		}
	}
}

func TestOverdueSweepIntegration(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()

	itemID := env.seedItem(t, "OBJECT")
	var created struct {
		Agreement struct {
			AgreementID string `json:"agreementId"`
		} `json:"agreement"`
	}
	env.call(t, http.MethodPost, "/v1/agreements", env.creditor, "USER", map[string]interface{}{
		"itemId":   itemID,
		"debtorId": env.debtor,
		"dueAt":    time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}, &created)
	env.call(t, http.MethodPost, "/v1/agreements/"+created.Agreement.AgreementID+"/accept", env.debtor, "USER", nil, nil)

	if _, err := env.pool.Exec(context.Background(),
		`UPDATE agreements SET due_at = NOW() - INTERVAL '1 day' WHERE agreement_id = $1`, created.Agreement.AgreementID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	if status := env.call(t, http.MethodPost, "/v1/admin/overdue/run", env.creditor, "USER", nil, nil); status != http.StatusForbidden {
		t.Fatalf("non-admin sweep status %d", status)
	}
	var run struct {
		Processed int `json:"processed"`
	}
	if status := env.call(t, http.MethodPost, "/v1/admin/overdue/run", env.admin, "ADMIN", nil, &run); status != http.StatusOK {
		t.Fatalf("sweep status %d", status)
	}
	if run.Processed < 1 {
		t.Fatalf("sweep processed %d, want at least 1", run.Processed)
	}
	var details struct {
		Agreement struct {
			Status string `json:"status"`
		} `json:"agreement"`
	}
	env.call(t, http.MethodGet, "/v1/agreements/"+created.Agreement.AgreementID, env.debtor, "USER", nil, &details)
	if details.Agreement.Status != "OVERDUE" {
		t.Fatalf("status %s, want OVERDUE", details.Agreement.Status)
	}
	if got := env.itemStatus(t, itemID); got != "ON_LOAN" {
		t.Fatalf("item status %s, want ON_LOAN", got)
	}
	if status := env.call(t, http.MethodPost, "/v1/agreements/"+created.Agreement.AgreementID+"/complete", env.creditor, "USER", nil, nil); status != http.StatusOK {
		t.Fatalf("complete overdue status %d", status)
	}
}

func (e *testEnv) call(t *testing.T, method, path string, as uuid.UUID, role string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, as, role))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, string(data))
		}
	}
	return resp.StatusCode
}

type eventStream struct {
	reader *bufio.Reader
}

func (e *testEnv) openStream(t *testing.T, as uuid.UUID) *eventStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.server.URL+"/v1/notifications/sse", nil)
	if err != nil {
		t.Fatalf("sse request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+signToken(t, as, "USER"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sse connect: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	s := &eventStream{reader: bufio.NewReader(resp.Body)}
	if line, err := s.reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("sse handshake: %q %v", line, err)
	}
	return s
}

func (s *eventStream) next(t *testing.T) string {
	t.Helper()
	done := make(chan string, 1)
	go func() {
		for {
			line, err := s.reader.ReadString('\n')
			if err != nil {
				done <- ""
				return
			}
			if strings.HasPrefix(line, "data: ") {
				done <- line
				return
			}
		}
	}()
	select {
	case line := <-done:
		return line
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sse event")
		return ""
	}
}

func signToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID.String(),
		Role:   auth.Role(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func newTestEnv(t *testing.T) (*testEnv, func()) {
	t.Helper()
	dsn := testDatabaseURL(t)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("db pool: %v", err)
	}

	src := postgres.MigrationSource(filepath.Join(repoRoot(t), "internal", "migrations"), migrations.Files)
	if err := postgres.RunMigrations(ctx, pool, src); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}

	logger := zerolog.Nop()
	userRepo := postgres.NewUserRepository(pool)
	txRunner := postgres.NewTxRunner(pool)
	sseHub := sse.NewHub()

	auditSvc := audit.NewService(postgres.NewAuditRepository(pool), logger, mustDecodeHex(t, auditKeyHex))
	notificationSvc := notification.NewService(sseHub, logger)
	agreementSvc := agreement.NewService(txRunner, auditSvc, notificationSvc, logger)
	repaymentSvc := repayment.NewService(txRunner, agreementSvc, auditSvc, notificationSvc, logger)
	authSvc := auth.NewService(userRepo, []byte(jwtSecret), "", logger)
	userSvc := user.NewService(userRepo, logger)

	apiServer := httpapi.NewServer(agreementSvc, repaymentSvc, auditSvc, authSvc, userSvc, sseHub, pool, logger)
	env := &testEnv{
		server:   httptest.NewServer(apiServer.Router()),
		pool:     pool,
		auditSvc: auditSvc,
	}
	env.creditor = env.seedUser(t, "carol")
	env.debtor = env.seedUser(t, "dave")
	env.admin = env.seedUser(t, "ops")

	cleanup := func() {
		sseHub.Stop()
		env.server.Close()
		auditSvc.Wait()
		pool.Close()
	}
	return env, cleanup
}

func (e *testEnv) seedUser(t *testing.T, username string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := e.pool.Exec(context.Background(),
		`INSERT INTO users (user_id, username, display_name) VALUES ($1, $2, $3)`, id, username+"-"+id.String()[:8], username); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func (e *testEnv) seedItem(t *testing.T, itemType string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if _, err := e.pool.Exec(context.Background(),
		`INSERT INTO items (item_id, owner_id, item_type, name) VALUES ($1, $2, $3, $4)`, id, e.creditor, itemType, "loaned "+strings.ToLower(itemType)); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return id
}

func (e *testEnv) itemStatus(t *testing.T, itemID uuid.UUID) string {
	t.Helper()
	var s string
	if err := e.pool.QueryRow(context.Background(), `SELECT status FROM items WHERE item_id = $1`, itemID).Scan(&s); err != nil {
		t.Fatalf("item status: %v", err)
	}
	return s
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	t.Skip("TEST_DATABASE_URL not set; skipping integration tests")
	return ""
}

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func mustDecodeHex(t *testing.T, value string) []byte {
	t.Helper()
	b, err := hex.DecodeString(value)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	return b
}
