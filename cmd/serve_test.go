package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/phonelink/internal/authz"
	"github.com/sells-group/phonelink/internal/backfill"
	"github.com/sells-group/phonelink/internal/directory"
	"github.com/sells-group/phonelink/internal/httputil"
	"github.com/sells-group/phonelink/internal/identity"
	"github.com/sells-group/phonelink/internal/lookup"
	"github.com/sells-group/phonelink/internal/metrics"
	"github.com/sells-group/phonelink/internal/model"
)

type testServer struct {
	handler  http.Handler
	dir      *directory.MemoryStore
	accounts *identity.MemoryStore
	tokens   *authz.TokenManager
}

func newTestServer(t *testing.T, staticDir string) *testServer {
	t.Helper()
	dir := directory.NewMemory(
		model.User{ID: "admin1", Name: "Root", Role: model.RoleAdmin},
		model.User{ID: "staff1", Name: "Staff", Role: "staff"},
		model.User{ID: "u1", Phone: "+886912345678", Name: "Amy", CommunityScope: "A101"},
		model.User{ID: "u2", Phone: "+886922222222", Email: "b@ex.com", Name: "Ben"},
	)
	accounts := identity.NewMemory()
	tokens, err := authz.NewTokenManager("test-secret-123", time.Hour, "phonelink")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	orch := backfill.New(accounts, dir,
		backfill.WithConcurrency(4),
		backfill.WithMetrics(m),
		backfill.WithPasswordFunc(func() (string, error) { return "TempPass!1", nil }),
	)

	h := buildMux(context.Background(), &serveDeps{
		Lookup:        lookup.NewService(dir, lookup.WithMetrics(m)),
		Orchestrator:  orch,
		Tokens:        tokens,
		Roles:         authz.NewDirectoryRoles(dir),
		Gatherer:      reg,
		DefaultDomain: "ex.com",
		StaticDir:     staticDir,
		CORSOrigins:   []string{"https://admin.example.com"},
	})
	return &testServer{handler: h, dir: dir, accounts: accounts, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		token, _, err := s.tokens.Mint(uid)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) httputil.ErrorDetail {
	t.Helper()
	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	rr := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestResolveEmailByPhone_Endpoint(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name       string
		phone      string
		wantStatus int
		wantKind   string
		wantEmail  string
	}{
		{name: "found", phone: "0922-222-222", wantStatus: http.StatusOK, wantEmail: "b@ex.com"},
		{name: "missing_phone", phone: "", wantStatus: http.StatusBadRequest, wantKind: "INVALID_ARGUMENT"},
		{name: "unknown_phone", phone: "0933333333", wantStatus: http.StatusNotFound, wantKind: "NOT_FOUND"},
		{name: "no_email", phone: "0912345678", wantStatus: http.StatusPreconditionFailed, wantKind: "FAILED_PRECONDITION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/v1/resolveEmailByPhone", "", map[string]string{"phone": tt.phone})
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, decodeError(t, rr).Status)
				return
			}
			var res model.Resolution
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
			assert.Equal(t, tt.wantEmail, res.Email)
			assert.Equal(t, "u2", res.ID)
		})
	}
}

func TestResolveEmailByPhone_MalformedBody(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/v1/resolveEmailByPhone", bytes.NewBufferString("{bad"))
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBackfillEndpoint_Authorization(t *testing.T) {
	s := newTestServer(t, "")

	rr := s.do(t, http.MethodPost, "/v1/backfillEmailsAndAuth", "", map[string]any{"dryRun": true})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodPost, "/v1/backfillEmailsAndAuth", "staff1", map[string]any{"dryRun": true})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeError(t, rr).Status)

	rr = s.do(t, http.MethodPost, "/v1/linkPhones", "ghost", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	assert.Zero(t, s.accounts.Calls())
}

func TestBackfillEndpoint_DryRunThenApply(t *testing.T) {
	s := newTestServer(t, "")

	rr := s.do(t, http.MethodPost, "/v1/backfillEmailsAndAuth", "admin1", map[string]any{"dryRun": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res model.BatchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Planned)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "p886912345678@ex.com", res.Items[0].Email)
	assert.Zero(t, s.accounts.Calls())

	rr = s.do(t, http.MethodPost, "/v1/backfillEmailsAndAuth", "admin1", map[string]any{"domain": "@corp.example"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Created)

	u, err := s.dir.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "p886912345678@corp.example", u.Email)
}

func TestBackfillEndpoint_NegativeLimit(t *testing.T) {
	s := newTestServer(t, "")
	rr := s.do(t, http.MethodPost, "/v1/backfillEmailsAndAuth", "admin1", map[string]any{"limit": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLinkPhonesEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	rr := s.do(t, http.MethodPost, "/v1/linkPhones", "admin1", map[string]any{"dryRun": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res model.BatchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Planned)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodPost, "/v1/resolveEmailByPhone", "", map[string]string{"phone": "0922222222"})

	rr := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "phonelink_")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodOptions, "/v1/backfillEmailsAndAuth", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, "https://admin.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSPAFallback(t *testing.T) {
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644))
	s := newTestServer(t, static)

	rr := s.do(t, http.MethodGet, "/app.js", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "console.log")

	rr = s.do(t, http.MethodGet, "/admin/users/42", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "app")

	rr = s.do(t, http.MethodGet, "/../../etc/passwd", "", nil)
	assert.NotContains(t, rr.Body.String(), "root:")

	rr = s.do(t, http.MethodPost, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSPAFallback_NoStaticDir(t *testing.T) {
	s := newTestServer(t, "")
	rr := s.do(t, http.MethodGet, "/anything", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rr).Status)
}

func TestResolvePort_FlagSet(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8080))
}

func TestResolvePort_FlagZero(t *testing.T) {
	assert.Equal(t, 8080, resolvePort(0, 8080))
}

func TestStartServer_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestServer(t, "")

	// Find a free port.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- startServer(ctx, s.handler, port)
	}()

	// Wait for server to be ready.
	var ready bool
	for i := 0; i < 30; i++ {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, ready, "server did not become ready in time")

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
