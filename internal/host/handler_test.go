package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clientbridge/clientbridge/internal/mediator"
	"github.com/clientbridge/clientbridge/internal/ops"
)

type fakeInvoker struct {
	reply   string
	err     error
	lastReq mediator.Request
	desc    mediator.Descriptor
	calls   int
}

func (f *fakeInvoker) Invoke(ctx context.Context, desc mediator.Descriptor, req mediator.Request) (string, error) {
	f.calls++
	f.desc = desc
	f.lastReq = req
	return f.reply, f.err
}

func newTestRouter(t *testing.T, invoker *fakeInvoker, mws ...func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	for _, mw := range mws {
		r.Use(mw)
	}
	NewHandler(slog.Default(), invoker, ops.NewRegistry(time.Minute)).Register(r)
	return r
}

func TestInvokeBuildsRequestAndReturnsMessage(t *testing.T) {
	invoker := &fakeInvoker{reply: "2 notes for client C-1"}
	router := newTestRouter(t, invoker)

	body := `{"user":{"id":"u-1","name":"Ada","role":"sales"},"args":{"client_id":"C-1","limit":10}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/operations/get_all_notes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "2 notes for client C-1", resp["message"])

	require.Equal(t, "get_all_notes", invoker.desc.Name)
	require.Equal(t, "u-1", invoker.lastReq.Caller.ID)
	require.Equal(t, "sales", string(invoker.lastReq.Caller.Role))
	require.Equal(t, "C-1", invoker.lastReq.ClientID)
	require.Equal(t, []any{"C-1", 10}, invoker.lastReq.Params)
}

func TestInvokeUnknownOperation(t *testing.T) {
	invoker := &fakeInvoker{}
	router := newTestRouter(t, invoker)

	req := httptest.NewRequest(http.MethodPost, "/v1/operations/get_everything", strings.NewReader(`{"user":{"id":"u","role":"admin"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Zero(t, invoker.calls)
}

func TestInvokeRejectsMissingCaller(t *testing.T) {
	invoker := &fakeInvoker{}
	router := newTestRouter(t, invoker)

	for _, body := range []string{
		`{"args":{"client_id":"C-1"}}`,
		`{"user":{"id":"u-1"},"args":{"client_id":"C-1"}}`,
		`{"user":{"role":"sales"},"args":{"client_id":"C-1"}}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/operations/get_all_notes", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
	require.Zero(t, invoker.calls)
}

func TestInvokeAlwaysRepliesWithMessageText(t *testing.T) {
	// Even when the pipeline reports an internal error kind, the host sees
	// only the user-displayable message.
	invoker := &fakeInvoker{reply: "Access denied. You don't have permission to view this data.", err: &mediator.AuthorizationError{Reason: mediator.DeniedFunction}}
	router := newTestRouter(t, invoker)

	req := httptest.NewRequest(http.MethodPost, "/v1/operations/get_all_notes", strings.NewReader(`{"user":{"id":"u-1","role":"readonly"},"args":{"client_id":"C-1"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Access denied")
	require.NotContains(t, rec.Body.String(), "mediator:")
}

func TestListOperations(t *testing.T) {
	router := newTestRouter(t, &fakeInvoker{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/operations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "get_client_summary")
}

func TestBearerAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("host-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	invoker := &fakeInvoker{reply: "ok"}
	router := newTestRouter(t, invoker, MiddlewareStack(MiddlewareConfig{
		Logger:    slog.Default(),
		TokenHash: string(hash),
	})...)

	body := `{"user":{"id":"u-1","role":"admin"},"args":{"client_id":"C-1"}}`

	req := httptest.NewRequest(http.MethodPost, "/v1/operations/get_all_notes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/operations/get_all_notes", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/operations/get_all_notes", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer host-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Health stays open for probes.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
