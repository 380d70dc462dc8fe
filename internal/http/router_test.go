package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftform/internal/platform/metrics"
	"nftform/internal/registration/handler"
	"nftform/internal/registration/models"
	"nftform/internal/registration/service"
	"nftform/internal/registration/store"
	audit "nftform/pkg/platform/audit"
	"nftform/pkg/platform/audit/publisher"
	auditmemory "nftform/pkg/platform/audit/store/memory"
	tu "nftform/pkg/testutil"
)

// countingStore records how often storage is touched.
type countingStore struct {
	*store.InMemoryStore
	calls atomic.Int32
}

func (c *countingStore) Create(ctx context.Context, r *models.Record) error {
	c.calls.Add(1)
	return c.InMemoryStore.Create(ctx, r)
}

func (c *countingStore) FindByEmail(ctx context.Context, email string) (*models.Record, error) {
	c.calls.Add(1)
	return c.InMemoryStore.FindByEmail(ctx, email)
}

func (c *countingStore) FindByEmailAndCode(ctx context.Context, email, code string) (*models.Record, error) {
	c.calls.Add(1)
	return c.InMemoryStore.FindByEmailAndCode(ctx, email, code)
}

type outbox struct {
	mu   sync.Mutex
	sent []models.AccessCodeNotification
	err  error
}

func (o *outbox) SendAccessCode(_ context.Context, n models.AccessCodeNotification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
	return o.err
}

type fixture struct {
	router  http.Handler
	store   *countingStore
	outbox  *outbox
	audit   *auditmemory.InMemoryStore
	metrics *metrics.HTTPMetrics
}

func newFixture(t *testing.T, checks map[string]HealthCheck) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:   &countingStore{InMemoryStore: store.NewInMemory()},
		outbox:  &outbox{},
		audit:   auditmemory.NewInMemoryStore(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	svc := service.New(f.store, f.outbox,
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher.NewPublisher(f.audit)),
	)
	f.router = NewRouter(handler.New(svc, logger), logger, f.metrics, checks)
	return f
}

var accessCodePattern = regexp.MustCompile(`^[A-Z]{10}$`)

func register(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	rr := tu.DoRequest(router, tu.NewJSONRequest(t, http.MethodPost, "/entry-form", map[string]string{
		"email": email, "name": "A", "prompt": "p", "twitter": "@a",
	}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := tu.UnmarshalResponse[map[string]string](t, rr)
	return (*resp)["accessCode"]
}

func TestRegistrationScenarios(t *testing.T) {
	tu.Given(t, "a fresh store", func(t *testing.T) {
		f := newFixture(t, nil)
		var code string

		tu.When(t, "a@x.com registers", func(t *testing.T) {
			code = register(t, f.router, "a@x.com")

			tu.Then(t, "a 10-letter uppercase code is returned and emailed", func(t *testing.T) {
				assert.Regexp(t, accessCodePattern, code)
				require.Len(t, f.outbox.sent, 1)
				assert.Equal(t, code, f.outbox.sent[0].AccessCode)
				assert.Equal(t, "a@x.com", f.outbox.sent[0].Email)
			})
		})

		tu.When(t, "a@x.com registers again", func(t *testing.T) {
			rr := tu.DoRequest(f.router, tu.NewJSONRequest(t, http.MethodPost, "/entry-form", map[string]string{
				"email": "A@X.com", "name": "B", "prompt": "q", "twitter": "@b",
			}))

			tu.Then(t, "it is rejected and nothing is emailed", func(t *testing.T) {
				tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "email exists")
				assert.Len(t, f.outbox.sent, 1)
			})
		})

		tu.When(t, "existence is checked", func(t *testing.T) {
			found := tu.DoRequest(f.router, tu.NewJSONRequest(t, http.MethodPost, "/check-email", map[string]string{"email": "a@x.com"}))
			missing := tu.DoRequest(f.router, tu.NewJSONRequest(t, http.MethodPost, "/check-email", map[string]string{"email": "b@x.com"}))

			tu.Then(t, "registered is 200 and unknown is 404", func(t *testing.T) {
				tu.AssertStatusOK(t, found)
				tu.AssertJSONContains(t, found, "success", "it does")
				tu.AssertStatusAndError(t, missing, http.StatusNotFound, "email not found")
			})
		})

		tu.When(t, "the prompt is recovered", func(t *testing.T) {
			ok := tu.DoRequest(f.router, tu.NewJSONRequest(t, http.MethodPost, "/recover-prompt", map[string]string{
				"email": "a@x.com", "accesscode": code,
			}))
			wrong := tu.DoRequest(f.router, tu.NewJSONRequest(t, http.MethodPost, "/recover-prompt", map[string]string{
				"email": "a@x.com", "accesscode": "AAAAAAAAAA",
			}))

			tu.Then(t, "the right code releases the prompt and a wrong one does not", func(t *testing.T) {
				tu.AssertStatusOK(t, ok)
				tu.AssertJSONContains(t, ok, "prompt", "p")
				tu.AssertStatusAndError(t, wrong, http.StatusBadRequest, "No email exists")
			})

			tu.Then(t, "both attempts are audited without the raw email", func(t *testing.T) {
				succeeded, _ := f.audit.ListByAction(context.Background(), audit.EventRecoverySucceeded)
				failed, _ := f.audit.ListByAction(context.Background(), audit.EventRecoveryFailed)
				require.Len(t, succeeded, 1)
				require.Len(t, failed, 1)
				assert.Equal(t, audit.HashSubject("a@x.com"), failed[0].Subject)
				assert.Equal(t, audit.CategorySecurity, failed[0].Category)
				assert.NotEmpty(t, failed[0].RequestID)
			})
		})
	})
}

func TestPreflightTouchesNoStorage(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/entry-form", "/check-email", "/recover-prompt", "/unknown"} {
		rr := tu.DoRequest(f.router, tu.NewRequest(t, http.MethodOptions, path))

		assert.Equal(t, http.StatusNoContent, rr.Code, path)
		assert.Empty(t, rr.Body.String(), path)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"), path)
	}
	assert.Equal(t, int32(0), f.store.calls.Load())
}

func TestNotificationFailureStillReturnsCode(t *testing.T) {
	f := newFixture(t, nil)
	f.outbox.err = errors.New("brevo returned status 401")

	code := register(t, f.router, "c@x.com")
	assert.Regexp(t, accessCodePattern, code)
}

func TestEveryResponseCarriesCORSAndRequestID(t *testing.T) {
	f := newFixture(t, nil)

	rr := tu.DoRequest(f.router, tu.NewRequestWithBody(t, http.MethodPost, "/check-email", `nope`))

	tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "wrong fields")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestUnsupportedMethodAndUnknownPath(t *testing.T) {
	f := newFixture(t, nil)

	rr := tu.DoRequest(f.router, tu.NewRequest(t, http.MethodDelete, "/recover-prompt"))
	tu.AssertStatusAndError(t, rr, http.StatusBadRequest, "only POST allowed")

	rr = tu.DoRequest(f.router, tu.NewRequest(t, http.MethodPost, "/nope"))
	tu.AssertStatusAndError(t, rr, http.StatusNotFound, "not found")
}

func TestRequestMetricsAreRecordedPerRoute(t *testing.T) {
	f := newFixture(t, nil)

	register(t, f.router, "m@x.com")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("/entry-form", http.MethodPost, "200")))
}

func TestHealthz(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		f := newFixture(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		})
		rr := tu.DoRequest(f.router, tu.NewRequest(t, http.MethodGet, "/healthz"))
		tu.AssertStatusOK(t, rr)
		tu.AssertJSONContains(t, rr, "database", "up")
	})

	t.Run("a dependency down", func(t *testing.T) {
		f := newFixture(t, map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
		})
		rr := tu.DoRequest(f.router, tu.NewRequest(t, http.MethodGet, "/healthz"))
		tu.AssertStatus(t, rr, http.StatusServiceUnavailable)
		tu.AssertJSONContains(t, rr, "redis", "down")
	})
}
