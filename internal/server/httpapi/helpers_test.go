package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/server/admission"
	"github.com/dmitrijs2005/taskmanager/internal/server/captcha"
	"github.com/dmitrijs2005/taskmanager/internal/server/hasher"
	"github.com/dmitrijs2005/taskmanager/internal/server/mail"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/dmitrijs2005/taskmanager/internal/server/session"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureDispatcher struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (d *captureDispatcher) Send(_ context.Context, msg mail.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return nil
}

var resetTokenRe = regexp.MustCompile(`token=([0-9a-f]{64})`)

func (d *captureDispatcher) lastToken(t *testing.T) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.sent)
	m := resetTokenRe.FindStringSubmatch(d.sent[len(d.sent)-1].Body)
	require.Len(t, m, 2)
	return m[1]
}

const (
	aliceEmail    = "alice@example.com"
	alicePassword = "OldPassw0rd!"
	adminEmail    = "root@example.com"
	adminPassword = "R00t!Secret"
)

type testEnv struct {
	clock  *fakeClock
	repo   *accounts.MemoryRepository
	mail   *captureDispatcher
	admin  *services.AdminService
	server *HTTPServer

	alice *models.Account
	root  *models.Account
}

func newTestEnv(t *testing.T, customize ...func(*Deps)) *testEnv {
	t.Helper()

	e := &testEnv{
		clock: &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		mail:  &captureDispatcher{},
	}
	e.repo = accounts.NewMemoryRepository(e.clock.Now)

	h, err := hasher.New(hasher.Config{Pepper: []byte("pepper"), Cost: bcrypt.MinCost})
	require.NoError(t, err)
	issuer, err := session.NewIssuer(session.Config{Secret: []byte("secret"), Now: e.clock.Now})
	require.NoError(t, err)

	opts := services.Options{ResetURLBase: "http://localhost:3000/reset-password", Now: e.clock.Now}
	auth, err := services.NewAuthService(e.repo, h, issuer, opts)
	require.NoError(t, err)
	e.admin = services.NewAdminService(e.repo, h, e.mail, opts)

	loginGate, err := admission.NewMemoryGate(admission.Login(), 0, e.clock.Now)
	require.NoError(t, err)
	generalGate, err := admission.NewMemoryGate(admission.General(), 0, e.clock.Now)
	require.NoError(t, err)

	deps := Deps{
		Auth:           auth,
		Reset:          services.NewResetService(e.repo, h, e.mail, opts),
		Admin:          e.admin,
		Cookie:         issuer.Cookie(),
		LoginGate:      loginGate,
		GeneralGate:    generalGate,
		Captcha:        captcha.StaticVerifier{Token: "human"},
		Failures:       captcha.NewFailureTracker(3, time.Hour),
		AllowedOrigins: []string{"http://localhost:3000"},
		MetricsEnabled: true,
	}
	for _, fn := range customize {
		fn(&deps)
	}
	e.server = NewHTTPServer(":0", deps)

	ctx := context.Background()
	e.alice, err = e.admin.Register(ctx, services.NewAccount{Name: "Alice", Email: aliceEmail, Password: alicePassword, Title: "Engineer", Role: "developer"})
	require.NoError(t, err)
	e.root, err = e.admin.Register(ctx, services.NewAccount{Name: "Root", Email: adminEmail, Password: adminPassword, Privileged: true})
	require.NoError(t, err)

	return e
}

type reqOpt func(*http.Request)

func from(ip string) reqOpt {
	return func(r *http.Request) { r.RemoteAddr = ip + ":40000" }
}

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (e *testEnv) do(t *testing.T, method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email, password string, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": email, "password": password}, opts...)
}

func (e *testEnv) sessionCookie(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	rec := e.login(t, email, password, from("198.51.100.200"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return cookieNamed(t, rec, "token")
}

func cookieNamed(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
