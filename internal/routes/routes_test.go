package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixoo-edu/fixoo_api/internal/config"
	"github.com/fixoo-edu/fixoo_api/internal/logging"
	"github.com/fixoo-edu/fixoo_api/internal/notification"
	"github.com/fixoo-edu/fixoo_api/internal/verification"
)

type outbox struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (o *outbox) Send(_ context.Context, m notification.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

type testServer struct {
	app    *fiber.App
	mr     *miniredis.Miniredis
	outbox *outbox
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	cfg := config.Config{
		AppName:         "Fixoo",
		AppEnv:          "test",
		IdempotencyTTL:  time.Hour,
		JWTSecret:       "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		OTP:             config.OTPConfig{TTL: 600 * time.Second, ConfirmationTTL: 600 * time.Second, Length: 6, MaxAttempts: 5},
		Security:        config.SecurityConfig{BcryptCost: 4, LoginPerMinute: 100, OTPSendPerMinute: 100},
	}
	logger := logging.Discard()
	box := &outbox{}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	require.NoError(t, Setup(app, Deps{
		Cfg:      cfg,
		Cache:    cache,
		Logger:   logger,
		Notifier: box,
		OTPOptions: []verification.Option{
			verification.WithCodeGenerator(func(int) (string, error) { return "482913", nil }),
		},
	}))
	return testServer{app: app, mr: mr, outbox: box}
}

type reply struct {
	status int
	body   map[string]any
	raw    string
	resp   *http.Response
}

func (s testServer) do(t *testing.T, method, path, token string, body any) reply {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(payload))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	r := reply{status: resp.StatusCode, raw: string(raw), resp: resp}
	_ = json.Unmarshal(raw, &r.body)
	return r
}

const phone = "+998901234567"

func registerAndLogin(t *testing.T, s testServer, device string) (access, refresh string) {
	t.Helper()
	r := s.do(t, fiber.MethodPost, "/api/verification/phone/send", "", fiber.Map{"purpose": "register", "phone": phone})
	require.Equal(t, http.StatusCreated, r.status, r.raw)
	r = s.do(t, fiber.MethodPost, "/api/verification/phone/verify", "", fiber.Map{"purpose": "register", "phone": phone, "otp": "482913"})
	require.Equal(t, http.StatusOK, r.status, r.raw)
	r = s.do(t, fiber.MethodPost, "/api/auth/register/phone", "", fiber.Map{
		"phone": phone, "password": "correct", "fullName": "Sardor", "deviceName": device,
	})
	require.Equal(t, http.StatusCreated, r.status, r.raw)
	r = s.do(t, fiber.MethodPost, "/api/auth/login/phone", "", fiber.Map{"phone": phone, "password": "correct", "deviceName": device})
	require.Equal(t, http.StatusOK, r.status, r.raw)
	return r.body["accessToken"].(string), r.body["refreshToken"].(string)
}

func TestRegistrationFlow(t *testing.T) {
	s := newTestServer(t)

	r := s.do(t, fiber.MethodPost, "/api/verification/phone/send", "", fiber.Map{"type": "register", "phone": phone})
	require.Equal(t, http.StatusCreated, r.status, r.raw)
	assert.Equal(t, "Confirmation OTP code send", r.body["message"])
	assert.NotContains(t, r.raw, "482913")
	require.Len(t, s.outbox.sent, 1)

	r = s.do(t, fiber.MethodPost, "/api/verification/phone/send", "", fiber.Map{"type": "register", "phone": phone})
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, "Code already sent to user", r.body["message"])

	r = s.do(t, fiber.MethodPost, "/api/auth/register/phone", "", fiber.Map{"phone": phone, "password": "p", "deviceName": "web"})
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = s.do(t, fiber.MethodPost, "/api/verification/phone/verify", "", fiber.Map{"type": "register", "phone": phone, "otp": "000000"})
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, "Invalid OTP code", r.body["message"])
	assert.EqualValues(t, 400, r.body["statusCode"])
	assert.Equal(t, "Bad Request", r.body["error"])

	r = s.do(t, fiber.MethodPost, "/api/verification/phone/verify", "", fiber.Map{"type": "register", "phone": phone, "otp": "482913"})
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, true, r.body["verified"])

	r = s.do(t, fiber.MethodPost, "/api/verification/phone/verify", "", fiber.Map{"type": "register", "phone": phone, "otp": "482913"})
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = s.do(t, fiber.MethodPost, "/api/auth/register/phone", "", fiber.Map{
		"phone": phone, "password": "correct", "fullName": "Sardor", "deviceName": "iPhone13",
	})
	require.Equal(t, http.StatusCreated, r.status, r.raw)
	user := r.body["user"].(map[string]any)
	assert.Equal(t, "STUDENT", user["role"])
	assert.Equal(t, phone, user["phone"])
	assert.NotContains(t, r.raw, "password")

	// Flag consumed: a retry is unverified, never a second row.
	r = s.do(t, fiber.MethodPost, "/api/auth/register/phone", "", fiber.Map{
		"phone": phone, "password": "correct", "fullName": "Sardor", "deviceName": "iPhone13",
	})
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, "Phone not verified or verification expired", r.body["message"])

	r = s.do(t, fiber.MethodPost, "/api/verification/phone/send", "", fiber.Map{"type": "register", "phone": phone})
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, "Phone already used", r.body["message"])
}

func TestLoginIsGeneric(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s, "iPhone13")

	wrong := s.do(t, fiber.MethodPost, "/api/auth/login/phone", "", fiber.Map{"phone": phone, "password": "bad", "deviceName": "x"})
	unknown := s.do(t, fiber.MethodPost, "/api/auth/login/phone", "", fiber.Map{"phone": "+998900000000", "password": "bad", "deviceName": "x"})
	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.Equal(t, wrong.status, unknown.status)
	assert.Equal(t, wrong.body["message"], unknown.body["message"])
}

func TestDeviceRemovalRevokesRefresh(t *testing.T) {
	s := newTestServer(t)
	access, refresh := registerAndLogin(t, s, "iPhone13")

	r := s.do(t, fiber.MethodGet, "/api/device", access, nil)
	require.Equal(t, http.StatusOK, r.status)
	assert.EqualValues(t, 1, r.body["count"])
	assert.Equal(t, []any{"iPhone13"}, r.body["devices"])

	r = s.do(t, fiber.MethodPost, "/api/auth/refreshToken", "", fiber.Map{"token": refresh, "deviceToken": "iPhone13"})
	require.Equal(t, http.StatusOK, r.status, r.raw)
	assert.NotEmpty(t, r.body["accessToken"])

	r = s.do(t, fiber.MethodDelete, "/api/device/iPhone13", access, nil)
	require.Equal(t, http.StatusOK, r.status, r.raw)
	assert.EqualValues(t, 0, r.body["remainingDevices"])

	r = s.do(t, fiber.MethodDelete, "/api/device/iPhone13", access, nil)
	assert.Equal(t, http.StatusNotFound, r.status)

	r = s.do(t, fiber.MethodPost, "/api/auth/refreshToken", "", fiber.Map{"token": refresh, "deviceToken": "iPhone13"})
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Equal(t, "Invalid or expired refresh token", r.body["message"])
}

func TestRefreshFromCookie(t *testing.T) {
	s := newTestServer(t)
	_, refresh := registerAndLogin(t, s, "web")

	req := httptest.NewRequest(fiber.MethodPost, "/api/auth/refreshToken", strings.NewReader(`{"deviceToken":"web"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResetPasswordFlow(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s, "web")

	r := s.do(t, fiber.MethodPost, "/api/verification/phone/send", "", fiber.Map{"type": "reset_password", "phone": "+998900000000"})
	assert.Equal(t, http.StatusNotFound, r.status)

	r = s.do(t, fiber.MethodPost, "/api/auth/resetPassword/phone", "", fiber.Map{"phone": phone, "otp": "482913", "password": "fresh"})
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = s.do(t, fiber.MethodPost, "/api/verification/phone/send", "", fiber.Map{"type": "reset_password", "phone": phone})
	require.Equal(t, http.StatusCreated, r.status, r.raw)
	r = s.do(t, fiber.MethodPost, "/api/verification/phone/verify", "", fiber.Map{"type": "reset_password", "phone": phone, "otp": "482913"})
	require.Equal(t, http.StatusOK, r.status, r.raw)
	r = s.do(t, fiber.MethodPost, "/api/auth/resetPassword/phone", "", fiber.Map{"phone": phone, "otp": "482913", "password": "fresh"})
	require.Equal(t, http.StatusOK, r.status, r.raw)

	r = s.do(t, fiber.MethodPost, "/api/auth/login/phone", "", fiber.Map{"phone": phone, "password": "fresh", "deviceName": "web"})
	assert.Equal(t, http.StatusOK, r.status)
}

func TestProfileAndRoleGuard(t *testing.T) {
	s := newTestServer(t)
	access, _ := registerAndLogin(t, s, "web")

	r := s.do(t, fiber.MethodGet, "/api/profile", access, nil)
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, phone, r.body["phone"])

	r = s.do(t, fiber.MethodPatch, "/api/profile", access, fiber.Map{"fullName": "Sardor A."})
	require.Equal(t, http.StatusOK, r.status)

	r = s.do(t, fiber.MethodPatch, "/api/profile/password", access, fiber.Map{"password": "bad", "newPassword": "n"})
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, "Current password is incorrect", r.body["message"])

	r = s.do(t, fiber.MethodPost, "/api/verification/email/send", "", fiber.Map{"type": "edit_phone", "email": "sardor@gmail.com"})
	require.Equal(t, http.StatusCreated, r.status, r.raw)
	assert.True(t, s.mr.Exists("otp:edemail:code:sardor@gmail.com"))
	r = s.do(t, fiber.MethodPost, "/api/verification/email/verify", "", fiber.Map{"type": "edit_email", "email": "sardor@gmail.com", "otp": "482913"})
	require.Equal(t, http.StatusOK, r.status, r.raw)
	r = s.do(t, fiber.MethodPatch, "/api/profile/email", access, fiber.Map{"email": "sardor@gmail.com"})
	require.Equal(t, http.StatusOK, r.status, r.raw)

	r = s.do(t, fiber.MethodGet, "/api/users", access, nil)
	assert.Equal(t, http.StatusForbidden, r.status)
	r = s.do(t, fiber.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, r.status)

	r = s.do(t, fiber.MethodGet, "/api/users/mentors", "", nil)
	assert.Equal(t, http.StatusOK, r.status)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	r := s.do(t, fiber.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, r.status)
	assert.JSONEq(t, `{"postgres":"memory","redis":"ok","notifications":{}}`, mustJSON(t, r.body["status"]))
}

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, notification.Message) error {
	return errors.New("provider down")
}

func TestHealthReportsOpenBreaker(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	sms := notification.NewGuard(failingNotifier{}, notification.GuardConfig{Name: "sms", MaxFailures: 1, RatePerSecond: 100}, nil)
	require.Error(t, sms.Send(context.Background(), notification.Message{Channel: notification.ChannelSMS, Destination: phone}))

	app := fiber.New()
	RegisterHealthRoutes(app, Deps{Cache: cache}, map[string]*notification.Guard{"sms": sms})
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status struct {
			Notifications map[string]string `json:"notifications"`
		} `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"sms": "open"}, body.Status.Notifications)
}

func TestNewNotifierGuardsConfiguredProviders(t *testing.T) {
	cfg := config.Config{SMS: config.SMSConfig{APIURL: "http://sms.invalid/send", Token: "t"}}
	_, guards := newNotifier(cfg, logging.Discard())
	require.Contains(t, guards, "sms")
	assert.Equal(t, "closed", guards["sms"].State())
	assert.NotContains(t, guards, "email")
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}
