package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/middlewares"
	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testOrg = "0b8f2a52-7a4c-4a57-9a55-1f0b7b6f3c11"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.AuthMiddleware())
	RegisterRoutes(r)
	r.NoRoute(NotFoundHandler)
	return r
}

// signedIn caches the session user in miniredis and returns a bearer token,
// so requests get past the session middleware without a database.
func signedIn(t *testing.T, userId int, role models.UserRole, active bool) string {
	t.Helper()
	mr := miniredis.RunT(t)
	config.SetRedisDB(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { config.SetRedisDB(nil) })

	user := &models.User{
		ID:             userId,
		OrganizationId: testOrg,
		Name:           "Test User",
		Email:          "test@example.com",
		Role:           role,
		IsActive:       &active,
	}
	require.NoError(t, utils.StoreRedis(user, userId))

	token, err := utils.JwtGenerate(userId, testOrg, string(role))
	require.NoError(t, err)
	return token
}

func do(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{utils.ErrUnauthorized, http.StatusUnauthorized},
		{utils.ErrForbidden, http.StatusForbidden},
		{utils.ErrNotFound, http.StatusNotFound},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: amount must be greater than zero", utils.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: invoice INV-1 is already paid", utils.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("%w: overlapping appointment", utils.ErrConflict), http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestHealthz(t *testing.T) {
	w := do(newTestRouter(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	w := do(newTestRouter(), http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", errorBody(t, w))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/clients", "/cases", "/invoices", "/dashboard", "/me"} {
		w := do(r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestDisabledUserIsForbidden(t *testing.T) {
	token := signedIn(t, 11, models.UserRoleStaff, false)

	w := do(newTestRouter(), http.MethodGet, "/clients", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecordPayment_RejectsNonPositiveAmount(t *testing.T) {
	token := signedIn(t, 11, models.UserRoleStaff, true)
	r := newTestRouter()

	for _, amount := range []string{"-50", "0"} {
		body := `{"amount":"` + amount + `","payment_date":"2026-03-01T00:00:00Z","method":"CASH"}`
		w := do(r, http.MethodPost, "/invoices/1/payments", token, body)

		assert.Equal(t, http.StatusBadRequest, w.Code, amount)
		assert.Contains(t, errorBody(t, w), "amount must be greater than zero")
	}
}

func TestRecordPayment_BadInput(t *testing.T) {
	token := signedIn(t, 11, models.UserRoleStaff, true)
	r := newTestRouter()

	w := do(r, http.MethodPost, "/invoices/abc/payments", token, `{"amount":"10"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid id", errorBody(t, w))

	w = do(r, http.MethodPost, "/invoices/1/payments", token, `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.HasPrefix(errorBody(t, w), "invalid request body"))
}

func TestSequenceRejectsUnknownKind(t *testing.T) {
	token := signedIn(t, 11, models.UserRoleAdmin, true)

	w := do(newTestRouter(), http.MethodGet, "/ops/sequences/ORDER", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutboxStatusRequiresEntity(t *testing.T) {
	token := signedIn(t, 11, models.UserRoleAdmin, true)

	w := do(newTestRouter(), http.MethodGet, "/ops/outbox?entity_type=invoice", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReprocessNeedsAdmin(t *testing.T) {
	token := signedIn(t, 11, models.UserRoleLawyer, true)

	w := do(newTestRouter(), http.MethodPost, "/ops/outbox/reprocess", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSetUserActiveRequiresFlag(t *testing.T) {
	token := signedIn(t, 11, models.UserRoleAdmin, true)

	w := do(newTestRouter(), http.MethodPut, "/users/12/active", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "is_active is required", errorBody(t, w))
}

func TestPubSub_AcksMalformedMessages(t *testing.T) {
	r := newTestRouter()

	// not JSON at all
	w := do(r, http.MethodPost, "/pubsub", "", "garbage")
	assert.Equal(t, http.StatusNoContent, w.Code)

	// valid envelope, event without an organization
	data := base64.StdEncoding.EncodeToString([]byte(`{"id":5,"entity_type":"payment"}`))
	envelope := `{"message":{"data":"` + data + `","id":"m-1"},"subscription":"s"}`
	w = do(r, http.MethodPost, "/pubsub", "", envelope)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPubSub_ProductionRequiresPushToken(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("PUBSUB_PUSH_TOKEN", "")
	data := base64.StdEncoding.EncodeToString([]byte(`{"id":5,"organization_id":"` + testOrg + `","entity_type":"task"}`))
	envelope := `{"message":{"data":"` + data + `","id":"m-2"},"subscription":"s"}`

	w := do(newTestRouter(), http.MethodPost, "/pubsub", "", envelope)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPubSub_RejectsWrongPushToken(t *testing.T) {
	t.Setenv("PUBSUB_PUSH_TOKEN", "s3cret")
	r := newTestRouter()

	w := do(r, http.MethodPost, "/pubsub?token=nope", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/pubsub", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// accepted, then acked as malformed
	w = do(r, http.MethodPost, "/pubsub?token=s3cret", "", "garbage")
	assert.Equal(t, http.StatusNoContent, w.Code)
}
