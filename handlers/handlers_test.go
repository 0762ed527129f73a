package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aidirectory/apperr"
	"aidirectory/cache"
	"aidirectory/config"
	"aidirectory/middleware"
	"aidirectory/models"
	"aidirectory/response"
	"aidirectory/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingNotifier struct {
	registered []string
	subscribed []string
	canceled   []bool
}

func (n *recordingNotifier) UserRegistered(u *models.User) {
	n.registered = append(n.registered, u.Email)
}

func (n *recordingNotifier) Subscribed(_ *models.User, p services.Plan, _ *models.Subscription, _ *models.PaymentTransaction) {
	n.subscribed = append(n.subscribed, p.ID)
}

func (n *recordingNotifier) Canceled(_ *models.User, _ *models.Subscription, immediate bool) {
	n.canceled = append(n.canceled, immediate)
}

type memKV struct {
	data map[string]string
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

const testPassword = "password123"

type testServer struct {
	r      *gin.Engine
	store  *memStore
	tokens *services.TokenIssuer
	notify *recordingNotifier
	kv     *memKV

	admin, alice, bob *models.User
	categoryID        int64
}

func newTestServer(t *testing.T, mutate ...func(*Deps)) *testServer {
	t.Helper()
	store := newMemStore()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	s := &testServer{
		store:  store,
		tokens: services.NewTokenIssuer("handler-secret", time.Hour, 24*time.Hour),
		notify: &recordingNotifier{},
		kv:     &memKV{data: map[string]string{}},
	}
	ctx := context.Background()
	for _, u := range []**models.User{&s.admin, &s.alice, &s.bob} {
		*u = &models.User{PasswordHash: string(hash), SubscriptionTier: models.TierFree}
	}
	s.admin.Email, s.admin.IsAdmin = "admin@example.com", true
	s.alice.Email, s.alice.FirstName = "alice@example.com", "Alice"
	s.bob.Email, s.bob.FirstName = "bob@example.com", "Bob"
	for _, u := range []*models.User{s.admin, s.alice, s.bob} {
		require.NoError(t, store.CreateUser(ctx, u))
	}
	cat := &models.Category{Name: "Writing"}
	require.NoError(t, store.CreateCategory(ctx, cat))
	s.categoryID = cat.ID
	require.NoError(t, store.CreateIndustry(ctx, &models.Industry{Name: "Retail"}))

	logger := zap.NewNop()
	d := Deps{
		Store:    store,
		DB:       pingFunc(func(context.Context) error { return nil }),
		Tokens:   s.tokens,
		Uploads:  services.NewUploader(t.TempDir(), 1<<20),
		Notify:   s.notify,
		Cache:    s.kv,
		CacheTTL: time.Minute,
		Features: config.Features{BillingEnabled: true, ExportEnabled: true},
		Logger:   logger,
	}
	for _, fn := range mutate {
		fn(&d)
	}
	auth := middleware.NewAuth(s.tokens, store, logger)
	s.r = NewRouter(NewAPI(d), auth, middleware.NewRateLimiter(1000, 1000, logger))
	return s
}

func (s *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := s.tokens.Issue(u.ID, u.Email, services.TokenAccess)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) form(t *testing.T, method, path, token string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) seedTool(t *testing.T, name string, level models.AccessLevel) *models.Tool {
	t.Helper()
	tool, err := s.store.CreateTool(context.Background(), models.ToolInput{
		Name: name, Description: name + " description", CategoryID: s.categoryID, AccessLevel: level,
	})
	require.NoError(t, err)
	return tool
}

type envelope[T any] struct {
	Success bool                `json:"success"`
	Data    T                   `json:"data"`
	Message string              `json:"message"`
	Error   *response.ErrorBody `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	env := decode[json.RawMessage](t, w)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, code, env.Error.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	body := gin.H{"email": "new@example.com", "password": "longenough", "first_name": "New", "last_name": "User"}

	w := s.do(http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[authResult](t, w)
	assert.Equal(t, models.TierFree, reg.Data.User.SubscriptionTier)
	assert.NotEmpty(t, reg.Data.AccessToken)
	assert.NotEmpty(t, reg.Data.RefreshToken)
	assert.Equal(t, []string{"new@example.com"}, s.notify.registered)

	assertError(t, s.do(http.MethodPost, "/api/v1/auth/register", "", body), http.StatusConflict, apperr.CodeUserExists)

	bad := gin.H{"email": "new@example.com", "password": "wrong-password"}
	assertError(t, s.do(http.MethodPost, "/api/v1/auth/login", "", bad), http.StatusUnauthorized, apperr.CodeInvalidCredentials)

	w = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "new@example.com", "password": "longenough"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[authResult](t, w)
	assert.Equal(t, reg.Data.User.ID, login.Data.User.ID)

	w = s.do(http.MethodPost, "/api/v1/auth/refresh", login.Data.RefreshToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	refreshed := decode[services.TokenPair](t, w)
	assert.NotEmpty(t, refreshed.Data.AccessToken)
	assert.Empty(t, refreshed.Data.RefreshToken)

	assertError(t, s.do(http.MethodPost, "/api/v1/auth/refresh", login.Data.AccessToken, nil), http.StatusUnauthorized, apperr.CodeInvalidToken)
}

func TestRegisterValidationDetails(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "not-an-email", "password": "short"})
	assertError(t, w, http.StatusBadRequest, apperr.CodeValidation)

	env := decode[json.RawMessage](t, w)
	assert.Contains(t, env.Error.Details, "email")
	assert.Contains(t, env.Error.Details, "password")
	assert.Contains(t, env.Error.Details, "first_name")
	assert.Contains(t, env.Error.Details, "last_name")
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.alice)

	wrong := gin.H{"current_password": "nope", "new_password": "brand-new-pass"}
	assertError(t, s.do(http.MethodPost, "/api/v1/auth/change-password", tok, wrong), http.StatusUnauthorized, apperr.CodeInvalidPassword)

	ok := gin.H{"current_password": testPassword, "new_password": "brand-new-pass"}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/change-password", tok, ok).Code)

	w := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": s.alice.Email, "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	assertError(t, s.do(http.MethodGet, "/api/v1/admin/dashboard", "", nil), http.StatusUnauthorized, apperr.CodeUnauthorized)
	assertError(t, s.do(http.MethodGet, "/api/v1/admin/dashboard", "garbage", nil), http.StatusUnauthorized, apperr.CodeUnauthorized)
	assertError(t, s.do(http.MethodGet, "/api/v1/admin/dashboard", s.token(t, s.alice), nil), http.StatusForbidden, apperr.CodeForbidden)
	assertError(t, s.do(http.MethodGet, "/api/v1/users", s.token(t, s.alice), nil), http.StatusForbidden, apperr.CodeForbidden)

	w := s.do(http.MethodGet, "/api/v1/admin/dashboard", s.token(t, s.admin), nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestDashboardIsCachedUntilInvalidated(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, s.admin)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/dashboard", admin, nil).Code)
	}
	assert.Equal(t, 1, s.store.dashboardCalls)
	assert.Contains(t, s.kv.data, cache.KeyDashboard)

	w := s.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d", s.bob.ID), admin, gin.H{"subscription_tier": "premium"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, s.kv.data, cache.KeyDashboard)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/dashboard", admin, nil).Code)
	assert.Equal(t, 2, s.store.dashboardCalls)
}

func TestRegisterInvalidatesDashboard(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, s.admin)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/dashboard", admin, nil).Code)
	require.Contains(t, s.kv.data, cache.KeyDashboard)

	body := gin.H{"email": "carol@example.com", "password": "longenough", "first_name": "Carol", "last_name": "Diaz"}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/auth/register", "", body).Code)
	assert.NotContains(t, s.kv.data, cache.KeyDashboard)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/dashboard", admin, nil).Code)
	assert.Equal(t, 2, s.store.dashboardCalls)
}

func TestAdminTierGrantEndsPaidSubscription(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.alice)
	admin := s.token(t, s.admin)

	w := s.do(http.MethodPost, "/api/v1/subscriptions/subscribe", tok, gin.H{"plan_id": "premium", "payment_method_id": "pm_1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d", s.alice.ID), admin, gin.H{"subscription_tier": "Business"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, sub := range s.store.subs {
		assert.Equal(t, models.SubscriptionCanceled, sub.Status)
	}

	w = s.do(http.MethodGet, "/api/v1/subscriptions/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[subscriptionView](t, w).Data
	assert.Equal(t, services.PlanBusiness, me.Plan.ID)
	assert.Nil(t, me.SubscriptionID)
	assert.Nil(t, me.CurrentPeriodEnd)

	w = s.do(http.MethodGet, "/api/v1/admin/subscriptions?status=active", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[subscriptionList](t, w).Data.Pagination.Total)
}

func TestBusinessOnlyToolAccess(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, s.admin)

	w := s.form(t, http.MethodPost, "/api/v1/tools", admin, map[string]string{
		"name":         "Forecaster",
		"description":  "Demand forecasting",
		"category_id":  fmt.Sprint(s.categoryID),
		"access_level": string(models.AccessBusiness),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tool := decode[models.Tool](t, w).Data
	path := fmt.Sprintf("/api/v1/tools/%d", tool.ID)

	assertError(t, s.do(http.MethodGet, path, "", nil), http.StatusUnauthorized, apperr.CodeAuthRequired)
	assertError(t, s.do(http.MethodGet, path, s.token(t, s.alice), nil), http.StatusForbidden, apperr.CodeSubscriptionRequired)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d", s.bob.ID), admin, gin.H{"subscription_tier": "Business"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.TierBusiness, decode[models.User](t, w).Data.SubscriptionTier)

	bob := s.token(t, s.bob)
	w = s.do(http.MethodPost, path+"/reviews", bob, gin.H{"rating": 5, "comment": "Spot on"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, path, bob, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	detail := decode[models.Tool](t, w).Data
	require.Len(t, detail.Reviews, 1)
	assert.Equal(t, 5.0, detail.Rating)

	// Alice is still Free.
	assertError(t, s.do(http.MethodGet, path, s.token(t, s.alice), nil), http.StatusForbidden, apperr.CodeSubscriptionRequired)
}

func TestPremiumToolHonoursLapsedSubscription(t *testing.T) {
	s := newTestServer(t)
	tool := s.seedTool(t, "Copywriter", models.AccessPremium)
	past := time.Now().Add(-time.Hour)
	s.store.users[s.alice.ID].SubscriptionTier = models.TierPremium
	s.store.users[s.alice.ID].SubscriptionEndDate = &past

	w := s.do(http.MethodGet, fmt.Sprintf("/api/v1/tools/%d", tool.ID), s.token(t, s.alice), nil)
	assertError(t, w, http.StatusForbidden, apperr.CodeSubscriptionRequired)
}

func TestReviewsRatingAndConflicts(t *testing.T) {
	s := newTestServer(t)
	tool := s.seedTool(t, "Summarizer", models.AccessPublic)
	path := fmt.Sprintf("/api/v1/tools/%d/reviews", tool.ID)
	for _, u := range []*models.User{s.alice, s.bob} {
		s.store.users[u.ID].SubscriptionTier = models.TierPremium
	}

	assertError(t, s.do(http.MethodPost, path, s.token(t, s.alice), gin.H{"rating": 9}), http.StatusBadRequest, apperr.CodeValidation)

	w := s.do(http.MethodPost, path, s.token(t, s.alice), gin.H{"rating": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	aliceReview := decode[models.Review](t, w).Data
	require.NotNil(t, aliceReview.User)
	assert.Equal(t, "Alice", aliceReview.User.FirstName)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, path, s.token(t, s.bob), gin.H{"rating": 5}).Code)
	assert.Equal(t, 4.5, s.store.tools[tool.ID].Rating)

	assertError(t, s.do(http.MethodPost, path, s.token(t, s.alice), gin.H{"rating": 1}), http.StatusConflict, apperr.CodeReviewExists)

	reviewPath := fmt.Sprintf("/api/v1/reviews/%d", aliceReview.ID)
	assertError(t, s.do(http.MethodPut, reviewPath, s.token(t, s.bob), gin.H{"rating": 1}), http.StatusForbidden, apperr.CodeForbidden)

	w = s.do(http.MethodPut, reviewPath, s.token(t, s.alice), gin.H{"rating": 1, "is_verified": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[models.Review](t, w).Data.IsVerified)
	assert.Equal(t, 3.0, s.store.tools[tool.ID].Rating)

	w = s.do(http.MethodPut, reviewPath+"/verify", s.token(t, s.admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[models.Review](t, w).Data.IsVerified)

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, reviewPath, s.token(t, s.admin), nil).Code)
	assert.Equal(t, 5.0, s.store.tools[tool.ID].Rating)

	w = s.do(http.MethodGet, path+"?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[reviewList](t, w).Data
	assert.Len(t, list.Reviews, 1)
	assert.Equal(t, 1, list.Pagination.Total)
}

func TestAdminReviewModeration(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	tool := s.seedTool(t, "Transcriber", models.AccessPublic)
	other := s.seedTool(t, "Captioner", models.AccessPublic)

	aliceReview := &models.Review{UserID: s.alice.ID, ToolID: tool.ID, Rating: 4}
	require.NoError(t, s.store.CreateReview(ctx, aliceReview))
	bobReview := &models.Review{UserID: s.bob.ID, ToolID: other.ID, Rating: 2}
	require.NoError(t, s.store.CreateReview(ctx, bobReview))
	verified := true
	_, err := s.store.UpdateReview(ctx, bobReview.ID, models.ReviewPatch{IsVerified: &verified})
	require.NoError(t, err)

	assertError(t, s.do(http.MethodGet, "/api/v1/admin/reviews", s.token(t, s.alice), nil), http.StatusForbidden, apperr.CodeForbidden)

	admin := s.token(t, s.admin)
	w := s.do(http.MethodGet, "/api/v1/admin/reviews", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	all := decode[reviewList](t, w).Data
	assert.Equal(t, 2, all.Pagination.Total)
	require.Len(t, all.Reviews, 2)
	assert.Equal(t, bobReview.ID, all.Reviews[0].ID)

	w = s.do(http.MethodGet, "/api/v1/admin/reviews?is_verified=false", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[reviewList](t, w).Data
	require.Len(t, pending.Reviews, 1)
	assert.Equal(t, aliceReview.ID, pending.Reviews[0].ID)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/admin/reviews?is_verified=true&tool_id=%d", other.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	done := decode[reviewList](t, w).Data
	require.Len(t, done.Reviews, 1)
	assert.Equal(t, bobReview.ID, done.Reviews[0].ID)

	w = s.do(http.MethodGet, "/api/v1/admin/reviews?limit=1&page=2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	paged := decode[reviewList](t, w).Data
	require.Len(t, paged.Reviews, 1)
	assert.Equal(t, models.Pagination{Total: 2, Page: 2, Limit: 1, Pages: 2}, paged.Pagination)

	assertError(t, s.do(http.MethodGet, "/api/v1/admin/reviews?is_verified=maybe", admin, nil), http.StatusBadRequest, apperr.CodeValidation)
	assertError(t, s.do(http.MethodGet, "/api/v1/admin/reviews?sort=length", admin, nil), http.StatusBadRequest, apperr.CodeValidation)
}

func TestGuidesWrittenByAnyUser(t *testing.T) {
	s := newTestServer(t)
	tool := s.seedTool(t, "Planner", models.AccessPublic)
	other := s.seedTool(t, "Scheduler", models.AccessPublic)
	alice := s.token(t, s.alice)
	body := gin.H{"tool_id": tool.ID, "title": "Getting started", "content": "Open the planner", "guide_type": "Tutorial"}

	assertError(t, s.do(http.MethodPost, "/api/v1/guides", "", body), http.StatusUnauthorized, apperr.CodeUnauthorized)

	w := s.do(http.MethodPost, "/api/v1/guides", alice, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	guide := decode[models.Guide](t, w).Data
	assert.Equal(t, tool.ID, guide.ToolID)
	require.NotNil(t, guide.AuthorID)
	assert.Equal(t, s.alice.ID, *guide.AuthorID)

	w = s.do(http.MethodPost, "/api/v1/guides", alice, gin.H{"title": "No tool", "content": "x"})
	assertError(t, w, http.StatusBadRequest, apperr.CodeValidation)
	assert.Contains(t, decode[json.RawMessage](t, w).Error.Details, "tool_id")

	missing := gin.H{"tool_id": 999, "title": "Ghost", "content": "x"}
	assertError(t, s.do(http.MethodPost, "/api/v1/guides", alice, missing), http.StatusNotFound, apperr.CodeToolNotFound)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/v1/guides", s.token(t, s.bob),
		gin.H{"tool_id": other.ID, "title": "Sync calendars", "content": "Connect an account"}).Code)

	w = s.do(http.MethodGet, "/api/v1/guides", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[guideList](t, w).Data
	assert.Equal(t, 2, list.Pagination.Total)
	require.Len(t, list.Guides, 2)
	assert.Equal(t, tool.ID, list.Guides[0].ToolID)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/guides?tool_id=%d", other.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[guideList](t, w).Data.Pagination.Total)
	assertError(t, s.do(http.MethodGet, "/api/v1/guides?tool_id=abc", "", nil), http.StatusBadRequest, apperr.CodeValidation)

	path := fmt.Sprintf("/api/v1/guides/%d", guide.ID)
	assertError(t, s.do(http.MethodPut, path, s.token(t, s.bob), gin.H{"title": "Mine now"}), http.StatusForbidden, apperr.CodeForbidden)

	w = s.do(http.MethodPut, path, alice, gin.H{"title": "First steps"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "First steps", decode[models.Guide](t, w).Data.Title)

	assertError(t, s.do(http.MethodDelete, path, s.token(t, s.bob), nil), http.StatusForbidden, apperr.CodeForbidden)
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, path, alice, nil).Code)
	assertError(t, s.do(http.MethodGet, path, "", nil), http.StatusNotFound, apperr.CodeGuideNotFound)
}

func TestFreeUserCannotReviewOrFavorite(t *testing.T) {
	s := newTestServer(t)
	tool := s.seedTool(t, "Translator", models.AccessPublic)
	tok := s.token(t, s.alice)

	assertError(t, s.do(http.MethodPost, fmt.Sprintf("/api/v1/tools/%d/reviews", tool.ID), tok, gin.H{"rating": 4}),
		http.StatusForbidden, apperr.CodeSubscriptionRequired)
	assertError(t, s.do(http.MethodPost, fmt.Sprintf("/api/v1/tools/%d/favorite", tool.ID), tok, nil),
		http.StatusForbidden, apperr.CodeSubscriptionRequired)
}

func TestListToolsPagination(t *testing.T) {
	s := newTestServer(t)
	for i := 1; i <= 12; i++ {
		s.seedTool(t, fmt.Sprintf("Tool %02d", i), models.AccessPublic)
	}

	w := s.do(http.MethodGet, "/api/v1/tools?page=2&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[toolList](t, w).Data
	require.Len(t, list.Tools, 5)
	assert.Equal(t, "Tool 06", list.Tools[0].Name)
	assert.Equal(t, models.Pagination{Total: 12, Page: 2, Limit: 5, Pages: 3}, list.Pagination)

	w = s.do(http.MethodGet, "/api/v1/tools?limit=1000&order=desc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[toolList](t, w).Data
	assert.Equal(t, models.MaxPageLimit, list.Pagination.Limit)
	assert.Equal(t, "Tool 12", list.Tools[0].Name)

	for _, q := range []string{"page=0", "page=abc", "limit=-1", "sort=price", "order=sideways", "access_level=Secret"} {
		assertError(t, s.do(http.MethodGet, "/api/v1/tools?"+q, "", nil), http.StatusBadRequest, apperr.CodeValidation)
	}
}

func TestCreateToolValidation(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, s.admin)

	w := s.form(t, http.MethodPost, "/api/v1/tools", admin, map[string]string{
		"category_id":         "x",
		"price_point_details": "{broken",
	})
	assertError(t, w, http.StatusBadRequest, apperr.CodeValidation)
	env := decode[json.RawMessage](t, w)
	for _, field := range []string{"name", "description", "category_id", "price_point_details"} {
		assert.Contains(t, env.Error.Details, field)
	}

	w = s.form(t, http.MethodPost, "/api/v1/tools", admin, map[string]string{
		"name": "Orphan", "description": "d", "category_id": "999",
	})
	assertError(t, w, http.StatusNotFound, apperr.CodeCategoryNotFound)

	w = s.form(t, http.MethodPost, "/api/v1/tools", admin, map[string]string{
		"name":        "Guided",
		"description": "d",
		"category_id": fmt.Sprint(s.categoryID),
		"guides":      `[{"title":"Start","content":"Step one","guide_type":"Tutorial"}]`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tool := decode[models.Tool](t, w).Data
	assert.Equal(t, models.AccessPublic, tool.AccessLevel)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/tools/%d/guides", tool.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Guide](t, w).Data, 1)
}

func TestDeleteToolCascades(t *testing.T) {
	s := newTestServer(t)
	tool := s.seedTool(t, "Doomed", models.AccessPublic)
	review := &models.Review{UserID: s.alice.ID, ToolID: tool.ID, Rating: 3}
	require.NoError(t, s.store.CreateReview(context.Background(), review))
	_, err := s.store.AddFavorite(context.Background(), s.alice.ID, tool.ID)
	require.NoError(t, err)

	assertError(t, s.do(http.MethodDelete, fmt.Sprintf("/api/v1/tools/%d", tool.ID), s.token(t, s.alice), nil),
		http.StatusForbidden, apperr.CodeForbidden)
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, fmt.Sprintf("/api/v1/tools/%d", tool.ID), s.token(t, s.admin), nil).Code)

	assertError(t, s.do(http.MethodGet, fmt.Sprintf("/api/v1/reviews/%d", review.ID), "", nil), http.StatusNotFound, apperr.CodeReviewNotFound)
	assertError(t, s.do(http.MethodGet, fmt.Sprintf("/api/v1/tools/%d", tool.ID), "", nil), http.StatusNotFound, apperr.CodeToolNotFound)
	assert.Empty(t, s.store.favorites)
}

func TestFavoritesAndExport(t *testing.T) {
	s := newTestServer(t)
	tool := s.seedTool(t, "Slides", models.AccessPublic)
	s.store.users[s.alice.ID].SubscriptionTier = models.TierPremium
	tok := s.token(t, s.alice)
	favPath := fmt.Sprintf("/api/v1/tools/%d/favorite", tool.ID)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, favPath, tok, nil).Code)
	assertError(t, s.do(http.MethodPost, favPath, tok, nil), http.StatusConflict, apperr.CodeFavoriteExists)
	assertError(t, s.do(http.MethodPost, "/api/v1/tools/999/favorite", tok, nil), http.StatusNotFound, apperr.CodeToolNotFound)

	w := s.do(http.MethodGet, "/api/v1/users/me/favorites", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[favoriteList](t, w).Data.Favorites, 1)

	w = s.do(http.MethodGet, "/api/v1/users/me/favorites/export", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment;"))
	assert.NotZero(t, w.Body.Len())

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, favPath, tok, nil).Code)
	assertError(t, s.do(http.MethodDelete, favPath, tok, nil), http.StatusNotFound, apperr.CodeFavoriteNotFound)
}

func TestExportDisabled(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.Features.ExportEnabled = false })
	s.store.users[s.alice.ID].SubscriptionTier = models.TierPremium
	w := s.do(http.MethodGet, "/api/v1/users/me/favorites/export", s.token(t, s.alice), nil)
	assertError(t, w, http.StatusNotFound, apperr.CodeExportDisabled)
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.alice)

	w := s.do(http.MethodGet, "/api/v1/subscriptions/plans", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]services.Plan](t, w).Data, 3)

	w = s.do(http.MethodGet, "/api/v1/subscriptions/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.PlanFree, decode[subscriptionView](t, w).Data.Plan.ID)

	assertError(t, s.do(http.MethodPost, "/api/v1/subscriptions/subscribe", tok, gin.H{"plan_id": "gold"}),
		http.StatusNotFound, apperr.CodePlanNotFound)
	assertError(t, s.do(http.MethodPost, "/api/v1/subscriptions/subscribe", tok, gin.H{}),
		http.StatusBadRequest, apperr.CodeValidation)

	w = s.do(http.MethodPost, "/api/v1/subscriptions/subscribe", tok, gin.H{"plan_id": "Premium", "payment_method_id": "pm_1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[subscriptionView](t, w).Data
	assert.Equal(t, services.PlanPremium, view.Plan.ID)
	require.NotNil(t, view.LastTransaction)
	assert.Equal(t, 9.99, view.LastTransaction.Amount)
	assert.Equal(t, models.TierPremium, s.store.users[s.alice.ID].SubscriptionTier)
	assert.Equal(t, []string{services.PlanPremium}, s.notify.subscribed)

	w = s.do(http.MethodGet, "/api/v1/subscriptions/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[subscriptionView](t, w).Data
	require.NotNil(t, me.SubscriptionID)
	require.NotNil(t, me.LastTransaction)

	w = s.do(http.MethodPost, "/api/v1/subscriptions/cancel", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[subscriptionView](t, w).Data.CancelAtPeriodEnd)
	assert.Equal(t, []bool{false}, s.notify.canceled)

	w = s.do(http.MethodPost, "/api/v1/subscriptions/cancel", tok, gin.H{"cancel_immediately": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.SubscriptionCanceled, decode[subscriptionView](t, w).Data.Status)
	assert.Equal(t, models.TierFree, s.store.users[s.alice.ID].SubscriptionTier)

	assertError(t, s.do(http.MethodPost, "/api/v1/subscriptions/cancel", tok, nil), http.StatusNotFound, apperr.CodeSubscriptionNotFound)

	w = s.do(http.MethodGet, "/api/v1/admin/subscriptions?status=canceled", s.token(t, s.admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[subscriptionList](t, w).Data.Pagination.Total)
}

func TestBillingDisabled(t *testing.T) {
	s := newTestServer(t, func(d *Deps) { d.Features.BillingEnabled = false })
	w := s.do(http.MethodPost, "/api/v1/subscriptions/subscribe", s.token(t, s.alice), gin.H{"plan_id": "premium"})
	assertError(t, w, http.StatusNotFound, apperr.CodeBillingDisabled)
}

func TestCategoryLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, s.admin)

	assertError(t, s.do(http.MethodPost, "/api/v1/categories", admin, gin.H{"name": "Writing"}), http.StatusConflict, apperr.CodeCategoryExists)

	s.seedTool(t, "Pen", models.AccessPublic)
	w := s.do(http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[[]models.Category](t, w).Data
	require.Len(t, cats, 1)
	assert.Equal(t, 1, cats[0].ToolCount)

	path := fmt.Sprintf("/api/v1/categories/%d", s.categoryID)
	assertError(t, s.do(http.MethodDelete, path, admin, nil), http.StatusConflict, apperr.CodeCategoryHasTools)
	assertError(t, s.do(http.MethodGet, "/api/v1/categories/999", "", nil), http.StatusNotFound, apperr.CodeCategoryNotFound)
	assertError(t, s.do(http.MethodGet, "/api/v1/categories/abc", "", nil), http.StatusBadRequest, apperr.CodeValidation)
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, s.admin)

	w := s.do(http.MethodGet, "/api/v1/users?search=alice", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decode[userList](t, w).Data
	require.Len(t, users.Users, 1)
	assert.Equal(t, s.alice.ID, users.Users[0].ID)

	assertError(t, s.do(http.MethodGet, "/api/v1/users?subscription_tier=gold", admin, nil), http.StatusBadRequest, apperr.CodeValidation)
	assertError(t, s.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d", s.bob.ID), admin, gin.H{"subscription_tier": "gold"}),
		http.StatusBadRequest, apperr.CodeValidation)

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", s.bob.ID), admin, nil).Code)
	assertError(t, s.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d", s.bob.ID), admin, nil), http.StatusNotFound, apperr.CodeUserNotFound)

	w = s.do(http.MethodGet, "/api/v1/admin/activity", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode[[]models.ActivityLog](t, w).Data
	require.NotEmpty(t, logs)
	assert.Equal(t, models.ActivityAdminDeleteUser, logs[0].ActivityType)
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.alice)

	w := s.do(http.MethodPut, "/api/v1/users/me", tok, gin.H{"company": "Acme", "job_title": "CTO"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Acme", decode[models.User](t, w).Data.Company)

	assertError(t, s.do(http.MethodPut, "/api/v1/users/me", tok, gin.H{"industry_id": 999}), http.StatusBadRequest, apperr.CodeValidation)

	w = s.do(http.MethodGet, "/api/v1/users/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CTO", decode[models.User](t, w).Data.JobTitle)
}

func TestStatsQueryBounds(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, s.admin)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/users/stats?days=7", admin, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/revenue/stats", admin, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/admin/tools/stats", admin, nil).Code)
	assertError(t, s.do(http.MethodGet, "/api/v1/admin/users/stats?days=1000", admin, nil), http.StatusBadRequest, apperr.CodeValidation)
}

func TestNoRouteAndNoMethod(t *testing.T) {
	s := newTestServer(t)
	assertError(t, s.do(http.MethodGet, "/api/v1/nothing-here", "", nil), http.StatusNotFound, apperr.CodeNotFound)
	assertError(t, s.do(http.MethodPatch, "/api/v1/categories", "", nil), http.StatusMethodNotAllowed, apperr.CodeMethodNotAllowed)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	ok := decode[map[string]any](t, w)
	assert.True(t, ok.Success)
	assert.Equal(t, "ok", ok.Data["status"])

	down := newTestServer(t, func(d *Deps) {
		d.DB = pingFunc(func(context.Context) error { return errors.New("connection refused") })
	})
	w = down.do(http.MethodGet, "/api/health", "", nil)
	assertError(t, w, http.StatusServiceUnavailable, apperr.CodeServiceUnavailable)
	env := decode[json.RawMessage](t, w)
	assert.Equal(t, "degraded", env.Error.Details["status"])
	assert.NotContains(t, w.Body.String(), "connection refused")
}
