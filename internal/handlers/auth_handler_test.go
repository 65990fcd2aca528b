package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/middleware"
	"papertrade/internal/models"
	"papertrade/internal/services"
	"papertrade/internal/validator"
)

const (
	testSecret = "test-secret"
	testUserID = "01890a5d-ac96-774b-bcce-b302099a8057"
	otherUser  = "01890a5d-ac96-774b-bcce-b302099a8058"
)

// --- mock services ---

type mockUserService struct {
	registerFn     func(username, email, password string) (*models.User, error)
	authenticateFn func(email, password string) (*models.User, error)
	getUserByIDFn  func(id string) (*models.User, error)
	addBalanceFn   func(userID string, amount decimal.Decimal) (*models.User, error)
}

func (m *mockUserService) Register(_ context.Context, username, email, password string) (*models.User, error) {
	if m.registerFn != nil {
		return m.registerFn(username, email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) AddBalance(_ context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	if m.addBalanceFn != nil {
		return m.addBalanceFn(userID, amount)
	}
	return &models.User{}, nil
}

var _ services.UserServicer = (*mockUserService)(nil)

type auditEntry struct {
	userID, action, resourceType, resourceID string
}

type mockAuditService struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (m *mockAuditService) Log(userID, action, resourceType, resourceID, _ string, _ map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{userID, action, resourceType, resourceID})
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.action
	}
	return out
}

var _ services.AuditServicer = (*mockAuditService)(nil)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/register", handler.Register)
	r.POST("/auth/login", handler.Login)
	return r
}

// injectUserID simulates a verified bearer token for uid.
func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func parseJSONArray(t *testing.T, rec *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	var result []interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON array: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testUser() *models.User {
	return &models.User{
		Base:     models.Base{ID: testUserID},
		Username: "alice",
		Email:    "alice@example.com",
		Balance:  money("150000"),
	}
}

// --- tests ---

func TestAuthHandler_Register(t *testing.T) {
	t.Run("returns 200 with token on success", func(t *testing.T) {
		audit := &mockAuditService{}
		userSvc := &mockUserService{
			registerFn: func(username, email, _ string) (*models.User, error) {
				u := testUser()
				u.Username, u.Email = username, email
				return u, nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, audit, testSecret, time.Hour))

		rec := doRequest(r, http.MethodPost, "/auth/register",
			`{"username":"alice","email":"alice@example.com","password":"password123"}`)

		assertStatus(t, rec, http.StatusOK)
		body := parseJSON(t, rec)
		if body["message"] != "Registration successful" {
			t.Errorf("unexpected message %v", body["message"])
		}
		if body["userId"] != testUserID || body["username"] != "alice" {
			t.Errorf("unexpected identity %v", body)
		}
		token, _ := body["token"].(string)
		claims, err := middleware.ParseToken(token, testSecret)
		if err != nil {
			t.Fatalf("expected a valid token: %v", err)
		}
		if claims.UserID != testUserID {
			t.Errorf("expected token subject %s, got %s", testUserID, claims.UserID)
		}
		if got := audit.actions(); len(got) != 1 || got[0] != "REGISTER" {
			t.Errorf("expected REGISTER audit entry, got %v", got)
		}
	})

	t.Run("returns 400 for invalid email", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}, testSecret, time.Hour))

		rec := doRequest(r, http.MethodPost, "/auth/register", `{"email":"not-an-email","password":"password123"}`)

		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 for duplicate email", func(t *testing.T) {
		userSvc := &mockUserService{
			registerFn: func(_, _, _ string) (*models.User, error) {
				return nil, apperrors.ErrDuplicateEmail
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, testSecret, time.Hour))

		rec := doRequest(r, http.MethodPost, "/auth/register", `{"email":"dup@example.com","password":"password123"}`)

		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_EMAIL")
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns identity and token", func(t *testing.T) {
		userSvc := &mockUserService{
			authenticateFn: func(email, password string) (*models.User, error) {
				if email != "alice@example.com" || password != "password123" {
					t.Errorf("unexpected credentials %s/%s", email, password)
				}
				return testUser(), nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, testSecret, time.Hour))

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"password123"}`)

		assertStatus(t, rec, http.StatusOK)
		body := parseJSON(t, rec)
		if body["userId"] != testUserID || body["email"] != "alice@example.com" {
			t.Errorf("unexpected body %v", body)
		}
		if tok, _ := body["token"].(string); tok == "" {
			t.Error("expected a token")
		}
	})

	t.Run("returns 400 for bad credentials", func(t *testing.T) {
		userSvc := &mockUserService{
			authenticateFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrInvalidCredentials
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}, testSecret, time.Hour))

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"wrong"}`)

		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_CREDENTIALS")
	})

	t.Run("returns 400 for missing password", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}, testSecret, time.Hour))

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"alice@example.com"}`)

		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}
