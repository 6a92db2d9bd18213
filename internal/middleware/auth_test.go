package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sagarchada-pai/task-management-system/internal/models"
)

const testSecret = "test-secret"

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

func createAuthTestUser(t *testing.T, db *gorm.DB, active, superuser bool) models.User {
	t.Helper()
	user := models.User{
		Email:          fmt.Sprintf("user-%v-%v@example.com", active, superuser),
		HashedPassword: "not-a-real-hash",
		IsActive:       active,
		IsSuperuser:    superuser,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func accessTokenFor(t *testing.T, userID uint, secret string) string {
	t.Helper()
	now := time.Now()
	return signToken(t, jwt.MapClaims{
		"sub": fmt.Sprintf("%d", userID),
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}, secret)
}

func authTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", RequireAuth(db, AuthConfig{Secret: testSecret}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller_id": CallerID(c)})
	})
	router.GET("/admin", RequireAuth(db, AuthConfig{Secret: testSecret}), RequireSuperuser(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doAuthRequest(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_ValidToken(t *testing.T) {
	db := setupAuthTestDB(t)
	user := createAuthTestUser(t, db, true, false)
	router := authTestRouter(db)

	token := accessTokenFor(t, user.ID, testSecret)
	w := doAuthRequest(router, "/protected", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if want := fmt.Sprintf("{\"caller_id\":%d}", user.ID); w.Body.String() != want {
		t.Errorf("got body %s, want %s", w.Body.String(), want)
	}
}

func TestRequireAuth_Rejections(t *testing.T) {
	db := setupAuthTestDB(t)
	active := createAuthTestUser(t, db, true, false)
	inactive := createAuthTestUser(t, db, false, false)
	router := authTestRouter(db)

	now := time.Now()
	refreshToken := signToken(t, jwt.MapClaims{
		"sub": fmt.Sprintf("%d", active.ID),
		"typ": "refresh",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}, testSecret)
	expiredToken := signToken(t, jwt.MapClaims{
		"sub": fmt.Sprintf("%d", active.ID),
		"iat": now.Add(-2 * time.Hour).Unix(),
		"exp": now.Add(-time.Hour).Unix(),
	}, testSecret)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc123"},
		{name: "malformed token", header: "Bearer not-a-token"},
		{name: "wrong secret", header: "Bearer " + accessTokenFor(t, active.ID, "other-secret")},
		{name: "expired token", header: "Bearer " + expiredToken},
		{name: "refresh token on resource path", header: "Bearer " + refreshToken},
		{name: "unknown user", header: "Bearer " + accessTokenFor(t, 999, testSecret)},
		{name: "inactive user", header: "Bearer " + accessTokenFor(t, inactive.ID, testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAuthRequest(router, "/protected", tt.header)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestRequireSuperuser(t *testing.T) {
	db := setupAuthTestDB(t)
	regular := createAuthTestUser(t, db, true, false)
	admin := createAuthTestUser(t, db, true, true)
	router := authTestRouter(db)

	w := doAuthRequest(router, "/admin", "Bearer "+accessTokenFor(t, regular.ID, testSecret))
	if w.Code != http.StatusForbidden {
		t.Errorf("regular user: expected 403, got %d", w.Code)
	}

	w = doAuthRequest(router, "/admin", "Bearer "+accessTokenFor(t, admin.ID, testSecret))
	if w.Code != http.StatusOK {
		t.Errorf("superuser: expected 200, got %d", w.Code)
	}
}

func TestCallerID_Unauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if id := CallerID(c); id != 0 {
		t.Errorf("expected 0 for unauthenticated context, got %d", id)
	}
	if user := CallerUser(c); user != nil {
		t.Errorf("expected nil caller, got %+v", user)
	}
}
