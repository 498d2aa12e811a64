package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitKeysByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit())
	router.POST("/api/v1/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	// The auth limiter has a burst of 5; the sixth request from the same
	// address is rejected.
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestJWTAuthSetsWalletContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")

	var seenWallet string
	var seenAdmin bool
	router := gin.New()
	router.GET("/protected", JWTAuth(secret), func(c *gin.Context) {
		seenWallet = c.GetString("wallet_address")
		seenAdmin = c.GetBool("is_admin")
		c.Status(http.StatusOK)
	})

	token := signToken(t, secret, jwt.MapClaims{
		"wallet_address": "some-wallet",
		"is_admin":       true,
		"exp":            jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "some-wallet", seenWallet)
	assert.True(t, seenAdmin)
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")

	router := gin.New()
	router.GET("/protected", JWTAuth(secret), func(c *gin.Context) { c.Status(http.StatusOK) })

	// No header.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong signing key.
	token := signToken(t, []byte("other-secret"), jwt.MapClaims{
		"wallet_address": "some-wallet",
		"exp":            jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/admin", func(c *gin.Context) { c.Set("is_admin", false) }, AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/admin-ok", func(c *gin.Context) { c.Set("is_admin", true) }, AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin-ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
