package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"coin-ledger/config"
	"coin-ledger/internal/core/ports"
	"coin-ledger/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var internalCfg = config.InternalConfig{ClientID: "payments", SharedSecret: "s3cr3t"}

func hmacRouter(sigSvc ports.SignatureService, nonceStore ports.NonceStore) *gin.Engine {
	router := gin.New()
	router.POST("/test", HMACAuth(internalCfg, sigSvc, nonceStore, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"client": c.GetString(CtxClientID)})
	})
	return router
}

func signedRequest(clientID string, ts int64, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(body))
	req.Header.Set(HeaderClientID, clientID)
	req.Header.Set(HeaderSignature, "sig")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, "nonce-1")
	return req
}

func TestHMACAuth_MissingHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := hmacRouter(mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHMACAuth_UnknownClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := hmacRouter(mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("intruder", time.Now().Unix(), "{}"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHMACAuth_ExpiredTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := hmacRouter(mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("payments", time.Now().Add(-120*time.Second).Unix(), "{}"))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHMACAuth_ReplayedNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), "payments", "nonce-1", nonceTTL).Return(false, nil)
	router := hmacRouter(mocks.NewMockSignatureService(ctrl), nonceStore)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest("payments", time.Now().Unix(), "{}"))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHMACAuth_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), "payments", "nonce-1", nonceTTL).Return(true, nil)
	sigSvc.EXPECT().BuildCanonicalString(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("canonical")
	sigSvc.EXPECT().Verify("s3cr3t", "canonical", "sig").Return(false)

	w := httptest.NewRecorder()
	hmacRouter(sigSvc, nonceStore).ServeHTTP(w, signedRequest("payments", time.Now().Unix(), "{}"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHMACAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)

	nowTs := time.Now().Unix()
	body := `{"user_id":"user-1"}`

	nonceStore.EXPECT().CheckAndSet(gomock.Any(), "payments", "nonce-1", nonceTTL).Return(true, nil)
	sigSvc.EXPECT().BuildCanonicalString("POST", "/test", nowTs, "nonce-1", body).Return("canonical")
	sigSvc.EXPECT().Verify("s3cr3t", "canonical", "sig").Return(true)

	w := httptest.NewRecorder()
	hmacRouter(sigSvc, nonceStore).ServeHTTP(w, signedRequest("payments", nowTs, body))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"client":"payments"}`, w.Body.String())
}

func TestHMACAuth_NonceStoreDownFailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, assert.AnError)
	sigSvc.EXPECT().BuildCanonicalString(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("canonical")
	sigSvc.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(true)

	w := httptest.NewRecorder()
	hmacRouter(sigSvc, nonceStore).ServeHTTP(w, signedRequest("payments", time.Now().Unix(), "{}"))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	for _, header := range []string{"", "Bearer ", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad_token").Return(nil, assert.AnError)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("good_token").Return(&ports.TokenClaims{UserID: "user-42"}, nil)

	var captured string
	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		captured, _ = UserID(c)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", captured)
}

func TestRecovery_PanicRecovered(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_001", resp["error_code"])
}

func TestMaxBodySize(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodySize(16))
	r.POST("/test", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too large")
			return
		}
		c.String(http.StatusOK, string(b))
	})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"within limit", "hello world", http.StatusOK},
		{"exact limit", strings.Repeat("A", 16), http.StatusOK},
		{"exceeded", strings.Repeat("A", 100), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/jobs/:job", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/sweep_expired", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
