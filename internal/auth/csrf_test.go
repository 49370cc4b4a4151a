package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCSRFMiddleware_AllowsGET(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")

	router := gin.New()
	router.Use(CSRFMiddleware(secret, false))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// GET requests should be allowed without CSRF token
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 for GET request, got %d", rr.Code)
	}
}

func TestCSRFMiddleware_BlocksPOSTWithoutToken(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")

	router := gin.New()
	router.Use(CSRFMiddleware(secret, false))
	router.POST("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// POST without CSRF token should be blocked
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for POST without CSRF token, got %d", rr.Code)
	}
}

func TestCSRFMiddleware_SetsTokenInContext(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")

	var csrfToken string
	router := gin.New()
	router.Use(CSRFMiddleware(secret, false))
	router.GET("/test", func(c *gin.Context) {
		csrfToken = GetCSRFToken(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if csrfToken == "" {
		t.Error("Expected CSRF token to be set in context")
	}
}

func TestCSRFMiddleware_AcceptsFormToken(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!")

	router := gin.New()
	router.Use(CSRFMiddleware(secret, false))
	router.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, GetCSRFToken(c))
	})
	router.POST("/submit", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Fetch a token and its cookie from the form page.
	getReq := httptest.NewRequest(http.MethodGet, "/form", nil)
	getRR := httptest.NewRecorder()
	router.ServeHTTP(getRR, getReq)

	token := getRR.Body.String()
	if token == "" {
		t.Fatal("expected a CSRF token from the form page")
	}

	// Replay the token in the header alongside the cookie. Browser form
	// posts carry a same-origin Referer, and gorilla/csrf rejects plain-
	// HTTP unsafe requests without one.
	postReq := httptest.NewRequest(http.MethodPost, "/submit", nil)
	postReq.Header.Set("Referer", "http://example.com/form")
	postReq.Header.Set(CSRFTokenHeader, token)
	for _, c := range getRR.Result().Cookies() {
		postReq.AddCookie(c)
	}
	postRR := httptest.NewRecorder()
	router.ServeHTTP(postRR, postReq)

	if postRR.Code != http.StatusOK {
		t.Errorf("Expected 200 for POST with valid CSRF token, got %d", postRR.Code)
	}
}

func TestGetCSRFToken_NoToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	token := GetCSRFToken(c)
	if token != "" {
		t.Errorf("Expected empty token, got %s", token)
	}
}

func TestGetCSRFToken_WithToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set("csrf_token", "test-token-123")

	token := GetCSRFToken(c)
	if token != "test-token-123" {
		t.Errorf("Expected 'test-token-123', got '%s'", token)
	}
}

func TestCSRFTokenField_NoToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	field := CSRFTokenField(c)
	if field != "" {
		t.Errorf("Expected empty field, got '%s'", field)
	}
}

func TestCSRFTokenField_WithToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set("csrf_token", "abc123")

	field := string(CSRFTokenField(c))
	expected := `<input type="hidden" name="gorilla.csrf.Token" value="abc123">`
	if field != expected {
		t.Errorf("Expected '%s', got '%s'", expected, field)
	}
}

func TestCSRFErrorHandler_JSON(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Accept", "application/json")

	csrfErrorHandler(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rr.Code)
	}

	contentType := rr.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}
}

func TestCSRFErrorHandler_HTML(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Accept", "text/html")

	csrfErrorHandler(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rr.Code)
	}
}

func TestCSRFErrorHandler_RedirectsToReferer(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set("Referer", "/submit")

	csrfErrorHandler(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Errorf("Expected 303, got %d", rr.Code)
	}
}
