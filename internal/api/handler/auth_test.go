package handler_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/signon/internal/api/handler"
	"github.com/daap14/signon/internal/auth"
)

func TestAuthHandler_SignIn(t *testing.T) {
	tests := []struct {
		name         string
		password     string
		wantLocation string
		wantSignedIn bool
	}{
		{"valid credentials", "secret", "http://example.com/home", true},
		{"wrong password", "nope", "http://example.com/login", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module := setupModule(t)
			sess := anonymous()
			req := withService(module, formRequest("http://example.com/signin", url.Values{
				"username":   {"alice"},
				"password":   {tt.password},
				"successUrl": {"http://example.com/home"},
				"errorUrl":   {"http://example.com/login"},
			}), sess)
			w := httptest.NewRecorder()

			handler.NewAuthHandler().SignIn(w, req)

			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
			authenticated, _ := sess.Namespace(auth.SessionNamespace).Bool("authenticated")
			assert.Equal(t, tt.wantSignedIn, authenticated)
		})
	}
}

func TestAuthHandler_SignOut(t *testing.T) {
	module := setupModule(t)
	sess := signedIn("alice")
	req := withService(module, formRequest("http://example.com/signout", url.Values{
		"successUrl": {"http://example.com/bye"},
	}), sess)
	w := httptest.NewRecorder()

	handler.NewAuthHandler().SignOut(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "http://example.com/bye", w.Header().Get("Location"))
	authenticated, _ := sess.Namespace(auth.SessionNamespace).Bool("authenticated")
	assert.False(t, authenticated)
}

func TestAuthHandler_InvalidForm(t *testing.T) {
	module := setupModule(t)
	req := httptest.NewRequest(http.MethodPost, "http://example.com/signin", strings.NewReader("%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = withService(module, req, anonymous())
	w := httptest.NewRecorder()

	handler.NewAuthHandler().SignIn(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_WithoutService(t *testing.T) {
	w := httptest.NewRecorder()

	handler.NewAuthHandler().SignIn(w, formRequest("http://example.com/signin", url.Values{}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
