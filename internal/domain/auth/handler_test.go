package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpay/smartpay-api/internal/middleware"
	"github.com/smartpay/smartpay-api/internal/pkg/response"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, jwtSvc, revoked := newTestService(newFakeUserRepo())
	r := chi.NewRouter()
	r.Mount("/api/users", NewHandler(svc).Routes(middleware.Auth(jwtSvc, revoked)))
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSignupLoginProfileLogout(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodPost, "/api/users/signup", "", validSignup())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var signup AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &signup))
	assert.NotContains(t, rr.Body.String(), "hash")

	rr = doJSON(t, h, http.MethodPost, "/api/users/login", "", LoginRequest{Email: "priya@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rr.Code)
	var login AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))

	rr = doJSON(t, h, http.MethodGet, "/api/users/profile", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var profile UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
	assert.Equal(t, signup.User.ID, profile.ID)

	rr = doJSON(t, h, http.MethodPost, "/api/users/logout", login.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/users/profile", login.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// other sessions stay valid
	rr = doJSON(t, h, http.MethodGet, "/api/users/profile", signup.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSignupErrors(t *testing.T) {
	h := newTestRouter(t)

	rr := doJSON(t, h, http.MethodPost, "/api/users/signup", "", validSignup())
	require.Equal(t, http.StatusCreated, rr.Code)

	cases := []struct {
		name   string
		mutate func(*SignupRequest)
		status int
		code   string
		field  string
	}{
		{"duplicate email", func(r *SignupRequest) {}, http.StatusConflict, "EMAIL_EXISTS", ""},
		{"short password", func(r *SignupRequest) { r.Email = "a@example.com"; r.Password = "12345" }, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "password"},
		{"alpha pin", func(r *SignupRequest) { r.Email = "b@example.com"; r.PIN = "12ab" }, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "pin"},
		{"long pin", func(r *SignupRequest) { r.Email = "c@example.com"; r.PIN = "1234567" }, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "pin"},
		{"bad mobile", func(r *SignupRequest) { r.Email = "d@example.com"; r.MobileNumber = "12345" }, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "mobile_number"},
		{"bad email", func(r *SignupRequest) { r.Email = "not-an-email" }, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "email"},
		{"blank name", func(r *SignupRequest) { r.Email = "e@example.com"; r.Name = "   " }, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := validSignup()
			c.mutate(req)
			rr := doJSON(t, h, http.MethodPost, "/api/users/signup", "", req)
			assert.Equal(t, c.status, rr.Code, rr.Body.String())

			var body response.ErrorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, c.code, body.Code)
			assert.NotEmpty(t, body.Detail)
			if c.field != "" {
				assert.Contains(t, body.Fields, c.field)
			}
		})
	}

	rr = doJSON(t, h, http.MethodPost, "/api/users/signup", "", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/users/signup", "", validSignup()).Code)

	rr := doJSON(t, h, http.MethodPost, "/api/users/login", "", LoginRequest{Email: "priya@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_CREDENTIALS", body.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
