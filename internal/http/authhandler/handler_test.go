package authhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"roomrelay/internal/services/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]string // username -> password

func (f fakeUsers) Register(_ context.Context, username, password string) (string, error) {
	if _, ok := f[username]; ok {
		return "", users.ErrUserExists
	}
	f[username] = password
	return "tok-" + username, nil
}

func (f fakeUsers) Login(_ context.Context, username, password string) (string, error) {
	if pw, ok := f[username]; !ok || pw != password {
		return "", users.ErrInvalidCredentials
	}
	return "tok-" + username, nil
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(fakeUsers{}).Register(r.Group("/api"))

	w := post(r, "/api/auth/register", `{"username":"alice","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var tok TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.Equal(t, TokenResponse{Token: "tok-alice", Username: "alice"}, tok)

	w = post(r, "/api/auth/register", `{"username":"alice","password":"correct-horse"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	w = post(r, "/api/auth/login", `{"username":"alice","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = post(r, "/api/auth/login", `{"username":"alice","password":"wrong-horse"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_Validation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(fakeUsers{}).Register(r.Group("/api"))

	for _, body := range []string{
		`{}`,
		`{"username":"al","password":"correct-horse"}`,
		`{"username":"alice","password":"short"}`,
		`{"username":"al ice","password":"correct-horse"}`,
	} {
		w := post(r, "/api/auth/register", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
