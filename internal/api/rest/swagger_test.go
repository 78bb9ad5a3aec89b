package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwagger_BasicAuthReturnsFilteredDocument(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "Str0ng!Passw0rd")
	env.grantAllow(t, "alice", "files", []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/swagger", nil)
	req.SetBasicAuth("alice", "Str0ng!Passw0rd")
	rec := newRequestRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc openAPIDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/files/list")
}

func TestSwagger_BearerTokenAlsoWorks(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "Str0ng!Passw0rd")
	env.grantAllow(t, "alice", "files", []string{"*"})

	loginReq := httptest.NewRequest(http.MethodPost, "/login", nil)
	loginReq.SetBasicAuth("alice", "Str0ng!Passw0rd")
	loginRec := newRequestRecorder()
	env.router.ServeHTTP(loginRec, loginReq)
	var loginResp loginResponse
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &loginResp))

	req := httptest.NewRequest(http.MethodGet, "/swagger", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	rec := newRequestRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSwagger_UserWithNoPolicySeesNoPaths(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "Str0ng!Passw0rd")

	req := httptest.NewRequest(http.MethodGet, "/swagger", nil)
	req.SetBasicAuth("bob", "Str0ng!Passw0rd")
	rec := newRequestRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc openAPIDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Empty(t, doc.Paths)
}

func TestSwagger_MissingCredentialsIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/swagger", nil)
	rec := newRequestRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSwagger_InvalidBearerTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/swagger", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := newRequestRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
