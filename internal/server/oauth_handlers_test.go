package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	claims map[string]*ProviderClaims
}

func (f *fakeVerifier) Verify(_ context.Context, credential string) (*ProviderClaims, error) {
	claims, ok := f.claims[credential]
	if !ok {
		return nil, fmt.Errorf("unknown credential")
	}
	return claims, nil
}

func TestOAuthLoginCreatesAccount(t *testing.T) {
	srv := newTestServer(t)
	srv.SetProviderVerifier(&fakeVerifier{claims: map[string]*ProviderClaims{
		"good-credential": {
			Subject:    "provider-sub-1",
			Email:      "sam@example.com",
			GivenName:  "Sam",
			FamilyName: "Taylor",
			Picture:    "https://example.com/avatar.png",
		},
	}})

	w := doJSON(t, srv, http.MethodPost, "/api/auth/oauth", "", map[string]string{
		"providerCredential": "good-credential",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["needsAdditionalDetails"])
	assert.NotEmpty(t, resp["token"])

	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "sam@example.com", user["email"])
	assert.Equal(t, "sam", user["username"])
	assert.Equal(t, "Sam", user["firstName"])
	assert.Equal(t, "https://example.com/avatar.png", user["avatarUrl"])

	// A second exchange finds the account and no longer asks for details.
	w = doJSON(t, srv, http.MethodPost, "/api/auth/oauth", "", map[string]string{
		"providerCredential": "good-credential",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["needsAdditionalDetails"])
}

func TestOAuthLoginRejectedCredential(t *testing.T) {
	srv := newTestServer(t)
	srv.SetProviderVerifier(&fakeVerifier{claims: map[string]*ProviderClaims{}})

	w := doJSON(t, srv, http.MethodPost, "/api/auth/oauth", "", map[string]string{
		"providerCredential": "bad-credential",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOAuthMatchesExistingPasswordAccount(t *testing.T) {
	srv := newTestServer(t)

	registerUser(t, srv, "tina@example.com", "Str0ng!pass")
	srv.SetProviderVerifier(&fakeVerifier{claims: map[string]*ProviderClaims{
		"tina-credential": {
			Subject: "provider-sub-2",
			Email:   "tina@example.com",
		},
	}})

	w := doJSON(t, srv, http.MethodPost, "/api/auth/oauth", "", map[string]string{
		"providerCredential": "tina-credential",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["needsAdditionalDetails"])

	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "Test", user["firstName"])
}

func TestTokenInfoVerifier(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id_token") {
		case "accepted":
			json.NewEncoder(w).Encode(ProviderClaims{
				Subject:  "sub-1",
				Email:    "uma@example.com",
				Audience: "taskdeck-client",
			})
		case "wrong-audience":
			json.NewEncoder(w).Encode(ProviderClaims{
				Subject:  "sub-2",
				Email:    "uma@example.com",
				Audience: "someone-else",
			})
		default:
			http.Error(w, `{"error":"invalid_token"}`, http.StatusBadRequest)
		}
	}))
	defer provider.Close()

	v := NewTokenInfoVerifier(provider.URL, "taskdeck-client")

	claims, err := v.Verify(context.Background(), "accepted")
	require.NoError(t, err)
	assert.Equal(t, "uma@example.com", claims.Email)

	_, err = v.Verify(context.Background(), "wrong-audience")
	assert.Error(t, err)

	_, err = v.Verify(context.Background(), "garbage")
	assert.Error(t, err)
}
