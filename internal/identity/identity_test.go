package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "firebase-uid-1",
		"email": "pat@example.com",
		"name":  "Pat",
		"iss":   "https://issuer.example.com",
		"aud":   "carecoins",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestJWTVerifierHS256(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{
		Secret:   "s3cret",
		Issuer:   "https://issuer.example.com",
		Audience: "carecoins",
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   func() string
		wantErr bool
	}{
		{
			name:  "valid",
			token: func() string { return signHS256(t, "s3cret", validClaims()) },
		},
		{
			name:    "wrong secret",
			token:   func() string { return signHS256(t, "other", validClaims()) },
			wantErr: true,
		},
		{
			name: "expired",
			token: func() string {
				c := validClaims()
				c["exp"] = time.Now().Add(-time.Hour).Unix()
				return signHS256(t, "s3cret", c)
			},
			wantErr: true,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := validClaims()
				c["iss"] = "https://evil.example.com"
				return signHS256(t, "s3cret", c)
			},
			wantErr: true,
		},
		{
			name: "wrong audience",
			token: func() string {
				c := validClaims()
				c["aud"] = "someone-else"
				return signHS256(t, "s3cret", c)
			},
			wantErr: true,
		},
		{
			name: "missing subject",
			token: func() string {
				c := validClaims()
				delete(c, "sub")
				return signHS256(t, "s3cret", c)
			},
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func() string { return "not-a-token" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tt.token())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Identity{Subject: "firebase-uid-1", Email: "pat@example.com", Name: "Pat"}, id)
		})
	}
}

func TestNewJWTVerifierRequiresKeys(t *testing.T) {
	_, err := NewJWTVerifier(JWTConfig{Issuer: "x"})
	assert.Error(t, err)
}

func TestFirebaseDefaults(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{FirebaseProjectID: "care-app"})
	require.NoError(t, err)
	assert.Equal(t, "https://securetoken.google.com/care-app", v.issuer)
	assert.Equal(t, "care-app", v.audience)
	require.NotNil(t, v.keys)
	assert.Equal(t, firebaseJWKSURL, v.keys.url)
}

func TestJWTVerifierRS256WithJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		json.NewEncoder(w).Encode(jwkSet{Keys: []jwkKey{{
			Kid: "key-1",
			Kty: "RSA",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer server.Close()

	v, err := NewJWTVerifier(JWTConfig{
		JWKSURL:  server.URL,
		Issuer:   "https://issuer.example.com",
		Audience: "carecoins",
	})
	require.NoError(t, err)

	sign := func(kid string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
		token.Header["kid"] = kid
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return signed
	}

	id, err := v.Verify(context.Background(), sign("key-1"))
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid-1", id.Subject)

	// Second verification is served from the cache
	_, err = v.Verify(context.Background(), sign("key-1"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))

	_, err = v.Verify(context.Background(), sign("unknown"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	// HS256 is not accepted when only a key set is configured
	_, err = v.Verify(context.Background(), signHS256(t, "s3cret", validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserInfoVerifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"sub":   "google-123",
			"email": "sam@example.com",
			"name":  "Sam",
		})
	}))
	defer server.Close()

	v := NewUserInfoVerifier(server.URL, server.Client())

	id, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, Identity{Subject: "google-123", Email: "sam@example.com", Name: "Sam"}, id)

	_, err = v.Verify(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
