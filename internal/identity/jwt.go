package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	firebaseJWKSURL      = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
)

// JWTConfig configures a JWTVerifier. At least one of Secret or JWKSURL
// must be set.
type JWTConfig struct {
	Secret            string
	JWKSURL           string
	Issuer            string
	Audience          string
	FirebaseProjectID string
	HTTPClient        *http.Client
}

// JWTVerifier verifies HS256 tokens signed with a shared secret and RS256
// tokens signed with keys published at a JWKS URL
type JWTVerifier struct {
	secret   []byte
	keys     *keySet
	issuer   string
	audience string
	methods  []string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewJWTVerifier creates a verifier. A Firebase project id fills in the
// issuer, audience and key URL used by Firebase Authentication when they
// are not set explicitly.
func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	if project := strings.TrimSpace(cfg.FirebaseProjectID); project != "" {
		if cfg.Issuer == "" {
			cfg.Issuer = firebaseIssuerPrefix + project
		}
		if cfg.Audience == "" {
			cfg.Audience = project
		}
		if cfg.JWKSURL == "" && cfg.Secret == "" {
			cfg.JWKSURL = firebaseJWKSURL
		}
	}

	v := &JWTVerifier{issuer: cfg.Issuer, audience: cfg.Audience}
	if cfg.Secret != "" {
		v.secret = []byte(cfg.Secret)
		v.methods = append(v.methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.JWKSURL != "" {
		client := cfg.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Second}
		}
		v.keys = newKeySet(cfg.JWKSURL, client)
		v.methods = append(v.methods, jwt.SigningMethodRS256.Alg())
	}
	if len(v.methods) == 0 {
		return nil, errors.New("jwt verifier needs a secret or a JWKS URL")
	}
	return v, nil
}

// Verify parses and validates token
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &tokenClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			return v.secret, nil
		case jwt.SigningMethodRS256.Alg():
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing key id")
			}
			return v.keys.key(ctx, kid)
		}
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Identity{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}
