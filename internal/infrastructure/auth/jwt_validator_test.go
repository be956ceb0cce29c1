package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/pulseboard/internal/domain/notification"
	"github.com/lllypuk/pulseboard/internal/infrastructure/auth"
)

const (
	testSecret = "test-secret"
	testKeyID  = "test-key-id"
)

func TestIssueAndValidateHMAC(t *testing.T) {
	v, err := auth.NewHMACValidator(auth.Config{Secret: testSecret, Issuer: "pulseboard", Audience: "web"})
	require.NoError(t, err)
	defer v.Close()

	token, err := auth.IssueToken(testSecret, "42", auth.TokenOptions{Issuer: "pulseboard", Audience: "web", TTL: time.Hour})
	require.NoError(t, err)

	claims, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, notification.UserID("42"), claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt, 5*time.Second)
}

func TestNewValidator_SelectsByConfig(t *testing.T) {
	_, err := auth.NewValidator(auth.Config{})
	require.ErrorIs(t, err, auth.ErrMissingSecret)

	v, err := auth.NewValidator(auth.Config{Secret: testSecret})
	require.NoError(t, err)
	require.NoError(t, v.Close())
}

func TestValidateHMAC_Failures(t *testing.T) {
	v, err := auth.NewHMACValidator(auth.Config{Secret: testSecret, Issuer: "pulseboard", Audience: "web", Leeway: time.Second})
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims, secret string) string {
		s, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, signErr)
		return s
	}
	valid := func() jwt.MapClaims {
		now := time.Now()
		return jwt.MapClaims{
			"sub": "42",
			"iss": "pulseboard",
			"aud": "web",
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
	}

	expired := valid()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := valid()
	wrongIssuer["iss"] = "someone-else"

	wrongAudience := valid()
	wrongAudience["aud"] = "mobile"

	noSubject := valid()
	delete(noSubject, "sub")

	noExpiry := valid()
	delete(noExpiry, "exp")

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: auth.ErrInvalidToken},
		{name: "garbage", token: "not.a.token", wantErr: auth.ErrInvalidToken},
		{name: "wrong secret", token: sign(valid(), "other"), wantErr: auth.ErrInvalidToken},
		{name: "expired", token: sign(expired, testSecret), wantErr: auth.ErrTokenExpired},
		{name: "wrong issuer", token: sign(wrongIssuer, testSecret), wantErr: auth.ErrInvalidIssuer},
		{name: "wrong audience", token: sign(wrongAudience, testSecret), wantErr: auth.ErrInvalidAudience},
		{name: "missing subject", token: sign(noSubject, testSecret), wantErr: auth.ErrMissingSubject},
		{name: "missing expiry", token: sign(noExpiry, testSecret), wantErr: auth.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, validateErr := v.Validate(context.Background(), tt.token)
			require.ErrorIs(t, validateErr, tt.wantErr)
		})
	}
}

func TestValidateHMAC_RejectsOtherAlgorithms(t *testing.T) {
	v, err := auth.NewHMACValidator(auth.Config{Secret: testSecret})
	require.NoError(t, err)

	claims := jwt.MapClaims{"sub": "42", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssueToken_Validation(t *testing.T) {
	_, err := auth.IssueToken("", "42", auth.TokenOptions{})
	require.ErrorIs(t, err, auth.ErrMissingSecret)

	_, err = auth.IssueToken(testSecret, "", auth.TokenOptions{})
	require.ErrorIs(t, err, auth.ErrMissingSubject)
}

func jwksServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()

	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())
	body, err := json.Marshal(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   n,
			"e":   e,
		}},
	})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestJWKSValidator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	server := jwksServer(t, key)

	v, err := auth.NewJWKSValidator(auth.Config{JWKSURL: server.URL, Issuer: "https://id.example.com"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = testKeyID
		s, signErr := token.SignedString(key)
		require.NoError(t, signErr)
		return s
	}

	t.Run("valid", func(t *testing.T) {
		token := sign(jwt.MapClaims{
			"sub": "user-abc",
			"iss": "https://id.example.com",
			"iat": time.Now().Unix(),
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		claims, validateErr := v.Validate(context.Background(), token)
		require.NoError(t, validateErr)
		assert.Equal(t, notification.UserID("user-abc"), claims.UserID)
	})

	t.Run("hmac token rejected", func(t *testing.T) {
		token, signErr := auth.IssueToken(testSecret, "42", auth.TokenOptions{Issuer: "https://id.example.com"})
		require.NoError(t, signErr)
		_, validateErr := v.Validate(context.Background(), token)
		require.ErrorIs(t, validateErr, auth.ErrInvalidToken)
	})

	t.Run("other key rejected", func(t *testing.T) {
		other, keyErr := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, keyErr)
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"sub": "user-abc",
			"iss": "https://id.example.com",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		token.Header["kid"] = testKeyID
		s, signErr := token.SignedString(other)
		require.NoError(t, signErr)

		_, validateErr := v.Validate(context.Background(), s)
		require.ErrorIs(t, validateErr, auth.ErrInvalidToken)
	})
}

func TestNewJWKSValidator_MissingURL(t *testing.T) {
	_, err := auth.NewJWKSValidator(auth.Config{})
	require.ErrorIs(t, err, auth.ErrJWKSFetchFailed)
}
