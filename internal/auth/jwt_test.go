package auth

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier("jwt-secret")
	exp := time.Now().Add(time.Hour).Unix()

	raw := signToken(t, jwt.SigningMethodHS256, []byte("jwt-secret"), jwt.MapClaims{
		"sub": "user-1", "email": "a@example.com", "role": "authenticated", "exp": exp,
	})
	claims, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("jwt-secret")
	exp := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"email": "a@b.c", "exp": exp}),
		"expired":      signToken(t, jwt.SigningMethodHS256, []byte("jwt-secret"), jwt.MapClaims{"email": "a@b.c", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no exp":       signToken(t, jwt.SigningMethodHS256, []byte("jwt-secret"), jwt.MapClaims{"email": "a@b.c"}),
		"no email":     signToken(t, jwt.SigningMethodHS256, []byte("jwt-secret"), jwt.MapClaims{"exp": exp}),
		"other alg":    signToken(t, jwt.SigningMethodHS512, []byte("jwt-secret"), jwt.MapClaims{"email": "a@b.c", "exp": exp}),
		"garbage":      "not.a.token",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			assert.True(t, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}
