package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour, nil)
	require.NoError(t, err)

	in := map[string]any{"sub": "alice", "role": "farmer"}
	token, err := svc.Issue(in)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "farmer", claims["role"])
	assert.Contains(t, claims, "iat")
	assert.Contains(t, claims, "exp")

	_, mutated := in["iat"]
	assert.False(t, mutated, "Issue must not modify its input")
}

func TestTokenService_NoTTL(t *testing.T) {
	svc, err := NewTokenService(testSecret, 0, nil)
	require.NoError(t, err)

	token, err := svc.IssueFor("bob")
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.NotContains(t, claims, "exp")
	assert.Equal(t, "bob", claims[ClaimUsername])
}

func TestTokenService_PayloadTampering(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour, nil)
	require.NoError(t, err)

	token, err := svc.IssueFor("alice")
	require.NoError(t, err)

	segments := strings.Split(token, ".")
	require.Len(t, segments, 3)
	payload := []byte(segments[1])

	for i := range payload {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(payload))
			copy(mutated, payload)
			mutated[i] ^= 1 << bit
			tampered := segments[0] + "." + string(mutated) + "." + segments[2]

			_, err := svc.Verify(tampered)
			require.ErrorIs(t, err, ErrInvalidToken, "byte %d bit %d", i, bit)
		}
	}
}

func TestTokenService_WrongSecret(t *testing.T) {
	k1, err := NewTokenService(testSecret, time.Hour, nil)
	require.NoError(t, err)
	k2, err := NewTokenService([]byte("another-secret-another-secret-!!"), time.Hour, nil)
	require.NoError(t, err)

	token, err := k1.IssueFor("alice")
	require.NoError(t, err)

	_, err = k2.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Expired(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := NewTokenService(testSecret, time.Minute, fixedClock(issuedAt))
	require.NoError(t, err)
	token, err := issuer.IssueFor("alice")
	require.NoError(t, err)

	later, err := NewTokenService(testSecret, time.Minute, fixedClock(issuedAt.Add(2*time.Minute)))
	require.NoError(t, err)
	_, err = later.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify(token)
	assert.NoError(t, err)
}

func TestTokenService_Malformed(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour, nil)
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-jwt", "a.b.c", "...", "Bearer x"} {
		assert.NotPanics(t, func() {
			claims, err := svc.Verify(token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
		})
	}
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour, nil)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "alice"}).
		SignedString(testSecret)
	require.NoError(t, err)
	_, err = svc.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Identity(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour, nil)
	require.NoError(t, err)

	token, err := svc.IssueFor("carol")
	require.NoError(t, err)
	id, err := svc.Identity(token)
	require.NoError(t, err)
	assert.Equal(t, "carol", id)

	noSub, err := svc.Issue(map[string]any{"role": "farmer"})
	require.NoError(t, err)
	_, err = svc.Identity(noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	numericSub, err := svc.Issue(map[string]any{"sub": 42})
	require.NoError(t, err)
	_, err = svc.Identity(numericSub)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenService_EmptySecret(t *testing.T) {
	_, err := NewTokenService(nil, time.Hour, nil)
	assert.Error(t, err)
}
