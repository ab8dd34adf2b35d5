package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(now *time.Time) *Issuer {
	i := NewIssuer("classroom", "k3y", 15*time.Minute, 24*time.Hour)
	i.now = func() time.Time { return *now }
	return i
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	i := newTestIssuer(&now)

	pair, err := i.Issue(42)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), pair.AccessExp)
	assert.Equal(t, now.Add(24*time.Hour), pair.RefreshExp)

	access, err := i.Parse(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	id, err := access.TeacherID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "teacher", access.Role)
	assert.Equal(t, "classroom", access.Issuer)
	assert.NotEmpty(t, access.ID)

	refresh, err := i.Parse(pair.RefreshToken, TypeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestParseRejectsWrongType(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(&now)
	pair, err := i.Issue(1)
	require.NoError(t, err)

	_, err = i.Parse(pair.RefreshToken, TypeAccess)
	assert.Error(t, err)
	_, err = i.Parse(pair.AccessToken, TypeRefresh)
	assert.Error(t, err)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(&now)
	pair, err := i.Issue(1)
	require.NoError(t, err)

	other := NewIssuer("someone-else", "k3y", time.Minute, time.Hour)
	_, err = other.Parse(pair.AccessToken, TypeAccess)
	assert.Error(t, err, "issuer mismatch")

	wrongKey := NewIssuer("classroom", "different", time.Minute, time.Hour)
	_, err = wrongKey.Parse(pair.AccessToken, TypeAccess)
	assert.Error(t, err, "signature mismatch")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Type: TypeAccess, RegisteredClaims: jwt.RegisteredClaims{
		Subject: "1", Issuer: "classroom", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = i.Parse(none, TypeAccess)
	assert.Error(t, err, "unsigned token")

	_, err = i.Parse("garbage", TypeAccess)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	i := newTestIssuer(&now)
	pair, err := i.Issue(1)
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = i.Parse(pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = i.Parse(pair.RefreshToken, TypeRefresh)
	assert.NoError(t, err)
}

func TestParseRejectsNonNumericSubject(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(&now)
	tok, err := i.sign("device-7", TypeAccess, now, now.Add(time.Minute))
	require.NoError(t, err)
	_, err = i.Parse(tok, TypeAccess)
	assert.Error(t, err)
}
