package hasher

import (
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := New(Config{Pepper: []byte("test-pepper"), Cost: bcrypt.MinCost})
	require.NoError(t, err)
	return h
}

func TestNew_MissingPepperIsFatal(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfigurationFatal))
}

func TestNew_CostOutOfRange(t *testing.T) {
	_, err := New(Config{Pepper: []byte("p"), Cost: bcrypt.MaxCost + 1})
	assert.ErrorIs(t, err, common.ErrConfigurationFatal)
}

func TestNew_DefaultCost(t *testing.T) {
	h, err := New(Config{Pepper: []byte("p")})
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, h.cost)
}

func TestHashVerify_RoundTrip(t *testing.T) {
	h := newTestHasher(t)

	v, err := h.Hash("Str0ng!Pass")
	require.NoError(t, err)
	assert.True(t, h.Verify("Str0ng!Pass", v))
	assert.False(t, h.Verify("Str0ng!Pass ", v))
	assert.NotContains(t, v, "Str0ng!Pass")
}

func TestHash_DifferentSecretDoesNotVerify(t *testing.T) {
	h := newTestHasher(t)

	v, err := h.Hash("secret" + "x")
	require.NoError(t, err)
	assert.False(t, h.Verify("secret", v))
}

func TestHash_RandomizedSalt(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("secret")
	require.NoError(t, err)
	b, err := h.Hash("secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("secret", a))
	assert.True(t, h.Verify("secret", b))
}

func TestVerify_PepperMatters(t *testing.T) {
	h := newTestHasher(t)
	other, err := New(Config{Pepper: []byte("other-pepper"), Cost: bcrypt.MinCost})
	require.NoError(t, err)

	v, err := h.Hash("secret")
	require.NoError(t, err)
	assert.False(t, other.Verify("secret", v))
}

func TestVerify_LongSecretsAreAccepted(t *testing.T) {
	h := newTestHasher(t)
	long := strings.Repeat("a", 200)

	v, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Verify(long, v))
	assert.False(t, h.Verify(long[:199], v))
}

func TestVerify_MalformedVerifier(t *testing.T) {
	h := newTestHasher(t)
	assert.False(t, h.Verify("secret", ""))
	assert.False(t, h.Verify("secret", "not-a-bcrypt-hash"))
}

func TestNeedsRehash(t *testing.T) {
	low := newTestHasher(t)
	v, err := low.Hash("secret")
	require.NoError(t, err)

	high, err := New(Config{Pepper: []byte("test-pepper"), Cost: bcrypt.MinCost + 1})
	require.NoError(t, err)

	assert.True(t, high.NeedsRehash(v))
	assert.False(t, low.NeedsRehash(v))
	assert.False(t, high.NeedsRehash("garbage"))
}
