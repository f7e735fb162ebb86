package fieldcrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCipher(t *testing.T, secret string) *Cipher {
	t.Helper()
	c, err := New(secret)
	require.NoError(t, err)
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newCipher(t, "test-secret")

	enc, err := c.Encrypt("Juan Dela Cruz")
	require.NoError(t, err)
	assert.True(t, LooksEncrypted(enc), "encrypted value should have the stored shape: %s", enc)
	assert.NotContains(t, enc, "Juan")

	assert.Equal(t, "Juan Dela Cruz", c.Reveal(enc))
}

func TestReveal_PlainValueUnchanged(t *testing.T) {
	c := newCipher(t, "test-secret")

	for _, v := range []string{"", "Maria Santos", "09171234567", "a:b:c", "time 10:30:00"} {
		assert.Equal(t, v, c.Reveal(v))
	}
}

func TestReveal_WrongKeyReturnsStoredValue(t *testing.T) {
	enc, err := newCipher(t, "key-one").Encrypt("secret name")
	require.NoError(t, err)

	other := newCipher(t, "key-two")
	assert.Equal(t, enc, other.Reveal(enc))

	_, err = other.Decrypt(enc)
	assert.Error(t, err)
}

func TestReveal_TamperedCiphertextReturnsStoredValue(t *testing.T) {
	c := newCipher(t, "test-secret")
	enc, err := c.Encrypt("Pedro")
	require.NoError(t, err)

	parts := strings.Split(enc, ":")
	last := parts[2]
	flipped := "0"
	if last[0] == '0' {
		flipped = "1"
	}
	tampered := parts[0] + ":" + parts[1] + ":" + flipped + last[1:]

	assert.True(t, LooksEncrypted(tampered))
	assert.Equal(t, tampered, c.Reveal(tampered))
}

func TestPassthroughCipher(t *testing.T) {
	c := newCipher(t, "")

	enc, err := newCipher(t, "k").Encrypt("x")
	require.NoError(t, err)
	assert.Equal(t, enc, c.Reveal(enc))

	_, err = c.Encrypt("x")
	assert.Error(t, err)
}

func TestLooksEncrypted(t *testing.T) {
	iv := strings.Repeat("ab", ivSize)
	tag := strings.Repeat("cd", tagSize)

	assert.True(t, LooksEncrypted(iv+":"+tag+":00ff"))
	assert.False(t, LooksEncrypted(iv+":"+tag+":"), "empty ciphertext")
	assert.False(t, LooksEncrypted(iv+":"+tag), "two parts")
	assert.False(t, LooksEncrypted(iv+":"+tag+":0g"), "non-hex")
	assert.False(t, LooksEncrypted(iv+":"+tag+":abc"), "odd length")
	assert.False(t, LooksEncrypted("ab:"+tag+":00"), "short iv")
}

func TestRevealAll_IndependentFields(t *testing.T) {
	c := newCipher(t, "test-secret")
	encName, err := c.Encrypt("Ana Reyes")
	require.NoError(t, err)
	broken := strings.Repeat("00", ivSize) + ":" + strings.Repeat("00", tagSize) + ":00"

	name, biz, contact := encName, broken, "plain"
	RevealAll(c, &name, &biz, &contact, nil)

	assert.Equal(t, "Ana Reyes", name)
	assert.Equal(t, broken, biz)
	assert.Equal(t, "plain", contact)
}
