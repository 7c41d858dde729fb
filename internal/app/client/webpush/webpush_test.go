package webpush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

// encryptForTest plays the application server: it builds a single-record
// aes128gcm message addressed to the given subscription keys.
func encryptForTest(t *testing.T, uaPub, authSecret, plaintext []byte) []byte {
	t.Helper()

	asPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	asPubRaw := asPriv.PublicKey().Bytes()

	uaKey, err := ecdh.P256().NewPublicKey(uaPub)
	require.NoError(t, err)
	sharedSecret, err := asPriv.ECDH(uaKey)
	require.NoError(t, err)

	salt := make([]byte, saltLen)
	_, err = rand.Read(salt)
	require.NoError(t, err)

	prkKey := hkdf.Extract(sha256.New, sharedSecret, authSecret)
	ikm := make([]byte, 32)
	_, err = io.ReadFull(hkdf.Expand(sha256.New, prkKey, buildInfo("WebPush: info", uaPub, asPubRaw)), ikm)
	require.NoError(t, err)

	prk := hkdf.Extract(sha256.New, ikm, salt)
	cek := make([]byte, cekLen)
	_, err = io.ReadFull(hkdf.Expand(sha256.New, prk, []byte("Content-Encoding: aes128gcm\x00")), cek)
	require.NoError(t, err)
	nonce := make([]byte, nonceLen)
	_, err = io.ReadFull(hkdf.Expand(sha256.New, prk, []byte("Content-Encoding: nonce\x00")), nonce)
	require.NoError(t, err)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	padded := append(append([]byte{}, plaintext...), 0x02)
	ciphertext := gcm.Seal(nil, nonce, padded, nil)

	var msg bytes.Buffer
	msg.Write(salt)
	rs := make([]byte, 4)
	binary.BigEndian.PutUint32(rs, 4096)
	msg.Write(rs)
	msg.WriteByte(byte(len(asPubRaw)))
	msg.Write(asPubRaw)
	msg.Write(ciphertext)
	return msg.Bytes()
}

func TestKeyPair_Subscription(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	sub := keys.Subscription("https://push.example/ep")
	assert.Equal(t, "https://push.example/ep", sub.Endpoint)

	p256dh, err := base64.RawURLEncoding.DecodeString(sub.Keys.P256DH)
	require.NoError(t, err)
	assert.Len(t, p256dh, 65) // uncompressed P-256 point

	auth, err := base64.RawURLEncoding.DecodeString(sub.Keys.Auth)
	require.NoError(t, err)
	assert.Len(t, auth, 16)
}

func TestKeyPair_DecryptRoundTrip(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	payload := []byte(`{"title":"New story","body":"Alice posted a story"}`)
	msg := encryptForTest(t, keys.PublicKey(), keys.authSecret, payload)

	rs, err := RecordSize(msg)
	require.NoError(t, err)
	assert.Equal(t, uint32(4096), rs)

	got, err := keys.Decrypt(msg)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestKeyPair_DecryptRejectsGarbage(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	_, err = keys.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrMalformedMessage)

	msg := encryptForTest(t, keys.PublicKey(), keys.authSecret, []byte("hello"))
	msg[len(msg)-1] ^= 0xff // corrupt the ciphertext
	_, err = keys.Decrypt(msg)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestKeyPair_ExportImport(t *testing.T) {
	keys, err := GenerateKeys()
	require.NoError(t, err)

	exported, err := keys.Export()
	require.NoError(t, err)

	imported, err := ImportKeys(exported)
	require.NoError(t, err)
	assert.Equal(t, keys.PublicKey(), imported.PublicKey())

	// Imported keys decrypt messages addressed to the original subscription.
	msg := encryptForTest(t, keys.PublicKey(), keys.authSecret, []byte("after restart"))
	got, err := imported.Decrypt(msg)
	require.NoError(t, err)
	assert.Equal(t, []byte("after restart"), got)
}

func TestDecodeServerKey(t *testing.T) {
	raw, err := DecodeServerKey("BCCs2eonMI-6H2ctvFaWg-UYdDv387Vno_bzUzALpB442r2lCnsHmtrx8biyPi_E-1fSGABK_Qs_GlvPoJJqxbk")
	require.NoError(t, err)
	assert.Len(t, raw, 65)

	// Padded variant decodes to the same bytes.
	padded, err := DecodeServerKey("AQID==")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, padded)
}
