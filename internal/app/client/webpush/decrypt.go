package webpush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// aes128gcm message layout (RFC 8188 §2.1):
// salt (16) | record size (4) | keyid length (1) | keyid | ciphertext.
// For web push the keyid is the application server's P-256 public key.
const (
	saltLen   = 16
	headerLen = saltLen + 4 + 1
	cekLen    = 16
	nonceLen  = 12
)

// Decrypt decodes a single-record aes128gcm push message addressed to this
// subscription (RFC 8291 key derivation, RFC 8188 content coding).
func (k *KeyPair) Decrypt(message []byte) ([]byte, error) {
	if len(message) < headerLen {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedMessage)
	}

	salt := message[:saltLen]
	idLen := int(message[saltLen+4])
	if len(message) < headerLen+idLen {
		return nil, fmt.Errorf("%w: truncated keyid", ErrMalformedMessage)
	}

	serverPubRaw := message[headerLen : headerLen+idLen]
	ciphertext := message[headerLen+idLen:]

	serverPub, err := ecdh.P256().NewPublicKey(serverPubRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad server public key", ErrMalformedMessage)
	}

	sharedSecret, err := k.priv.ECDH(serverPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh agreement: %w", err)
	}

	// RFC 8291 §3.3-3.4: combine the ECDH secret with the auth secret.
	prkKey := hkdf.Extract(sha256.New, sharedSecret, k.authSecret)
	keyInfo := buildInfo("WebPush: info", k.PublicKey(), serverPubRaw)
	ikm, err := expand(prkKey, keyInfo, 32)
	if err != nil {
		return nil, err
	}

	// RFC 8188 §2.2-2.3: derive the content key and nonce from the salt.
	prk := hkdf.Extract(sha256.New, ikm, salt)
	cek, err := expand(prk, []byte("Content-Encoding: aes128gcm\x00"), cekLen)
	if err != nil {
		return nil, err
	}
	nonce, err := expand(prk, []byte("Content-Encoding: nonce\x00"), nonceLen)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt failed", ErrMalformedMessage)
	}

	return stripPadding(plaintext)
}

// stripPadding removes the RFC 8188 trailer: the last record's plaintext is
// followed by 0x02 and any number of zero bytes.
func stripPadding(plaintext []byte) ([]byte, error) {
	i := len(plaintext) - 1
	for i >= 0 && plaintext[i] == 0x00 {
		i--
	}
	if i < 0 || plaintext[i] != 0x02 {
		return nil, fmt.Errorf("%w: bad record padding", ErrMalformedMessage)
	}
	return plaintext[:i], nil
}

func buildInfo(prefix string, uaPub, asPub []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(prefix)
	buf.WriteByte(0x00)
	buf.Write(uaPub)
	buf.Write(asPub)
	return buf.Bytes()
}

func expand(prk, info []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// RecordSize reads the rs field of a message header, exposed for validation
// and diagnostics.
func RecordSize(message []byte) (uint32, error) {
	if len(message) < headerLen {
		return 0, fmt.Errorf("%w: truncated header", ErrMalformedMessage)
	}
	return binary.BigEndian.Uint32(message[saltLen : saltLen+4]), nil
}
