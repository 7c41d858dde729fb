// Package webpush holds the client half of web push: subscription key
// material generation and decryption of incoming aes128gcm payloads
// (RFC 8188/8291).
package webpush

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storykeeper/internal/app/client/api"
)

const authSecretLen = 16

var ErrMalformedMessage = errors.New("malformed push message")

// KeyPair is the user-agent side key material of a push subscription: a
// P-256 ECDH keypair plus the 16-byte auth secret.
type KeyPair struct {
	priv       *ecdh.PrivateKey
	authSecret []byte
}

func GenerateKeys() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate subscription key: %w", err)
	}

	secret := make([]byte, authSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate auth secret: %w", err)
	}

	return &KeyPair{priv: priv, authSecret: secret}, nil
}

// PublicKey returns the uncompressed P-256 point, the p256dh value.
func (k *KeyPair) PublicKey() []byte {
	return k.priv.PublicKey().Bytes()
}

// Subscription builds the wire-shape subscription for the given push
// endpoint.
func (k *KeyPair) Subscription(endpoint string) api.Subscription {
	return api.Subscription{
		Endpoint: endpoint,
		Keys: api.SubscriptionKeys{
			P256DH: base64.RawURLEncoding.EncodeToString(k.PublicKey()),
			Auth:   base64.RawURLEncoding.EncodeToString(k.authSecret),
		},
	}
}

type exportedKeys struct {
	PrivateKey string `json:"privateKey"`
	AuthSecret string `json:"authSecret"`
}

// Export serializes the key material for the store's kv table, so a
// subscription keeps decrypting across restarts.
func (k *KeyPair) Export() (string, error) {
	raw, err := json.Marshal(exportedKeys{
		PrivateKey: base64.RawURLEncoding.EncodeToString(k.priv.Bytes()),
		AuthSecret: base64.RawURLEncoding.EncodeToString(k.authSecret),
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func ImportKeys(s string) (*KeyPair, error) {
	var exp exportedKeys
	if err := json.Unmarshal([]byte(s), &exp); err != nil {
		return nil, fmt.Errorf("parse key material: %w", err)
	}

	privRaw, err := base64.RawURLEncoding.DecodeString(exp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, err := ecdh.P256().NewPrivateKey(privRaw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	secret, err := base64.RawURLEncoding.DecodeString(exp.AuthSecret)
	if err != nil {
		return nil, fmt.Errorf("parse auth secret: %w", err)
	}

	return &KeyPair{priv: priv, authSecret: secret}, nil
}

// DecodeServerKey decodes a base64url VAPID public key, tolerating the
// padded and unpadded variants browsers hand around.
func DecodeServerKey(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode server key: %w", err)
	}
	return raw, nil
}
