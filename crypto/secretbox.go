package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// NonceSize secretbox 使用的 nonce 长度
const NonceSize = 24

// Secretbox 使用 NaCl secretbox (XSalsa20-Poly1305) 加密载荷。
// 令牌格式为 base64(ciphertext) + "." + base64(nonce)，每次封装使用新的随机 nonce。
type Secretbox struct {
	rand io.Reader
}

// NewSecretbox 创建 secretbox codec
func NewSecretbox() *Secretbox {
	return &Secretbox{rand: rand.Reader}
}

func (s *Secretbox) Name() string { return string(VariantSecretbox) }

func (s *Secretbox) Stateless() bool { return true }

func (s *Secretbox) KeySize() int { return KeySize }

func (s *Secretbox) Seal(payload, key []byte) (string, error) {
	k, err := toKey32(key)
	if err != nil {
		return "", err
	}
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}
	ciphertext := secretbox.Seal(nil, payload, &nonce, k)
	return joinSegments(ciphertext, nonce[:]), nil
}

func (s *Secretbox) Unseal(token string, keys KeySet) ([]byte, bool, error) {
	encodedCipher, encodedNonce, err := splitMessage(token)
	if err != nil {
		return nil, false, err
	}
	rawNonce, err := decodeSegment(encodedNonce)
	if err != nil {
		return nil, false, err
	}
	if len(rawNonce) != NonceSize {
		return nil, false, ErrNonceLength
	}
	ciphertext, err := decodeSegment(encodedCipher)
	if err != nil {
		return nil, false, err
	}
	if len(ciphertext) < secretbox.Overhead {
		return nil, false, ErrCipherLength
	}
	if len(keys) == 0 {
		return nil, false, ErrMissingSecretKey
	}

	var nonce [NonceSize]byte
	copy(nonce[:], rawNonce)
	for i, key := range keys {
		k, err := toKey32(key)
		if err != nil {
			continue
		}
		if payload, ok := secretbox.Open(nil, ciphertext, &nonce, k); ok {
			if payload == nil {
				payload = []byte{}
			}
			return payload, i > 0, nil
		}
	}
	return nil, false, ErrVerify
}
