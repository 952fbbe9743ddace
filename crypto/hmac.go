package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// HMAC 使用 HMAC 对载荷签名，载荷以明文形式随令牌传输。
// 相同的载荷和密钥总是得到相同的令牌。
type HMAC struct {
	hash func() hash.Hash
	size int
}

// NewHMAC 创建基于 SHA-256 的 HMAC codec
func NewHMAC() *HMAC {
	return &HMAC{
		hash: sha256.New,
		size: sha256.Size,
	}
}

func (h *HMAC) Name() string { return string(VariantHMAC) }

func (h *HMAC) Stateless() bool { return false }

func (h *HMAC) KeySize() int { return 0 }

func (h *HMAC) sign(payload, key []byte) []byte {
	mac := hmac.New(h.hash, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Seal 返回 base64(payload) + "." + base64(hmac)
func (h *HMAC) Seal(payload, key []byte) (string, error) {
	if len(key) == 0 {
		return "", ErrMissingSecretKey
	}
	return joinSegments(payload, h.sign(payload, key)), nil
}

// Unseal 重新计算签名，并以常量时间比较
func (h *HMAC) Unseal(token string, keys KeySet) ([]byte, bool, error) {
	encodedPayload, encodedSig, err := splitMessage(token)
	if err != nil {
		return nil, false, err
	}
	sig, err := decodeSegment(encodedSig)
	if err != nil {
		return nil, false, err
	}
	if len(sig) != h.size {
		return nil, false, ErrSignatureLength
	}
	payload, err := decodeSegment(encodedPayload)
	if err != nil {
		return nil, false, err
	}
	if len(keys) == 0 {
		return nil, false, ErrMissingSecretKey
	}

	for i, key := range keys {
		if len(key) == 0 {
			continue
		}
		if hmac.Equal(h.sign(payload, key), sig) {
			return payload, i > 0, nil
		}
	}
	return nil, false, ErrVerify
}
