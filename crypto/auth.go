package crypto

import "golang.org/x/crypto/nacl/auth"

// Auth 使用 NaCl crypto_auth (HMAC-SHA-512/256) 对载荷签名，
// 要求 32 字节密钥，验证由 auth.Verify 以常量时间完成。
type Auth struct{}

// NewAuth 创建 crypto_auth codec
func NewAuth() *Auth {
	return &Auth{}
}

func (a *Auth) Name() string { return string(VariantAuth) }

func (a *Auth) Stateless() bool { return false }

func (a *Auth) KeySize() int { return auth.KeySize }

func (a *Auth) Seal(payload, key []byte) (string, error) {
	k, err := toKey32(key)
	if err != nil {
		return "", err
	}
	sig := auth.Sum(payload, k)
	return joinSegments(payload, sig[:]), nil
}

func (a *Auth) Unseal(token string, keys KeySet) ([]byte, bool, error) {
	encodedPayload, encodedSig, err := splitMessage(token)
	if err != nil {
		return nil, false, err
	}
	sig, err := decodeSegment(encodedSig)
	if err != nil {
		return nil, false, err
	}
	if len(sig) != auth.Size {
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
		k, err := toKey32(key)
		if err != nil {
			// 长度不对的密钥不可能验证成功
			continue
		}
		if auth.Verify(sig, payload, k) {
			return payload, i > 0, nil
		}
	}
	return nil, false, ErrVerify
}
