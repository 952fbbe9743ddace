package crypto

import "errors"

var (
	// ErrMalformedMessage 密文中找不到分隔符，或某一段不是合法的 base64
	ErrMalformedMessage = errors.New("crypto: the message is malformed")
	// ErrSignatureLength 签名长度与算法要求不符
	ErrSignatureLength = errors.New("crypto: the signature does not have the required length")
	// ErrNonceLength nonce 长度与算法要求不符
	ErrNonceLength = errors.New("crypto: the nonce does not have the required length")
	// ErrCipherLength 密文长度不足以容纳认证标签
	ErrCipherLength = errors.New("crypto: the cipher is not long enough")
	// ErrVerify 密钥集合中没有任何一个密钥能够验证该消息
	ErrVerify = errors.New("crypto: unable to verify")
	// ErrMissingSecretKey 没有配置可用的密钥
	ErrMissingSecretKey = errors.New("crypto: missing secret key")
	// ErrKeyLength 密钥长度与算法要求不符
	ErrKeyLength = errors.New("crypto: invalid key length")
	// ErrSecretLength 用于派生密钥的口令过短
	ErrSecretLength = errors.New("crypto: secret is too short")
	// ErrSaltLength 盐的长度不正确
	ErrSaltLength = errors.New("crypto: invalid salt length")
	// ErrUnknownVariant 不支持的算法
	ErrUnknownVariant = errors.New("crypto: unknown codec variant")
)
