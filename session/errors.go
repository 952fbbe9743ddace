package session

import (
	"errors"

	"github.com/fyerfyer/fyer-session/crypto"
)

var (
	// ErrInvalidData 无状态 cookie 解出的载荷不是合法的 JSON 对象
	ErrInvalidData = errors.New("session: invalid session data")
	// ErrSessionNotFound 存储中找不到 cookie 对应的会话
	ErrSessionNotFound = errors.New("session: did not find a matching session in the store")
	// ErrExpiredSession 存储返回了一个已过期的会话
	ErrExpiredSession = errors.New("session: the store returned an expired session")
	// ErrMissingConfiguration 既没有配置 key 也没有配置 secret
	ErrMissingConfiguration = errors.New("session: key or secret must be specified")
	// ErrMissingSecretKey 编码 cookie 时没有可用的主密钥
	ErrMissingSecretKey = crypto.ErrMissingSecretKey
	// ErrNotSupported 存储不支持该可选操作
	ErrNotSupported = errors.New("session: operation not supported by store")
)

var decodeErrors = []error{
	crypto.ErrMalformedMessage,
	crypto.ErrSignatureLength,
	crypto.ErrNonceLength,
	crypto.ErrCipherLength,
	crypto.ErrVerify,
	crypto.ErrMissingSecretKey,
	ErrInvalidData,
	ErrSessionNotFound,
	ErrExpiredSession,
}

// IsDecodeError 判断解析入站 cookie 时的错误是否应当被当作"没有会话"处理。
// 存储的 I/O 错误不属于此类。
func IsDecodeError(err error) bool {
	for _, target := range decodeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
