package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize NaCl 算法要求的密钥长度
	KeySize = 32
	// SaltSize 派生密钥时使用的盐长度
	SaltSize = 16
	// MinSecretSize 口令的最小长度
	MinSecretSize = 32
)

// KDFParams argon2id 参数
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams 对应 libsodium 的 OPSLIMIT_MODERATE / MEMLIMIT_MODERATE
var DefaultKDFParams = KDFParams{
	Time:    3,
	Memory:  256 * 1024,
	Threads: 1,
}

// DeriveKey 使用 argon2id 从口令和盐派生出 32 字节密钥。
// 盐必须在实例之间共享并持久保存，重新生成盐会使已签发的无状态 cookie 全部失效。
func DeriveKey(secret, salt []byte, params KDFParams) ([]byte, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSecretLength, MinSecretSize)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: must be %d bytes", ErrSaltLength, SaltSize)
	}
	if params.Time == 0 || params.Memory == 0 || params.Threads == 0 {
		params = DefaultKDFParams
	}
	return argon2.IDKey(secret, salt, params.Time, params.Memory, params.Threads, KeySize), nil
}

// GenerateKey 生成一个随机的 32 字节密钥
func GenerateKey() ([]byte, error) {
	return randomBytes(KeySize)
}

// GenerateSalt 生成一个随机盐
func GenerateSalt() ([]byte, error) {
	return randomBytes(SaltSize)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("crypto: failed to read random bytes: %w", err)
	}
	return b, nil
}

// DecodeKeys 解析 base64 编码的密钥，带或不带 padding 均可
func DecodeKeys(encoded ...string) ([][]byte, error) {
	keys := make([][]byte, 0, len(encoded))
	for i, s := range encoded {
		key, err := DecodeKey(s)
		if err != nil {
			return nil, fmt.Errorf("crypto: key at index %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// DecodeKey 解析单个 base64 编码的密钥或盐
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, ErrMissingSecretKey
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// EncodeKey 以标准 base64 (带 padding) 编码密钥
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
