package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Separator 分隔编码后的载荷与签名(或 nonce)。
// 它不属于 base64 字母表，因此切分不会产生歧义。
const Separator = "."

var (
	segmentEncoding = base64.RawStdEncoding.Strict()
	paddedEncoding  = base64.StdEncoding.Strict()
)

// Codec 将载荷封装为自描述的文本令牌，并能在密钥集合上反向解封
type Codec interface {
	// Name 返回算法名称
	Name() string
	// Stateless 表示该算法是否适合把完整的会话数据放进 cookie
	Stateless() bool
	// KeySize 返回要求的密钥长度，0 表示任意长度
	KeySize() int
	// Seal 使用单个密钥签名或加密载荷
	Seal(payload, key []byte) (string, error)
	// Unseal 验证或解密令牌，rotated 表示命中的是非主密钥
	Unseal(token string, keys KeySet) (payload []byte, rotated bool, err error)
}

// Variant 标识一种 codec 实现
type Variant string

const (
	// VariantHMAC HMAC-SHA256 签名，载荷明文传输
	VariantHMAC Variant = "mac-signing"
	// VariantAuth NaCl crypto_auth (HMAC-SHA-512/256)，载荷明文传输
	VariantAuth Variant = "authenticated-mac"
	// VariantSecretbox NaCl secretbox (XSalsa20-Poly1305)，载荷加密
	VariantSecretbox Variant = "authenticated-encryption"
)

// ParseVariant 解析配置中的算法名称，空字符串返回默认的 mac-signing
func ParseVariant(name string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(name))); v {
	case "":
		return VariantHMAC, nil
	case VariantHMAC, VariantAuth, VariantSecretbox:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
}

// NewCodec 返回 variant 对应的 codec
func NewCodec(v Variant) (Codec, error) {
	switch v {
	case VariantHMAC, "":
		return NewHMAC(), nil
	case VariantAuth:
		return NewAuth(), nil
	case VariantSecretbox:
		return NewSecretbox(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, string(v))
	}
}

func encodeSegment(b []byte) string {
	return segmentEncoding.EncodeToString(b)
}

// decodeSegment 只接受规范编码：不允许换行，末尾多余的位必须为 0，
// 带 padding 的旧令牌必须是完整正确的 padding
func decodeSegment(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, fmt.Errorf("%w: line break in segment", ErrMalformedMessage)
	}
	enc := segmentEncoding
	if strings.HasSuffix(s, "=") {
		enc = paddedEncoding
	}
	b, err := enc.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return b, nil
}

func joinSegments(payload, tag []byte) string {
	return encodeSegment(payload) + Separator + encodeSegment(tag)
}

// splitMessage 按最后一个分隔符切分令牌
func splitMessage(token string) (payload string, tag string, err error) {
	idx := strings.LastIndex(token, Separator)
	if idx == -1 {
		return "", "", ErrMalformedMessage
	}
	return token[:idx], token[idx+1:], nil
}

// toKey32 将密钥转换为 NaCl 需要的定长数组
func toKey32(key []byte) (*[32]byte, error) {
	if len(key) == 0 {
		return nil, ErrMissingSecretKey
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrKeyLength, KeySize, len(key))
	}
	var k [32]byte
	copy(k[:], key)
	return &k, nil
}
