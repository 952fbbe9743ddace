package crypto

import "fmt"

// KeySet 是一组有序的密钥，第一个为主密钥。
// 封装总是使用主密钥，解封时按顺序逐个尝试，命中非主密钥即视为轮换。
type KeySet [][]byte

// NewKeySet 创建密钥集合，密钥会被复制，调用方之后修改原切片不会影响集合
func NewKeySet(keys ...[]byte) (KeySet, error) {
	if len(keys) == 0 {
		return nil, ErrMissingSecretKey
	}
	ks := make(KeySet, 0, len(keys))
	for i, key := range keys {
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: key at index %d is empty", ErrMissingSecretKey, i)
		}
		ks = append(ks, append([]byte(nil), key...))
	}
	return ks, nil
}

// Primary 返回用于封装的主密钥
func (ks KeySet) Primary() ([]byte, error) {
	if len(ks) == 0 || len(ks[0]) == 0 {
		return nil, ErrMissingSecretKey
	}
	return ks[0], nil
}

// Validate 检查集合中每个密钥是否满足 codec 的长度要求
func (ks KeySet) Validate(c Codec) error {
	if len(ks) == 0 {
		return ErrMissingSecretKey
	}
	size := c.KeySize()
	if size == 0 {
		return nil
	}
	for i, key := range ks {
		if len(key) != size {
			return fmt.Errorf("%w: %s requires %d bytes, key at index %d has %d",
				ErrKeyLength, c.Name(), size, i, len(key))
		}
	}
	return nil
}
