// Package secret 用 NaCl secretbox 加密保存在数据库中的凭据。
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// sealedPrefix 标记已加密的值，未加标记的值按明文处理
const sealedPrefix = "sealed:"

// ErrOpen 密文无法解密（密钥不符或数据损坏）
var ErrOpen = errors.New("secret: cannot open sealed value")

// Box 使用固定密钥加解密；密钥为空时退化为明文存储
type Box struct {
	key *[32]byte
}

// New 由任意长度口令派生 32 字节密钥
func New(passphrase string) *Box {
	if passphrase == "" {
		return &Box{}
	}
	k := sha256.Sum256([]byte(passphrase))
	return &Box{key: &k}
}

// Enabled 是否配置了密钥
func (b *Box) Enabled() bool {
	return b != nil && b.key != nil
}

// Seal 加密；未配置密钥或明文为空时原样返回
func (b *Box) Seal(plain string) (string, error) {
	if !b.Enabled() || plain == "" {
		return plain, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, b.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open 解密；未加标记的值视为明文
func (b *Box) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if !b.Enabled() {
		return "", fmt.Errorf("%w: no secret key configured", ErrOpen)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(raw) < 24 {
		return "", ErrOpen
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, b.key)
	if !ok {
		return "", ErrOpen
	}
	return string(plain), nil
}
