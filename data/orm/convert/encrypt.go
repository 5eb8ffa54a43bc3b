package convert

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var errCiphertextTooShort = errors.New("convert: ciphertext too short")

// argon2id 参数，取 x/crypto 文档推荐值
const (
	saltSize     = 16
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

type cipher struct {
	password []byte
}

func newCipher(password string) cipher {
	return cipher{password: []byte(password)}
}

// key 每个值使用独立的随机盐派生密钥
func (c cipher) key(salt []byte) []byte {
	return argon2.IDKey(c.password, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// seal 输出 salt || nonce || ciphertext
func (c cipher) seal(plain []byte) ([]byte, error) {
	head := make([]byte, saltSize+chacha20poly1305.NonceSizeX, saltSize+chacha20poly1305.NonceSizeX+len(plain)+chacha20poly1305.Overhead)
	if _, err := rand.Read(head); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(c.key(head[:saltSize]))
	if err != nil {
		return nil, err
	}
	return aead.Seal(head, head[saltSize:], plain, nil), nil
}

func (c cipher) open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, errCiphertextTooShort
	}
	salt, rest := sealed[:saltSize], sealed[saltSize:]
	nonce, data := rest[:chacha20poly1305.NonceSizeX], rest[chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(c.key(salt))
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, fmt.Errorf("convert: decrypt: %w", err)
	}
	return plain, nil
}

// EncryptString 以密码派生的密钥加密字符串，列中保存 base64 文本
func EncryptString(password string) Converter {
	c := newCipher(password)
	return New(
		func(plain string) (string, error) {
			sealed, err := c.seal([]byte(plain))
			if err != nil {
				return "", err
			}
			return base64.StdEncoding.EncodeToString(sealed), nil
		},
		func(stored string) (string, error) {
			sealed, err := base64.StdEncoding.DecodeString(stored)
			if err != nil {
				return "", fmt.Errorf("convert: decrypt: %w", err)
			}
			plain, err := c.open(sealed)
			return string(plain), err
		},
	)
}

// EncryptBinary 加密二进制成员，列中保存盐、nonce 与密文
func EncryptBinary(password string) Converter {
	c := newCipher(password)
	return New(c.seal, c.open)
}
