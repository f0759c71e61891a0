package service

import (
	crand "crypto/rand"
	"fmt"

	"github.com/yeisme/dropvault/pkg/rule"
)

// TokenSource 生成长度为 n 的分享 token.
type TokenSource func(n int) (string, error)

// alphabetMask 字母表恰好 64 个字符，取随机字节的低 6 位即为均匀分布.
const alphabetMask = len(rule.ShareTokenAlphabet) - 1

// RandomToken 使用 crypto/rand 生成 URL 安全的 token.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	for i, b := range buf {
		buf[i] = rule.ShareTokenAlphabet[int(b)&alphabetMask]
	}

	return string(buf), nil
}
