// Package validation содержит генерацию токенов отслеживания и проверку документов.
package validation

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// TokenLength — длина публичного токена отслеживания заявки.
const TokenLength = 12

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewTrackingToken генерирует случайный токен отслеживания из TokenLength
// символов в верхнем регистре.
func NewTrackingToken() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	token := tokenEncoding.EncodeToString(buf)
	return token[:TokenLength], nil
}

// NormalizeDocument убирает из документа всё, кроме цифр.
func NormalizeDocument(document string) string {
	var b strings.Builder
	for _, r := range document {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidDocument проверяет длину нормализованного документа:
// 11 цифр для физического лица, 14 для юридического.
func IsValidDocument(document string) bool {
	n := len(NormalizeDocument(document))
	return n == 11 || n == 14
}
