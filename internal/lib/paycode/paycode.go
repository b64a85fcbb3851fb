// Package paycode генерирует короткие коды заявок на оплату, которые владелец
// диктует администратору по телефону или в WhatsApp.
package paycode

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Prefix общий префикс всех кодов.
const Prefix = "REDCAJ-"

const randomBytes = 3

var codeRe = regexp.MustCompile(`^REDCAJ-[0-9A-F]{6}$`)

// Generator выпускает коды из источника случайности.
type Generator struct {
	rand io.Reader
}

// New возвращает генератор на crypto/rand.
func New() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewWithReader возвращает генератор на заданном источнике.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate возвращает код вида REDCAJ-3FA09C.
func (g *Generator) Generate() (string, error) {
	const op = "paycode.Generate"
	buf := make([]byte, randomBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return Prefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Normalize приводит введённый код к каноническому виду.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid проверяет формат кода.
func Valid(code string) bool {
	return codeRe.MatchString(code)
}
