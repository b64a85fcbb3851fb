// Package whatsapp строит ссылки wa.me с заранее заполненным сообщением.
package whatsapp

import (
	"net/url"
	"strings"
	"unicode"
)

const baseURL = "https://wa.me/"

// Digits оставляет в номере только цифры, как того требует wa.me.
func Digits(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// Link возвращает ссылку на чат с номером и текстом сообщения.
// Пустой номер даёт пустую строку.
func Link(phone, message string) string {
	digits := Digits(phone)
	if digits == "" {
		return ""
	}
	if message == "" {
		return baseURL + digits
	}
	return baseURL + digits + "?text=" + url.QueryEscape(message)
}
