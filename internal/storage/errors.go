// Package storage содержит общие для всех реализаций хранилища ошибки.
// Реализации лежат в подпакетах repository (PostgreSQL) и memory.
package storage

import "errors"

var (
	// ErrNotFound запись не найдена в области видимости аккаунта.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicate нарушено ограничение уникальности.
	ErrDuplicate = errors.New("storage: duplicate record")
	// ErrConflict состояние записи изменилось между чтением и записью.
	ErrConflict = errors.New("storage: state changed concurrently")
)
