// Package apperr описывает типизированные ошибки бизнес-уровня.
//
// Каждая ошибка несёт вид (Kind) и короткое сообщение для пользователя.
// HTTP-слой отображает вид ошибки в код ответа, не разбирая текст.
package apperr

import "errors"

// Kind вид ошибки бизнес-уровня.
type Kind int

const (
	// KindInternal сбой хранилища или непредвиденная ошибка.
	KindInternal Kind = iota
	// KindValidation некорректные входные данные.
	KindValidation
	// KindNotFound объект не существует или недоступен вызывающему.
	KindNotFound
	// KindConflict нарушение уникальности или недопустимый переход состояния.
	KindConflict
	// KindAuth неверные учётные данные или токен.
	KindAuth
	// KindForbidden действие запрещено для аутентифицированного пользователя.
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error ошибка с видом и сообщением для пользователя.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation возвращает ошибку валидации.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// NotFound возвращает ошибку отсутствия объекта.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Conflict возвращает ошибку конфликта.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// Auth возвращает ошибку аутентификации.
func Auth(msg string) error {
	return &Error{Kind: KindAuth, Msg: msg}
}

// Forbidden возвращает ошибку запрета доступа.
func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

// Internal оборачивает ошибку инфраструктуры. Текст исходной ошибки
// не показывается пользователю.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Msg: "internal error", Err: err}
}

// KindOf возвращает вид ошибки. Ошибки без вида считаются внутренними.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message возвращает сообщение, безопасное для показа пользователю.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal error"
}

// Is сообщает, относится ли err к виду k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
