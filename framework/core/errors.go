// Package core предоставляет систему ошибок и базовые интерфейсы компонентов.
package core

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Коды ошибок
const (
	CodeInvalidArgument   = "INVALID_ARGUMENT"
	CodeNotFound          = "NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeEmptyCart         = "EMPTY_CART"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeStorage           = "STORAGE_FAILURE"
)

// Сентинелы для errors.Is: сравнение идет по коду.
var (
	ErrInvalidArgument   = &FrameworkError{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrNotFound          = &FrameworkError{Code: CodeNotFound, Message: "not found"}
	ErrInsufficientStock = &FrameworkError{Code: CodeInsufficientStock, Message: "insufficient stock"}
	ErrEmptyCart         = &FrameworkError{Code: CodeEmptyCart, Message: "cart is empty"}
	ErrInvalidTransition = &FrameworkError{Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrInvalidConfig     = &FrameworkError{Code: CodeInvalidConfig, Message: "invalid configuration"}
	ErrStorage           = &FrameworkError{Code: CodeStorage, Message: "storage failure"}
)

// CodedError ошибка, несущая код
type CodedError interface {
	error
	ErrorCode() string
}

// FrameworkError базовый тип ошибки
type FrameworkError struct {
	Code       string
	Message    string
	Cause      error
	StackTrace string
}

// Error реализует интерфейс error
func (e *FrameworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ErrorCode возвращает код ошибки
func (e *FrameworkError) ErrorCode() string {
	return e.Code
}

// Unwrap возвращает причину ошибки
func (e *FrameworkError) Unwrap() error {
	return e.Cause
}

// Is проверяет, соответствует ли ошибка коду
func (e *FrameworkError) Is(target error) bool {
	if t, ok := target.(*FrameworkError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext добавляет контекст к ошибке
func (e *FrameworkError) WithContext(context string) *FrameworkError {
	return &FrameworkError{
		Code:       e.Code,
		Message:    fmt.Sprintf("%s: %s", context, e.Message),
		Cause:      e.Cause,
		StackTrace: e.StackTrace,
	}
}

// NewError создает новую ошибку
func NewError(code, message string) *FrameworkError {
	return &FrameworkError{
		Code:    code,
		Message: message,
	}
}

// Errorf создает ошибку с форматированным сообщением
func Errorf(code, format string, args ...interface{}) *FrameworkError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Wrap оборачивает существующую ошибку, сохраняя stack trace места обертки
func Wrap(err error, code, message string) *FrameworkError {
	if err == nil {
		return nil
	}
	return &FrameworkError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStackTrace(),
	}
}

// CodeOf возвращает код первой кодированной ошибки в цепочке.
// Для ошибок без кода возвращается пустая строка.
func CodeOf(err error) string {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

// IsCode проверяет код ошибки
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// captureStackTrace захватывает stack trace
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// Убираем первые строки (сама функция captureStackTrace и Wrap)
	lines := strings.Split(stack, "\n")
	if len(lines) > 5 {
		lines = lines[5:]
	}
	return strings.Join(lines, "\n")
}
