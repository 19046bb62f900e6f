// Package errs 定义返回给 API 和 relay 客户端的错误分类
package errs

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidEntry  Code = "INVALID_ENTRY"
	CodeInvalidValue  Code = "INVALID_VALUE"
	CodeNonExistent   Code = "NON_EXISTENT"
	CodeInvalidOwner  Code = "INVALID_OWNER"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeInvalidAuth   Code = "INVALID_AUTH"
	CodeInvalidToken  Code = "INVALID_TOKEN"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeServerError   Code = "SERVER_ERROR"
)

type AppError struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"data,omitempty"`
	Cause   error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is 按 code 匹配，errors.Is(err, errs.ErrNotFound) 可直接与下方哨兵值比较
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// InvalidInput 请求参数错误；带字段名时放入 Fields，响应使用 INVALID_ENTRY
func InvalidInput(field, msg string) error {
	if field == "" {
		return New(CodeInvalidValue, msg)
	}
	return &AppError{Code: CodeInvalidEntry, Message: "Invalid Entry", Fields: map[string]string{field: msg}}
}

func InvalidFields(fields map[string]string) error {
	return &AppError{Code: CodeInvalidEntry, Message: "Invalid Entry", Fields: fields}
}

func NotFound(msg string) error { return New(CodeNonExistent, msg) }

func Forbidden(msg string) error { return New(CodeInvalidOwner, msg) }

func Conflict(msg string) error { return New(CodeAlreadyExists, msg) }

func Unauthenticated(msg string) error { return New(CodeInvalidAuth, msg) }

func InvalidToken(msg string) error { return New(CodeInvalidToken, msg) }

func RateLimited(msg string) error { return New(CodeRateLimited, msg) }

func Internal(cause error) error {
	return Wrap(CodeServerError, "Server Error", cause)
}

// 只比较 code 的哨兵值
var (
	ErrInvalidInput    = &AppError{Code: CodeInvalidValue}
	ErrInvalidEntry    = &AppError{Code: CodeInvalidEntry}
	ErrNotFound        = &AppError{Code: CodeNonExistent}
	ErrForbidden       = &AppError{Code: CodeInvalidOwner}
	ErrConflict        = &AppError{Code: CodeAlreadyExists}
	ErrUnauthenticated = &AppError{Code: CodeInvalidAuth}
)

// CodeOf 返回 err 的错误码，非 *AppError 返回 CodeServerError
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// IsInvalidInput 两种参数错误都算
func IsInvalidInput(err error) bool {
	c := CodeOf(err)
	return c == CodeInvalidEntry || c == CodeInvalidValue
}
