// Package apperr 定义服务层返回的带类型错误
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured 运行所需的外部服务缺少配置，各依赖包的同名错误都包装它
var ErrNotConfigured = errors.New("not configured")

// ConfigErrorMessage 缺少配置时返回给调用方的消息
const ConfigErrorMessage = "Server configuration error"

// Kind 错误类型
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindValidation
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Status 返回错误类型对应的 HTTP 状态码
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error 带类型的业务错误，Message 面向调用方，Err 为内部原因
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Dependency 外部服务（对象存储、认证服务）调用失败
func Dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf 提取错误类型，非 *Error 一律视为 KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Render 返回状态码与对外消息
// 未分类错误只返回通用消息，避免泄露内部细节
// 缺少配置的错误不论被哪一层包装都渲染为 ConfigErrorMessage
func Render(err error) (int, string) {
	if errors.Is(err, ErrNotConfigured) {
		return http.StatusInternalServerError, ConfigErrorMessage
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Status(), e.Message
	}
	return http.StatusInternalServerError, "Internal server error"
}
