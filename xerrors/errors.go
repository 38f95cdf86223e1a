// Package xerrors 定义定价库统一的错误类型：业务错误码、错误大类、调用栈与协议状态码映射。
package xerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorType 错误的大类
type ErrorType uint

const (
	ErrUnknown ErrorType = iota
	ErrInternal
	ErrInvalidArg
	ErrCanceled
	ErrDeadlineExceeded
)

var typeNames = [...]string{"Unknown", "Internal", "InvalidArg", "Canceled", "DeadlineExceeded"}

func (t ErrorType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[ErrUnknown]
}

// Error 带业务码的定价错误
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    int            `json:"code"`              // 业务错误码
	Message string         `json:"message"`           // 错误概要
	Detail  string         `json:"detail,omitempty"`  // 具体参数与取值
	Cause   error          `json:"-"`                 // 原始错误
	Stack   []string       `json:"-"`                 // 构造处的调用栈
	Context map[string]any `json:"context,omitempty"` // 请求序号、定价方法等附加信息
}

// Error 实现 error 接口
func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %d: %s (Cause: %v)", e.Type, e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %d: %s", e.Type, e.Code, msg)
}

// Unwrap 返回原始错误
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按业务错误码匹配，使 errors.Is(err, ErrInvalidParameter) 对携带不同 Detail 的新实例同样成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

// New 创建新错误并捕获调用栈
func New(errType ErrorType, code int, message, detail string, cause error) *Error {
	e := &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Detail:  detail,
		Cause:   cause,
		Context: make(map[string]any),
	}
	e.captureStack()
	return e
}

// captureStack 记录至多 10 层调用位置
func (e *Error) captureStack() {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // 跳过 Callers、captureStack、New
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		e.Stack = append(e.Stack, fmt.Sprintf("%s:%d (%s)", frame.File, frame.Line, frame.Function))
		if !more || len(e.Stack) >= depth {
			break
		}
	}
}

// WithContext 附加上下文字段，返回自身以便链式调用
func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// InvalidParameter 构造定价参数非法错误 (spot/strike/expiry 非正、步数或模拟次数越界等)
func InvalidParameter(format string, args ...any) *Error {
	return New(ErrInvalidArg, CodeInvalidParameter, "invalid parameter", fmt.Sprintf(format, args...), nil)
}

// InvalidModelState 构造模型状态不一致错误，例如风险中性概率落在 [0, 1] 之外
func InvalidModelState(format string, args ...any) *Error {
	return New(ErrInvalidArg, CodeInvalidModelState, "invalid model state", fmt.Sprintf(format, args...), nil)
}

// InvalidOptionType 构造不支持的期权类型错误
func InvalidOptionType(optionType string) *Error {
	return New(ErrInvalidArg, CodeInvalidOptionType, "invalid option type", fmt.Sprintf("supported types: CALL, PUT, got %q", optionType), nil)
}

// Domain 构造数学函数定义域错误
func Domain(format string, args ...any) *Error {
	return New(ErrInvalidArg, CodeDomain, "argument out of domain", fmt.Sprintf(format, args...), nil)
}

// InvalidInput 构造无法解析的输入错误
func InvalidInput(cause error, format string, args ...any) *Error {
	return New(ErrInvalidArg, CodeInvalidInput, "invalid input", fmt.Sprintf(format, args...), cause)
}

// Aborted 将 context 取消或超时转换为对应大类的错误，原错误保留为 Cause
func Aborted(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrDeadlineExceeded, CodeDeadlineExceeded, "pricing deadline exceeded", "", err)
	}
	return New(ErrCanceled, CodeCanceled, "pricing canceled", "", err)
}

// defaultCodes 包装普通错误时各大类使用的错误码
var defaultCodes = map[ErrorType]int{
	ErrInternal:         CodeInternal,
	ErrInvalidArg:       CodeInvalidInput,
	ErrCanceled:         CodeCanceled,
	ErrDeadlineExceeded: CodeDeadlineExceeded,
}

// Wrap 包装现有错误。err 已是 *Error 时沿用其类型、错误码与 Detail
func Wrap(err error, errType ErrorType, msg string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := FromError(err); ok {
		return New(e.Type, e.Code, msg, e.Detail, err)
	}
	return New(errType, defaultCodes[errType], msg, "", err)
}

// WrapInternal 包装内部错误
func WrapInternal(err error, msg string) *Error {
	return Wrap(err, ErrInternal, msg)
}

// statusClientClosedRequest 非标准状态码 499，表示调用方主动取消
const statusClientClosedRequest = 499

// HTTPStatus 映射 HTTP 状态码
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case ErrInvalidArg:
		return http.StatusBadRequest
	case ErrCanceled:
		return statusClientClosedRequest
	case ErrDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode 映射 gRPC 状态码
func (e *Error) GRPCCode() codes.Code {
	switch e.Type {
	case ErrInvalidArg:
		return codes.InvalidArgument
	case ErrCanceled:
		return codes.Canceled
	case ErrDeadlineExceeded:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// ToGRPCStatus 转换为 gRPC Status，消息包含 Detail
func (e *Error) ToGRPCStatus() *status.Status {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return status.New(e.GRPCCode(), msg)
}

// FromError 沿错误链查找 *Error
func FromError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
