// Package revert 定义合约调用失败的错误分类。
//
// 所有合约操作要么完整提交，要么以 *Error 失败且不留下任何状态变化。
package revert

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind 错误类别
type Kind int

const (
	KindUnknown Kind = iota
	KindUninitializedImplementation
	KindForwardedCallFailed
	KindContractPaused
	KindCounterOverflow
	KindInvalidSeed
	KindInvalidImplementation
	KindUnauthorized
	KindReentrantCall
	KindNoCode
	KindUnsupportedMethod
)

var kindNames = map[Kind]string{
	KindUnknown:                     "Unknown",
	KindUninitializedImplementation: "UninitializedImplementation",
	KindForwardedCallFailed:         "ForwardedCallFailed",
	KindContractPaused:              "ContractPaused",
	KindCounterOverflow:             "CounterOverflow",
	KindInvalidSeed:                 "InvalidSeed",
	KindInvalidImplementation:       "InvalidImplementation",
	KindUnauthorized:                "Unauthorized",
	KindReentrantCall:               "ReentrantCall",
	KindNoCode:                      "NoCode",
	KindUnsupportedMethod:           "UnsupportedMethod",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind 按名称解析 Kind，未知名称返回 KindUnknown。
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// Error 一次被回滚的调用。
// Reason 是面向调用方的可读原因；Cause 是被转发的内部失败（可为空）。
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason == "" {
		return "execution reverted: " + e.Kind.String()
	}
	return "execution reverted: " + e.Reason
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is 按类别匹配，原因文本不参与比较。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors，用于 errors.Is 比较。
var (
	ErrUninitializedImplementation = New(KindUninitializedImplementation, "Implementation is not set.")
	ErrForwardedCallFailed         = New(KindForwardedCallFailed, "Forwarded call failed.")
	ErrContractPaused              = New(KindContractPaused, "Contract is stopped.")
	ErrCounterOverflow             = New(KindCounterOverflow, "Counter overflow.")
	ErrInvalidSeed                 = New(KindInvalidSeed, "Initial counter must be a non-negative 256-bit integer.")
	ErrInvalidImplementation       = New(KindInvalidImplementation, "Invalid implementation address.")
	ErrUnauthorized                = New(KindUnauthorized, "Caller is not authorized.")
	ErrReentrantCall               = New(KindReentrantCall, "Reentrant call.")
	ErrNoCode                      = New(KindNoCode, "No code at address.")
	ErrUnsupportedMethod           = New(KindUnsupportedMethod, "Method is not supported by this code.")
)

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Forwarded 将委托执行的内部失败包装为 ForwardedCallFailed，尽量保留内部原因。
func Forwarded(inner error) *Error {
	if inner == nil {
		return nil
	}
	reason := inner.Error()
	var re *Error
	if errors.As(inner, &re) && re.Reason != "" {
		reason = re.Reason
	}
	return &Error{Kind: KindForwardedCallFailed, Reason: reason, Cause: inner}
}

// KindOf 返回最外层 revert 的类别；非 revert 错误返回 KindUnknown。
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsRevert 判断 err 是否为合约层面的回滚（区别于存储等基础设施错误）。
func IsRevert(err error) bool {
	var re *Error
	return errors.As(err, &re)
}
