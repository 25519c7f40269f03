// Package errors 提供带错误码的业务错误
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 业务错误
type Error struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	HTTPStatus int               `json:"-"`
	Cause      error             `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 实现 errors.Is 接口
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Copy 复制错误
func (e *Error) Copy() *Error {
	details := make(map[string]string, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	return &Error{
		Code:       e.Code,
		Message:    e.Message,
		HTTPStatus: e.HTTPStatus,
		Cause:      e.Cause,
		Details:    details,
	}
}

// WithMessage 替换错误消息
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	newErr := e.Copy()
	newErr.Message = fmt.Sprintf(format, args...)
	return newErr
}

// WithCause 附加底层错误
func (e *Error) WithCause(cause error) *Error {
	newErr := e.Copy()
	newErr.Cause = cause
	return newErr
}

// WithDetail 附加单个详情
func (e *Error) WithDetail(key, value string) *Error {
	newErr := e.Copy()
	if newErr.Details == nil {
		newErr.Details = make(map[string]string)
	}
	newErr.Details[key] = value
	return newErr
}

// New 创建业务错误
func New(code, message string, httpStatus int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// AsError 将任意错误归一化为业务错误
// 非业务错误统一映射为 INTERNAL
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var bizErr *Error
	if errors.As(err, &bizErr) {
		return bizErr
	}
	return ErrInternal.WithCause(err)
}

// 网关错误码表
// 错误处置策略见各服务层: RPC 瞬时错误在 TronGrid 客户端内部重试，编排器不再重试，错误原样上抛
var (
	ErrInternal = New("INTERNAL", "internal error", http.StatusInternalServerError)

	// 请求错误
	ErrBadRequest       = New("BAD_REQUEST", "invalid request", http.StatusBadRequest)
	ErrInvalidAddress   = New("INVALID_ADDRESS", "invalid tron address", http.StatusBadRequest)
	ErrInvalidAmount    = New("INVALID_AMOUNT", "invalid amount", http.StatusBadRequest)
	ErrChecksum         = New("CHECKSUM_ERROR", "address checksum mismatch", http.StatusBadRequest)
	ErrWalletNotFound   = New("WALLET_NOT_FOUND", "wallet not found", http.StatusNotFound)
	ErrTransferNotFound = New("TRANSFER_NOT_FOUND", "transfer not found", http.StatusNotFound)

	// 业务状态错误
	ErrWalletInactive            = New("WALLET_INACTIVE", "wallet is not activated yet", http.StatusConflict)
	ErrWalletCompromised         = New("WALLET_COMPROMISED", "wallet key does not match stored address", http.StatusConflict)
	ErrInsufficientUserBalance   = New("INSUFFICIENT_USER_BALANCE", "user wallet balance is insufficient", http.StatusUnprocessableEntity)
	ErrInsufficientMasterBalance = New("INSUFFICIENT_MASTER_BALANCE", "master wallet balance is insufficient", http.StatusServiceUnavailable)
	ErrDuplicateReference        = New("DUPLICATE_REFERENCE", "reference id already used", http.StatusConflict)
	ErrClientCancelled           = New("CLIENT_CANCELLED", "transfer cancelled by client", http.StatusConflict)

	// 链路错误
	ErrRpcUnavailable    = New("RPC_UNAVAILABLE", "tron rpc unavailable", http.StatusBadGateway)
	ErrBroadcastRejected = New("BROADCAST_REJECTED", "transaction rejected by node", http.StatusBadGateway)
	ErrReceiptFailure    = New("RECEIPT_FAILURE", "on-chain receipt reported failure", http.StatusBadGateway)
	ErrKeyMismatch       = New("KEY_MISMATCH", "derived address does not match stored address", http.StatusInternalServerError)
	ErrPollTimeout       = New("POLL_TIMEOUT", "confirmation polling timed out", http.StatusAccepted)
	ErrVisibilityTimeout = New("VISIBILITY_TIMEOUT", "sponsored funds not visible in time", http.StatusBadGateway)
)

// IsRetryable 判断错误是否可重试
// 只有 RPC 层的瞬时错误可重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRpcUnavailable)
}
