package service

import "errors"

// 业务层错误分类，handler 据此映射 HTTP 状态码和稳定的错误标识。
var (
	ErrValidation           = errors.New("validation_error")
	ErrAuthenticationFailed = errors.New("authentication_failed")
	ErrInvalidSession       = errors.New("invalid_session")
	ErrForbidden            = errors.New("forbidden")
	ErrUnknownUser          = errors.New("unknown_user")
	ErrUnknownChat          = errors.New("unknown_chat")
)
