package errors

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
)

// AppError 业务错误，携带错误码和给调用方的提示信息
// 不向外暴露SQL文本或堆栈
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// New 创建业务错误
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NewValidation 参数或业务校验错误
func NewValidation(message string) *AppError {
	return &AppError{Code: CodeInvalidParam, Message: message}
}

// NewUnauthorized 未认证
func NewUnauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

// NewForbidden 已认证但无权限
func NewForbidden(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

// NewNotFound 资源不存在
func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

// NewConflict 唯一性冲突或不可变规则被违反
func NewConflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewInfrastructure 基础设施错误（DDL失败、连接中断等）
func NewInfrastructure(message string) *AppError {
	return &AppError{Code: CodeServerError, Message: message}
}
