package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - Signal 错误：NOT_FOUND（快照中不存在该内容）
//   - Rank 错误：INVALID_ARGUMENT（limit / 权重 / 候选结构非法）、DATA_QUALITY（脏数据，非致命）
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "DATA_QUALITY"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "signal", "rank"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链中是否有 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建带底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound        = "NOT_FOUND"        // 资源不存在
	ErrorCodeInvalidArgument = "INVALID_ARGUMENT" // 参数非法，直接返回调用方
	ErrorCodeDataQuality     = "DATA_QUALITY"     // 数据质量问题，告警但不中断
	ErrorCodeInternalError   = "INTERNAL_ERROR"   // 内部错误
)

// 模块名称常量
const (
	ModuleStore   = "store"   // 存储模块
	ModuleSignal  = "signal"  // 信号快照
	ModuleScore   = "score"   // 打分器
	ModuleRank    = "rank"    // 聚合排序
	ModuleFilter  = "filter"  // 过滤器
	ModuleService = "service" // 服务入口
)

// 通用错误检查函数

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsInvalidArgument 检查错误是否为 INVALID_ARGUMENT
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrorCodeInvalidArgument)
}

// IsDataQuality 检查错误是否为 DATA_QUALITY
func IsDataQuality(err error) bool {
	return hasCode(err, ErrorCodeDataQuality)
}

// InvalidArgument 创建 INVALID_ARGUMENT 错误
func InvalidArgument(module, message string) *DomainError {
	return NewDomainError(module, ErrorCodeInvalidArgument, message)
}

// DataQuality 创建 DATA_QUALITY 错误
func DataQuality(module, message string) *DomainError {
	return NewDomainError(module, ErrorCodeDataQuality, message)
}
