package xerrors

// 定价相关业务错误码。
const (
	CodeInvalidInput      = 400002
	CodeInvalidOptionType = 400004
	CodeInvalidParameter  = 400101
	CodeInvalidModelState = 400102
	CodeDomain            = 400103
	CodeCanceled          = 499001
	CodeInternal          = 500001
	CodeDeadlineExceeded  = 504001
)

var (
	// ErrInvalidInput 输入无法解析，例如批量请求中格式错误的 JSON 行。
	ErrInvalidInput = New(ErrInvalidArg, CodeInvalidInput, "invalid input", "check your input format", nil)
	// ErrInvalidOptionType 无效的期权类型。
	ErrInvalidOptionType = New(ErrInvalidArg, CodeInvalidOptionType, "invalid option type", "supported types: CALL, PUT", nil)
	// ErrInvalidParameter 定价参数非法：spot/strike/expiry 非正、波动率为负、步数或模拟次数越界。
	ErrInvalidParameter = New(ErrInvalidArg, CodeInvalidParameter, "invalid parameter", "check pricing parameters", nil)
	// ErrInvalidModelState 风险中性概率超出 [0, 1]，利率、波动率与步长组合不一致。
	ErrInvalidModelState = New(ErrInvalidArg, CodeInvalidModelState, "invalid model state", "risk-neutral probability must lie in [0, 1]", nil)
	// ErrDomain 分位数函数的输入不在 (0, 1) 内。
	ErrDomain = New(ErrInvalidArg, CodeDomain, "argument out of domain", "probability must lie in (0, 1)", nil)
)
