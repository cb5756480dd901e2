package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 复制一个错误码并替换提示信息
func (e Errno) WithMessage(msg string) *Errno {
	return &Errno{Code: e.Code, Message: msg}
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var ptr *Errno
	if errors.As(err, &ptr) {
		return ptr.Code, ptr.Message
	}
	var val Errno
	if errors.As(err, &val) {
		return val.Code, val.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrUpstream         = Errno{Code: 10005, Message: "Upstream service temporarily unavailable"}
)

// Business Errors (20000+)
var (
	ErrValidation          = Errno{Code: 20001, Message: "Validation failed"}
	ErrUnsupportedCurrency = Errno{Code: 20002, Message: "Unsupported currency"}
	ErrAddressNotFound     = Errno{Code: 20201, Message: "Address not found"}
	ErrDepositNotFound     = Errno{Code: 20301, Message: "Deposit not found"}
	ErrWithdrawalNotFound  = Errno{Code: 20401, Message: "Withdrawal not found"}
	ErrInsufficientBalance = Errno{Code: 20402, Message: "Insufficient balance"}
	ErrWithdrawalLimit     = Errno{Code: 20403, Message: "Withdrawal limit exceeded"}
	ErrWithdrawalState     = Errno{Code: 20404, Message: "Withdrawal is not in a reviewable state"}
	ErrAlreadyReviewed     = Errno{Code: 20405, Message: "Admin has already reviewed this withdrawal"}
)
