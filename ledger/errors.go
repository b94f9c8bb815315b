package ledger

import "fmt"

type ErrorCode string

const (
	TX_ERR_PARSE         ErrorCode = "TX_ERR_PARSE"
	TX_ERR_SALT_ZERO     ErrorCode = "TX_ERR_SALT_ZERO"
	TX_ERR_GROUP_SHAPE   ErrorCode = "TX_ERR_GROUP_SHAPE"
	TX_ERR_INDEX_RANGE   ErrorCode = "TX_ERR_INDEX_RANGE"
	TX_ERR_KEY_INVALID   ErrorCode = "TX_ERR_KEY_INVALID"
	TX_ERR_TIME_WINDOW   ErrorCode = "TX_ERR_TIME_WINDOW"
	TX_ERR_DIGEST        ErrorCode = "TX_ERR_DIGEST"
	TX_ERR_ENCODE        ErrorCode = "TX_ERR_ENCODE"
	TX_ERR_HASH_INVALID  ErrorCode = "TX_ERR_HASH_INVALID"
	TX_ERR_VERSION       ErrorCode = "TX_ERR_VERSION"
	TX_ERR_TRAILING_DATA ErrorCode = "TX_ERR_TRAILING_DATA"
	TX_ERR_DUPLICATE_REF ErrorCode = "TX_ERR_DUPLICATE_REF"
)

type TxError struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *TxError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Code)
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TxError) Unwrap() error { return e.Err }

func txerr(code ErrorCode, msg string) error {
	return &TxError{Code: code, Msg: msg}
}

func txwrap(code ErrorCode, msg string, err error) error {
	return &TxError{Code: code, Msg: msg, Err: err}
}
