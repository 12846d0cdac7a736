package mempool

// Error is the mempool's own small set of admission-rejection reasons,
// following the same {Code, Msg} shape consensus.TxError uses.
type Error struct {
	Code string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code
	}
	return e.Code + ": " + e.Msg
}

func txerr(code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}
