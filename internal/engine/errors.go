package engine

// Validation error codes carried in OP_ERROR payloads. Negative,
// non-overlapping with any framing-level code a caller might also surface.
const (
	CodeInvalidIndex     int32 = -1
	CodeInsufficientMana int32 = -2
	CodeInvalidCard      int32 = -3
	CodeBadPayload       int32 = -10
	CodeNotYourTurn      int32 = -11
	CodeWrongPhase       int32 = -12
	CodeUnknownOpcode    int32 = -99
	CodeStoreFull        int32 = -999
)

// ValidationError is a non-fatal rule violation: the connection stays
// open and the caller is expected to reply with OP_ERROR(Code, Msg).
type ValidationError struct {
	Code int32
	Msg  string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErr(code int32, msg string) error {
	return &ValidationError{Code: code, Msg: msg}
}
