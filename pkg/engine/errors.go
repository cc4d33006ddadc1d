package engine

// ErrorCode is the typed error surfaced verbatim across the dispatch
// boundary. One error kind means one atomic instruction rejection: the
// engine never partially applies state.
type ErrorCode int

const (
	_ ErrorCode = iota
	InsufficientByteLength
	MismatchedDataLengths
	UnalignedData
	UnallocatedAccountData
	InvalidAccountDiscriminant
	InvalidSectorIndex
	IndexOutOfBounds
	InvalidIndexHint
	NoFreeSectors
	UserAlreadyExists
	SeatHasOpenOrders
	OrderWithPriceAlreadyExists
	UserHasMaxOrders
	OrderNotFound
	PostOnlyWouldImmediatelyFill
	OrdersNotSorted
	InsufficientUserBalance
	ArithmeticOverflow
	InvalidMintAccount
	InvalidPriceMantissa
	InvalidBiasedExponent
	AmountCannotBeZero
	NotEnoughAccountKeys
	InvalidInstructionData
)

var errorNames = [...]string{
	"",
	"InsufficientByteLength",
	"MismatchedDataLengths",
	"UnalignedData",
	"UnallocatedAccountData",
	"InvalidAccountDiscriminant",
	"InvalidSectorIndex",
	"IndexOutOfBounds",
	"InvalidIndexHint",
	"NoFreeSectors",
	"UserAlreadyExists",
	"SeatHasOpenOrders",
	"OrderWithPriceAlreadyExists",
	"UserHasMaxOrders",
	"OrderNotFound",
	"PostOnlyWouldImmediatelyFill",
	"OrdersNotSorted",
	"InsufficientUserBalance",
	"ArithmeticOverflow",
	"InvalidMintAccount",
	"InvalidPriceMantissa",
	"InvalidBiasedExponent",
	"AmountCannotBeZero",
	"NotEnoughAccountKeys",
	"InvalidInstructionData",
}

// Error adapts an ErrorCode to the standard error interface so call sites
// can use normal Go error handling while callers that need the raw code can
// type-assert back to *Error.
type Error struct {
	Code ErrorCode
}

func (e *Error) Error() string {
	if int(e.Code) < 0 || int(e.Code) >= len(errorNames) {
		return "UnknownError"
	}
	return errorNames[e.Code]
}

// Err wraps an ErrorCode as an error. Every fallible engine operation
// returns one of these (or nil) rather than a bare ErrorCode so callers can
// use errors.As (or CodeOf) and compare the resulting Code. Each call
// allocates a new *Error, so errors.Is against another Err value does not
// match.
func Err(code ErrorCode) error {
	return &Error{Code: code}
}

// CodeOf extracts the ErrorCode from an error produced by this package, or
// zero if err is nil or not one of ours.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return 0
}
