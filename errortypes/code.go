package errortypes

// Defines numeric codes for the router's well-known error kinds (spec §7).
const (
	UnknownErrorCode = 999

	ConfigInvalidErrorCode = iota
	AgentUnknownErrorCode
	BidLateErrorCode
	BidMalformedErrorCode
	BankerInsufficientErrorCode
	BankerUnavailableErrorCode
	DownstreamQueueFullErrorCode
	OrphanEventErrorCode
	InvariantViolatedErrorCode
)

// Coder provides an error code with severity.
type Coder interface {
	Code() int
	Severity() Severity
}

// ReadCode returns the error code, or UnknownErrorCode if unavailable.
func ReadCode(err error) int {
	if e, ok := err.(Coder); ok {
		return e.Code()
	}
	return UnknownErrorCode
}
