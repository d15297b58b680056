// Package errs defines the closed taxonomy of error kinds. The fetcher wraps
// its failures through this type so callers can branch on Kind rather than
// on error string matching; other components return plain wrapped errors.
package errs

import "fmt"

// Kind is a closed enum of the error categories the platform distinguishes.
type Kind int

const (
	InsufficientData Kind = iota
	InvalidData
	CalculationError
	ApiError
	Timeout
	ServiceUnavailable
	ModelNotLoaded
	RateLimited
	BrokerRejection
	RiskGateRejection
	CircuitBreakerTriggered
)

func (k Kind) String() string {
	switch k {
	case InsufficientData:
		return "insufficient_data"
	case InvalidData:
		return "invalid_data"
	case CalculationError:
		return "calculation_error"
	case ApiError:
		return "api_error"
	case Timeout:
		return "timeout"
	case ServiceUnavailable:
		return "service_unavailable"
	case ModelNotLoaded:
		return "model_not_loaded"
	case RateLimited:
		return "rate_limited"
	case BrokerRejection:
		return "broker_rejection"
	case RiskGateRejection:
		return "risk_gate_rejection"
	case CircuitBreakerTriggered:
		return "circuit_breaker_triggered"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across package boundaries. Reason
// carries a risk-gate rejection reason; Triggers carries circuit-breaker
// trigger names. Both are empty for other kinds.
type Error struct {
	kind     Kind
	msg      string
	Reason   string
	Triggers []string
	cause    error
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Wrap(kind Kind, cause error) *Error {
	return &Error{kind: kind, msg: cause.Error(), cause: cause}
}

func RiskRejection(reason string) *Error {
	return &Error{kind: RiskGateRejection, msg: "risk gate rejected trade", Reason: reason}
}

func CircuitBreaker(triggers []string) *Error {
	return &Error{kind: CircuitBreakerTriggered, msg: "circuit breaker triggered", Triggers: triggers}
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.kind == RiskGateRejection {
		return fmt.Sprintf("risk gate rejected: %s", e.Reason)
	}
	if e.kind == CircuitBreakerTriggered {
		return fmt.Sprintf("circuit breaker triggered: %v", e.Triggers)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is allows errors.Is(err, errs.New(kind, "")) to match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.kind == kind
	}
	return false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
