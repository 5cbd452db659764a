package gateway

import "fmt"

// Kind classifies the outcome of a remote call
type Kind int

const (
	KindSuccess Kind = iota
	// KindTransient covers transport errors, timeouts, 5xx and 429. Retry later.
	KindTransient
	// KindPermanent covers other non-2xx statuses and undecodable bodies
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the tagged outcome of a gateway call. Value is only meaningful
// when Kind is KindSuccess.
type Result[T any] struct {
	Value      T
	Kind       Kind
	StatusCode int
	Err        error
}

// OK reports whether the call succeeded
func (r Result[T]) OK() bool {
	return r.Kind == KindSuccess
}

func success[T any](v T, status int) Result[T] {
	return Result[T]{Value: v, Kind: KindSuccess, StatusCode: status}
}

func transient[T any](status int, err error) Result[T] {
	return Result[T]{Kind: KindTransient, StatusCode: status, Err: err}
}

func permanent[T any](status int, err error) Result[T] {
	return Result[T]{Kind: KindPermanent, StatusCode: status, Err: err}
}

// classifyStatus maps a non-2xx HTTP status to a result kind
func classifyStatus(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return KindSuccess
	case status == 429, status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}
