// backend/internal/domain/payment/service.go
package payment

// State is a checkout orchestration state.
//
//	CREATED -> AUTHORIZED -> CAPTURED -> ORDER_RECORDED | ORDER_RECORD_FAILED
type State string

const (
	StateCreated           State = "CREATED"
	StateAuthorized        State = "AUTHORIZED"
	StateCaptured          State = "CAPTURED"
	StateOrderRecorded     State = "ORDER_RECORDED"
	StateOrderRecordFailed State = "ORDER_RECORD_FAILED"
)

// Terminal reports whether the orchestration stops at s.
func (s State) Terminal() bool {
	return s == StateOrderRecorded || s == StateOrderRecordFailed
}

// next lists the legal transitions.
var next = map[State][]State{
	StateCreated:    {StateAuthorized},
	StateAuthorized: {StateCaptured},
	StateCaptured:   {StateOrderRecorded, StateOrderRecordFailed},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
