package model

type FailureReason string

const (
	FailureRenderFailed      FailureReason = "renderFailed"
	FailureCallMissed        FailureReason = "callMissed"
	FailureCapacityExhausted FailureReason = "capacityExhausted"
	FailureCallFailed        FailureReason = "callFailed"
	FailureCallTooShort      FailureReason = "callTooShort"
	FailureCancelled         FailureReason = "cancelled"
	FailureInternal          FailureReason = "internal"
)

type Failure struct {
	Reason  FailureReason
	Message string
}
