package models

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusExecuted    Status = "EXECUTED"
	StatusRejected    Status = "REJECTED"
	StatusCancelled   Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusExecuted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected || s == StatusCancelled
}

type Event string

const (
	EventCreate  Event = "create"
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventCancel  Event = "cancel"
	EventExecute Event = "execute"
)

// transitions holds every legal (state, event) edge. Approve may also loop
// on UNDER_REVIEW while hops remain; Next resolves that with the hop count.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventSubmit: StatusUnderReview,
		EventCancel: StatusCancelled,
	},
	StatusUnderReview: {
		EventApprove: StatusApproved,
		EventReject:  StatusRejected,
		EventCancel:  StatusCancelled,
	},
	StatusApproved: {
		EventExecute: StatusExecuted,
		EventCancel:  StatusCancelled,
	},
}

// Allowed reports whether event is a legal edge out of from.
func Allowed(from Status, event Event) bool {
	_, ok := transitions[from][event]
	return ok
}

// Next returns the state reached by event from from. hopsRemaining only
// matters for approve: while it is above zero the requisition stays in review.
func Next(from Status, event Event, hopsRemaining int) (Status, bool) {
	to, ok := transitions[from][event]
	if !ok {
		return "", false
	}
	if event == EventApprove && hopsRemaining > 0 {
		return StatusUnderReview, true
	}
	return to, true
}
