package transaction

// outcome is what the owner asked for through Success and Failure.
type outcome uint8

const (
	outcomeNone outcome = iota
	outcomeSuccess
	outcomeFailure
	// outcomeConflicting is both Success and Failure, in either order.
	outcomeConflicting
)

func (o outcome) withSuccess() outcome {
	switch o {
	case outcomeNone:
		return outcomeSuccess
	case outcomeFailure:
		return outcomeConflicting
	default:
		return o
	}
}

func (o outcome) withFailure() outcome {
	switch o {
	case outcomeNone:
		return outcomeFailure
	case outcomeSuccess:
		return outcomeConflicting
	default:
		return o
	}
}

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeFailure:
		return "failure"
	case outcomeConflicting:
		return "conflicting"
	default:
		return "none"
	}
}

type closeAction uint8

const (
	actionRollback closeAction = iota
	actionCommit
)

// resolve decides what Close does. reason is empty unless the transaction was
// marked for termination. Termination always wins over a requested commit,
// also when the outcome is conflicting.
func resolve(o outcome, reason Reason) (closeAction, error) {
	if reason != "" {
		if o == outcomeSuccess || o == outcomeConflicting {
			return actionRollback, &TerminatedError{Reason: reason}
		}
		return actionRollback, nil
	}
	switch o {
	case outcomeSuccess:
		return actionCommit, nil
	case outcomeConflicting:
		return actionRollback, &CommitFailureError{Msg: "transaction rolled back even if marked as successful"}
	default:
		return actionRollback, nil
	}
}
