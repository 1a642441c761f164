package unban

// Outcome is the result of one remove-ban attempt: either succeeded or
// failed with a human-readable reason. The zero value is a success.
type Outcome struct {
	failed bool
	reason string
}

// Succeeded returns a successful outcome.
func Succeeded() Outcome {
	return Outcome{}
}

// Failed returns a failed outcome carrying reason.
func Failed(reason string) Outcome {
	return Outcome{failed: true, reason: reason}
}

// OK reports whether the unban succeeded.
func (o Outcome) OK() bool {
	return !o.failed
}

// Reason returns the failure reason, or "" for a success.
func (o Outcome) Reason() string {
	return o.reason
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o.failed {
		return "failed: " + o.reason
	}
	return "succeeded"
}
