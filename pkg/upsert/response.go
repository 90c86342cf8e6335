package upsert

// ItemOutcome is one item's terminal result, positioned by Location
// (the index the caller assigned it, spec.md §5 "the response
// preserves input order by item.location").
type ItemOutcome struct {
	Location         int
	ID               string
	SeqNo            int64
	Version          int64
	TranslogLocation int64
	Skipped          bool
	Interrupted      bool
	Failure          error
}

// Response is a shard's reply to one ShardWriteRequest (spec.md §3/§4.4).
type Response struct {
	Items []ItemOutcome

	// BatchFailure is set when continue-on-error is unset and the
	// first non-retriable failure aborted the batch (spec.md §4.4
	// "Continue-on-error").
	BatchFailure error
}

func successOutcome(loc int, id string, seqNo, version, location int64) ItemOutcome {
	return ItemOutcome{Location: loc, ID: id, SeqNo: seqNo, Version: version, TranslogLocation: location}
}

func skippedOutcome(loc int, id string) ItemOutcome {
	return ItemOutcome{Location: loc, ID: id, Skipped: true}
}

func interruptedOutcome(loc int, id string) ItemOutcome {
	return ItemOutcome{Location: loc, ID: id, Interrupted: true}
}

func failureOutcome(loc int, id string, err error) ItemOutcome {
	return ItemOutcome{Location: loc, ID: id, Failure: err}
}
