package service

import "cafeapi/model"

// Outcome tags the expected results of an operation. Failures are returned
// as errors instead.
type Outcome int

const (
	OK Outcome = iota
	NotFound
	NotAllowed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "success"
	case NotFound:
		return "Not Found"
	case NotAllowed:
		return "Not Allowed"
	default:
		return "unknown"
	}
}

// Result is the acknowledgement of a write. ID is set by Create.
type Result struct {
	Outcome Outcome
	Message string
	ID      uint
}

// SearchResult carries the matches, or a NotFound outcome naming the prefix
// when there are none. List is empty whenever Outcome is NotFound.
type SearchResult struct {
	Outcome Outcome
	Prefix  string
	Message string
	List    model.CafeList
}
