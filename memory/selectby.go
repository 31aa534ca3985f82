package memory

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSelectBy is returned when a SelectBy cannot be decoded.
var ErrInvalidSelectBy = errors.New("memory: invalid selectBy")

type selectKind int

const (
	selectLast selectKind = iota
	selectFirst
	selectAll
)

// SelectBy describes which messages of a thread a query returns. Exactly one
// of last N, first N or all is selected.
type SelectBy struct {
	kind selectKind
	n    int
}

// Last selects the n newest messages, newest first.
func Last(n int) SelectBy {
	return SelectBy{kind: selectLast, n: n}
}

// First selects the n oldest messages, oldest first.
func First(n int) SelectBy {
	return SelectBy{kind: selectFirst, n: n}
}

// All selects every message up to the adapter's MaxAllMessages cap, newest
// first.
func All() SelectBy {
	return SelectBy{kind: selectAll}
}

// Kind returns "last", "first" or "all".
func (s SelectBy) Kind() string {
	switch s.kind {
	case selectFirst:
		return "first"
	case selectAll:
		return "all"
	default:
		return "last"
	}
}

// N returns the requested count. It is zero for All.
func (s SelectBy) N() int {
	return s.n
}

func (s SelectBy) String() string {
	if s.kind == selectAll {
		return "all"
	}
	return fmt.Sprintf("%s(%d)", s.Kind(), s.n)
}

type selectByJSON struct {
	Last  *int  `json:"last,omitempty"`
	First *int  `json:"first,omitempty"`
	All   *bool `json:"all,omitempty"`
}

// MarshalJSON encodes s as {"last":N}, {"first":N} or {"all":true}.
func (s SelectBy) MarshalJSON() ([]byte, error) {
	var out selectByJSON
	switch s.kind {
	case selectFirst:
		out.First = &s.n
	case selectAll:
		t := true
		out.All = &t
	default:
		out.Last = &s.n
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes {"last":N}, {"first":N} or {"all":true}.
func (s *SelectBy) UnmarshalJSON(data []byte) error {
	var in selectByJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSelectBy, err)
	}

	set := 0
	if in.Last != nil {
		set++
		*s = Last(*in.Last)
	}
	if in.First != nil {
		set++
		*s = First(*in.First)
	}
	if in.All != nil {
		set++
		if !*in.All {
			return fmt.Errorf("%w: all must be true", ErrInvalidSelectBy)
		}
		*s = All()
	}
	if set != 1 {
		return fmt.Errorf("%w: exactly one of last, first or all is required", ErrInvalidSelectBy)
	}
	return nil
}
