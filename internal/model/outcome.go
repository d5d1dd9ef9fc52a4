package model

import (
	"errors"
	"sort"
)

// ErrNotFound is the reason recorded when a page carries no element for a field.
var ErrNotFound = errors.New("element not found")

// Status describes how one extraction attempt for a field ended.
type Status int

const (
	StatusAbsent Status = iota
	StatusFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusFailed:
		return "failed"
	}
	return "absent"
}

// Outcome is the typed result of extracting a single field.
type Outcome struct {
	Status Status
	Value  string
	Reason error
}

func Found(value string) Outcome { return Outcome{Status: StatusFound, Value: value} }

// Absent records a field the source simply does not carry.
func Absent() Outcome { return Outcome{Status: StatusAbsent, Reason: ErrNotFound} }

// Failed records a field that was present but could not be used.
func Failed(reason error) Outcome { return Outcome{Status: StatusFailed, Reason: reason} }

// Report keeps the outcome of every field touched while building a Business.
type Report map[Field]Outcome

// Failed returns the fields whose extraction failed, in column order.
func (r Report) Failed() []Field {
	return r.with(StatusFailed)
}

// Missing returns every field that did not end up set, in column order.
func (r Report) Missing() []Field {
	var out []Field
	for _, f := range Fields {
		if o, ok := r[f]; !ok || o.Status != StatusFound {
			out = append(out, f)
		}
	}
	return out
}

func (r Report) with(s Status) []Field {
	var out []Field
	for f, o := range r {
		if o.Status == s {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return index(out[i]) < index(out[j]) })
	return out
}

func index(f Field) int {
	for i, c := range Fields {
		if c == f {
			return i
		}
	}
	return len(Fields)
}
