package protoerr

import (
	"strconv"
	"strings"
)

// VectorTagKind identifies the shape of a StatusVector entry, mirroring the
// tagged items the wire status vector is built from: a gds error code, a
// warning marker, an embedded string argument, a numeric argument, or the
// terminating tag.
type VectorTagKind int

const (
	TagEnd VectorTagKind = iota
	TagGdsCode
	TagWarning
	TagCString
	TagNumber
	TagString
)

// VectorEntry is a single tagged item in a StatusVector.
type VectorEntry struct {
	Tag    VectorTagKind
	Code   int32  // valid when Tag is TagGdsCode or TagWarning
	Number int64  // valid when Tag is TagNumber
	Text   string // valid when Tag is TagCString or TagString
}

// StatusVector is the wire status-vector shape: a sequence of tagged items
// terminated by TagEnd. It is the carrier for application errors (Kind
// KindApplication) and for the warnings that ride alongside a success
// response.
type StatusVector struct {
	Entries []VectorEntry
}

// NewStatusVector builds a StatusVector from a primary gds-code and its
// message arguments, terminated implicitly.
func NewStatusVector(code int32, args ...string) *StatusVector {
	sv := &StatusVector{Entries: []VectorEntry{{Tag: TagGdsCode, Code: code}}}
	for _, a := range args {
		sv.Entries = append(sv.Entries, VectorEntry{Tag: TagString, Text: a})
	}
	sv.Entries = append(sv.Entries, VectorEntry{Tag: TagEnd})
	return sv
}

// AddWarning appends a warning entry to the vector, preserving insertion
// order relative to any prior gds-code entries.
func (sv *StatusVector) AddWarning(code int32) {
	sv.insertBeforeEnd(VectorEntry{Tag: TagWarning, Code: code})
}

// HasWarning reports whether the vector carries at least one warning entry.
func (sv *StatusVector) HasWarning() bool {
	for _, e := range sv.Entries {
		if e.Tag == TagWarning {
			return true
		}
	}
	return false
}

// HasError reports whether the vector carries at least one non-zero gds-code
// entry, i.e. whether "get error text" would return a non-empty block.
func (sv *StatusVector) HasError() bool {
	for _, e := range sv.Entries {
		if e.Tag == TagGdsCode && e.Code != 0 {
			return true
		}
	}
	return false
}

func (sv *StatusVector) insertBeforeEnd(e VectorEntry) {
	for i, existing := range sv.Entries {
		if existing.Tag == TagEnd {
			sv.Entries = append(sv.Entries[:i], append([]VectorEntry{e}, sv.Entries[i:]...)...)
			return
		}
	}
	sv.Entries = append(sv.Entries, e)
}

// Text formats the status vector into the newline-separated, code-prefixed
// text block spec.md's "get error text" callers receive: one line per
// gds-code/warning entry, with any trailing string/number arguments folded
// into that line.
func (sv *StatusVector) Text() string {
	var b strings.Builder

	flush := func(prefix string, code int32) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(prefix)
		b.WriteString(strconv.FormatInt(int64(code), 10))
	}

	for _, e := range sv.Entries {
		switch e.Tag {
		case TagGdsCode:
			flush("-", e.Code)
		case TagWarning:
			flush("+", e.Code)
		case TagCString, TagString:
			b.WriteByte(' ')
			b.WriteString(e.Text)
		case TagNumber:
			b.WriteByte(' ')
			b.WriteString(strconv.FormatInt(e.Number, 10))
		case TagEnd:
			// no trailing line for the terminator itself
		}
	}

	return b.String()
}
