package xdr

import (
	"fmt"

	"github.com/fbremote/fbremote/internal/protoerr"
)

// Wire tags for a status-vector entry. These values are carried verbatim on
// the wire and must match between client and server independent of the host
// protoerr.VectorTagKind numbering, so they are declared separately here.
const (
	tagEnd     = 0
	tagGdsCode = 1
	tagWarning = 2
	tagCString = 3
	tagNumber  = 4
	tagString  = 5
)

// PutStatusVector encodes a tagged status vector: a sequence of
// {tag, payload} pairs terminated by tagEnd, as used by every response
// packet's status field.
func PutStatusVector(c *Codec, sv *protoerr.StatusVector) error {
	for _, e := range sv.Entries {
		switch e.Tag {
		case protoerr.TagEnd:
			if err := c.PutUint32(tagEnd); err != nil {
				return err
			}
		case protoerr.TagGdsCode:
			if err := c.PutUint32(tagGdsCode); err != nil {
				return err
			}
			if err := c.PutInt32(e.Code); err != nil {
				return err
			}
		case protoerr.TagWarning:
			if err := c.PutUint32(tagWarning); err != nil {
				return err
			}
			if err := c.PutInt32(e.Code); err != nil {
				return err
			}
		case protoerr.TagCString:
			if err := c.PutUint32(tagCString); err != nil {
				return err
			}
			if err := c.PutString(e.Text, true); err != nil {
				return err
			}
		case protoerr.TagNumber:
			if err := c.PutUint32(tagNumber); err != nil {
				return err
			}
			if err := c.PutInt64(e.Number); err != nil {
				return err
			}
		case protoerr.TagString:
			if err := c.PutUint32(tagString); err != nil {
				return err
			}
			if err := c.PutString(e.Text, true); err != nil {
				return err
			}
		default:
			return fmt.Errorf("xdr: unknown status vector tag %d", e.Tag)
		}
	}

	// Every vector must be explicitly terminated on the wire even if the
	// caller forgot to append an Entries-level TagEnd.
	if len(sv.Entries) == 0 || sv.Entries[len(sv.Entries)-1].Tag != protoerr.TagEnd {
		return c.PutUint32(tagEnd)
	}
	return nil
}

// GetStatusVector decodes a tagged status vector terminated by tagEnd.
func GetStatusVector(c *Codec) (*protoerr.StatusVector, error) {
	sv := &protoerr.StatusVector{}

	for {
		tag, err := c.GetUint32()
		if err != nil {
			return nil, fmt.Errorf("xdr: status vector tag: %w", err)
		}

		switch tag {
		case tagEnd:
			sv.Entries = append(sv.Entries, protoerr.VectorEntry{Tag: protoerr.TagEnd})
			return sv, nil
		case tagGdsCode:
			code, err := c.GetInt32()
			if err != nil {
				return nil, err
			}
			sv.Entries = append(sv.Entries, protoerr.VectorEntry{Tag: protoerr.TagGdsCode, Code: code})
		case tagWarning:
			code, err := c.GetInt32()
			if err != nil {
				return nil, err
			}
			sv.Entries = append(sv.Entries, protoerr.VectorEntry{Tag: protoerr.TagWarning, Code: code})
		case tagCString:
			s, err := c.GetString(true, 0)
			if err != nil {
				return nil, err
			}
			sv.Entries = append(sv.Entries, protoerr.VectorEntry{Tag: protoerr.TagCString, Text: s})
		case tagNumber:
			n, err := c.GetInt64()
			if err != nil {
				return nil, err
			}
			sv.Entries = append(sv.Entries, protoerr.VectorEntry{Tag: protoerr.TagNumber, Number: n})
		case tagString:
			s, err := c.GetString(true, 0)
			if err != nil {
				return nil, err
			}
			sv.Entries = append(sv.Entries, protoerr.VectorEntry{Tag: protoerr.TagString, Text: s})
		default:
			return nil, fmt.Errorf("xdr: unknown status vector tag %d", tag)
		}
	}
}
