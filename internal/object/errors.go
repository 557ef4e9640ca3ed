package object

import (
	"fmt"

	"github.com/fbremote/fbremote/internal/protoerr"
)

// Handle-kind-specific protocol errors. Every object-taking entry point
// raises exactly one of these on a stale or mismatched handle, never a
// generic protocol error, so a caller can tell which object map was
// consulted without parsing a message string.
func errBadDB(handle int32) error {
	return protoerr.NewProtocolError("bad-db", fmt.Errorf("attachment handle %d not found", handle))
}

func errBadTrans(handle int32) error {
	return protoerr.NewProtocolError("bad-trans", fmt.Errorf("transaction handle %d not found", handle))
}

func errBadReq(handle int32) error {
	return protoerr.NewProtocolError("bad-req", fmt.Errorf("request handle %d not found", handle))
}

func errBadSegstr(handle int32) error {
	return protoerr.NewProtocolError("bad-segstr", fmt.Errorf("blob handle %d not found", handle))
}

func errBadEvents(handle int32) error {
	return protoerr.NewProtocolError("bad-events", fmt.Errorf("event handle %d not found", handle))
}

func errBadSvc(handle int32) error {
	return protoerr.NewProtocolError("bad-svc", fmt.Errorf("service handle %d not found", handle))
}

func errBadStmt(handle int32) error {
	return protoerr.NewProtocolError("bad-stmt", fmt.Errorf("statement handle %d not found", handle))
}
