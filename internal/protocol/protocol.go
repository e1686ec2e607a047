package protocol

import "fmt"

// RequestType identifies a client request frame.
type RequestType int32

// Request op codes, in wire order.
const (
	ReqMessage RequestType = iota
	ReqUpload
	ReqDownload
	ReqFiles
	ReqLogout
	ReqUsers
)

// Valid reports whether t is a known request op code.
func (t RequestType) Valid() bool {
	return t >= ReqMessage && t <= ReqUsers
}

func (t RequestType) String() string {
	switch t {
	case ReqMessage:
		return "MESSAGE"
	case ReqUpload:
		return "UPLOAD"
	case ReqDownload:
		return "DOWNLOAD"
	case ReqFiles:
		return "FILES"
	case ReqLogout:
		return "LOGOUT"
	case ReqUsers:
		return "USERS"
	default:
		return fmt.Sprintf("RequestType(%d)", int32(t))
	}
}

// ResponseType identifies a server response frame.
type ResponseType int32

// Response op codes, in wire order.
const (
	RespMessage ResponseType = iota
	RespUsers
	RespFiles
	RespUpload
	RespDownload
)

func (t ResponseType) String() string {
	switch t {
	case RespMessage:
		return "MESSAGE"
	case RespUsers:
		return "USERS"
	case RespFiles:
		return "FILES"
	case RespUpload:
		return "UPLOAD"
	case RespDownload:
		return "DOWNLOAD"
	default:
		return fmt.Sprintf("ResponseType(%d)", int32(t))
	}
}

// Status is a user's presence flag as carried in USERS frames.
type Status int32

const (
	StatusOnline Status = iota
	StatusOffline
)

func (s Status) String() string {
	if s == StatusOnline {
		return "online"
	}
	return "offline"
}

// ErrUnknownRequest is the protocol error for an out-of-range op code.
// It terminates only the offending connection.
type ErrUnknownRequest struct {
	Code int32
}

func (e *ErrUnknownRequest) Error() string {
	return fmt.Sprintf("unknown request op code %d", e.Code)
}
