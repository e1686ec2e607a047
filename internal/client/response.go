package client

import (
	"bytes"
	"fmt"

	"github.com/fushaoqin-devops/go-chatroom/internal/protocol"
)

// Response is one decoded server frame. Only the fields for its Type are
// populated.
type Response struct {
	Type protocol.ResponseType

	Text string // MESSAGE

	Username string          // USERS
	Status   protocol.Status // USERS

	Files string // FILES, comma-joined

	Filename string // UPLOAD

	Length int64  // DOWNLOAD
	Path   string // DOWNLOAD, echoed destination hint
	Data   []byte // DOWNLOAD payload
}

// ReadResponse blocks until the next server frame arrives and decodes it.
// DOWNLOAD payloads are drained fully so the stream stays aligned.
func (c *Client) ReadResponse() (*Response, error) {
	code, err := protocol.ReadInt32(c.r)
	if err != nil {
		return nil, err
	}

	resp := &Response{Type: protocol.ResponseType(code)}
	switch resp.Type {
	case protocol.RespMessage:
		resp.Text, err = protocol.ReadString(c.r)

	case protocol.RespUsers:
		if resp.Username, err = protocol.ReadString(c.r); err != nil {
			return nil, err
		}
		var status int32
		status, err = protocol.ReadInt32(c.r)
		resp.Status = protocol.Status(status)

	case protocol.RespFiles:
		resp.Files, err = protocol.ReadString(c.r)

	case protocol.RespUpload:
		resp.Filename, err = protocol.ReadString(c.r)

	case protocol.RespDownload:
		if resp.Length, err = protocol.ReadInt64(c.r); err != nil {
			return nil, err
		}
		if resp.Path, err = protocol.ReadString(c.r); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err = protocol.CopyN(&buf, c.r, resp.Length); err != nil {
			return nil, err
		}
		resp.Data = buf.Bytes()

	default:
		return nil, fmt.Errorf("unknown response op code %d", code)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
