package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxStringLen is the longest string the wire format can carry; strings are
// prefixed with a big-endian uint16 byte length.
const MaxStringLen = 1<<16 - 1

// copyBufSize is the fixed chunk size used for file transfer streaming.
// Transfers are never buffered to their declared length.
const copyBufSize = 32 * 1024

// ReadString reads one length-prefixed UTF-8 string.
func ReadString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read string body: %w", err)
	}
	return string(buf), nil
}

// CheckStrings rejects any string too long for the uint16 length prefix.
// Frame writers call it before emitting their op code so a rejected frame
// leaves nothing on the stream.
func CheckStrings(ss ...string) error {
	for _, s := range ss {
		if len(s) > MaxStringLen {
			return fmt.Errorf("string of %d bytes exceeds wire limit", len(s))
		}
	}
	return nil
}

// WriteString writes one length-prefixed UTF-8 string.
func WriteString(w io.Writer, s string) error {
	if err := CheckStrings(s); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadInt32 reads one big-endian int32.
func ReadInt32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// WriteInt32 writes one big-endian int32.
func WriteInt32(w io.Writer, v int32) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadInt64 reads one big-endian int64.
func ReadInt64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// WriteInt64 writes one big-endian int64.
func WriteInt64(w io.Writer, v int64) error {
	return binary.Write(w, binary.BigEndian, v)
}

// ReadRequest reads the next request op code. An out-of-range code yields
// *ErrUnknownRequest so the caller can close just that connection.
func ReadRequest(r io.Reader) (RequestType, error) {
	code, err := ReadInt32(r)
	if err != nil {
		return 0, err
	}
	t := RequestType(code)
	if !t.Valid() {
		return 0, &ErrUnknownRequest{Code: code}
	}
	return t, nil
}

// CopyN streams exactly n bytes from src to dst through a fixed-size buffer.
func CopyN(dst io.Writer, src io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	buf := make([]byte, copyBufSize)
	written, err := io.CopyBuffer(dst, io.LimitReader(src, n), buf)
	if err != nil {
		return err
	}
	if written != n {
		return fmt.Errorf("short transfer: copied %d of %d bytes: %w", written, n, io.ErrUnexpectedEOF)
	}
	return nil
}

// WriteMessage writes a MESSAGE response frame.
func WriteMessage(w io.Writer, text string) error {
	if err := CheckStrings(text); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(RespMessage)); err != nil {
		return err
	}
	return WriteString(w, text)
}

// WriteUserStatus writes a USERS response frame carrying one roster entry.
func WriteUserStatus(w io.Writer, username string, status Status) error {
	if err := CheckStrings(username); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(RespUsers)); err != nil {
		return err
	}
	if err := WriteString(w, username); err != nil {
		return err
	}
	return WriteInt32(w, int32(status))
}

// WriteFileList writes a FILES response frame with a comma-joined listing.
func WriteFileList(w io.Writer, filenames string) error {
	if err := CheckStrings(filenames); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(RespFiles)); err != nil {
		return err
	}
	return WriteString(w, filenames)
}

// WriteUploadNotice writes an UPLOAD response frame naming a newly stored file.
func WriteUploadNotice(w io.Writer, filename string) error {
	if err := CheckStrings(filename); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(RespUpload)); err != nil {
		return err
	}
	return WriteString(w, filename)
}

// WriteFileHeader writes the leading fields of a DOWNLOAD response frame:
// op code, payload length, and the echoed destination path. The caller
// streams exactly length payload bytes next.
func WriteFileHeader(w io.Writer, path string, length int64) error {
	if err := CheckStrings(path); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(RespDownload)); err != nil {
		return err
	}
	if err := WriteInt64(w, length); err != nil {
		return err
	}
	return WriteString(w, path)
}
