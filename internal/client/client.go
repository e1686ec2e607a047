package client

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/fushaoqin-devops/go-chatroom/internal/protocol"
)

// Client speaks the chat wire protocol over one persistent connection.
// Requests are safe for concurrent use; responses arrive on the single
// stream and must be consumed by one reader via ReadResponse.
type Client struct {
	conn     net.Conn
	r        *bufio.Reader
	mu       sync.Mutex
	username string
	room     string
}

// Dial connects to the server and performs the handshake for the given
// username and room. The server replays the room's history as MESSAGE
// responses immediately after.
func Dial(address, username, roomID string) (*Client, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	c := &Client{
		conn:     conn,
		r:        bufio.NewReader(conn),
		username: username,
		room:     roomID,
	}

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := protocol.WriteString(c.conn, c.username); err != nil {
		return fmt.Errorf("send username: %w", err)
	}
	if err := protocol.WriteString(c.conn, c.room); err != nil {
		return fmt.Errorf("send room id: %w", err)
	}
	return nil
}

// Username returns the name this client joined with.
func (c *Client) Username() string {
	return c.username
}

// Room returns the room this client joined.
func (c *Client) Room() string {
	return c.room
}

// SendMessage sends a MESSAGE request.
func (c *Client) SendMessage(text string) error {
	if err := protocol.CheckStrings(text); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := protocol.WriteInt32(c.conn, int32(protocol.ReqMessage)); err != nil {
		return err
	}
	return protocol.WriteString(c.conn, text)
}

// Upload streams length bytes from src into the room's file storage under
// the given name.
func (c *Client) Upload(filename string, src io.Reader, length int64) error {
	if err := protocol.CheckStrings(filename); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := protocol.WriteInt32(c.conn, int32(protocol.ReqUpload)); err != nil {
		return err
	}
	if err := protocol.WriteString(c.conn, filename); err != nil {
		return err
	}
	if err := protocol.WriteInt64(c.conn, length); err != nil {
		return err
	}
	return protocol.CopyN(c.conn, src, length)
}

// UploadBytes uploads an in-memory payload.
func (c *Client) UploadBytes(filename string, data []byte) error {
	return c.Upload(filename, bytes.NewReader(data), int64(len(data)))
}

// UploadFile uploads a local file under its base name.
func (c *Client) UploadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}
	return c.Upload(filepath.Base(path), f, info.Size())
}

// Download requests a stored file. The destination path is echoed back by
// the server unchanged; the file arrives as a DOWNLOAD response.
func (c *Client) Download(filename, destPath string) error {
	if err := protocol.CheckStrings(filename, destPath); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := protocol.WriteInt32(c.conn, int32(protocol.ReqDownload)); err != nil {
		return err
	}
	if err := protocol.WriteString(c.conn, filename); err != nil {
		return err
	}
	return protocol.WriteString(c.conn, destPath)
}

// ListFiles requests the room's file listing; it arrives as a FILES response.
func (c *Client) ListFiles() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteInt32(c.conn, int32(protocol.ReqFiles))
}

// ListUsers requests the room's roster; it arrives as USERS responses, one
// per user.
func (c *Client) ListUsers() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteInt32(c.conn, int32(protocol.ReqUsers))
}

// Logout tells the server to mark this user offline and release the
// connection's registration.
func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteInt32(c.conn, int32(protocol.ReqLogout))
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.conn.Close()
}
