package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fushaoqin-devops/go-chatroom/internal/protocol"
	"github.com/fushaoqin-devops/go-chatroom/internal/storage"
)

// historyTimeFormat is the timestamp prefix carried by persisted messages.
const historyTimeFormat = "2006-01-02 15:04:05.000"

// errLoggedOut stops the request loop after a clean LOGOUT.
var errLoggedOut = errors.New("logged out")

// Session is one connection's state machine. It performs the handshake,
// then reads and dispatches framed requests one at a time, fully consuming
// each before reading the next. All of its I/O runs on its own goroutine;
// a slow transfer blocks only this session.
type Session struct {
	conn      net.Conn
	r         *bufio.Reader
	out       *Outbound
	registry  *Registry
	files     *storage.FileStore
	snapshots *storage.SnapshotStore

	room *Room
	user *User
}

// NewSession wraps an accepted connection.
func NewSession(conn net.Conn, registry *Registry, files *storage.FileStore, snapshots *storage.SnapshotStore) *Session {
	return &Session{
		conn:      conn,
		r:         bufio.NewReader(conn),
		out:       NewOutbound(conn),
		registry:  registry,
		files:     files,
		snapshots: snapshots,
	}
}

// Run drives the session: handshake, then one request at a time until the
// peer logs out, disconnects, or the connection fails.
func (s *Session) Run() {
	defer s.conn.Close()

	if err := s.handshake(); err != nil {
		log.Printf("handshake with %s: %v", s.conn.RemoteAddr(), err)
		return
	}

	for {
		req, err := protocol.ReadRequest(s.r)
		if err != nil {
			s.readFailed(err)
			return
		}
		if err := s.dispatch(req); err != nil {
			if errors.Is(err, errLoggedOut) {
				return
			}
			log.Printf("%s request from %s in room %s: %v", req, s.user.Username, s.room.ID(), err)
			s.cleanup()
			return
		}
	}
}

// handshake reads the username and room ID, resolves the user's identity
// within the room, registers this connection, replays the history backlog,
// and announces the join with an ephemeral notice.
func (s *Session) handshake() error {
	username, err := protocol.ReadString(s.r)
	if err != nil {
		return fmt.Errorf("read username: %w", err)
	}
	roomID, err := protocol.ReadString(s.r)
	if err != nil {
		return fmt.Errorf("read room id: %w", err)
	}
	if username == "" || roomID == "" {
		return errors.New("empty username or room id")
	}

	s.room = s.registry.GetOrCreate(roomID)
	s.user = s.room.Join(username, s.out)
	s.room.Broadcast(fmt.Sprintf("%s joined", username), false)
	log.Printf("%s joined room %s from %s", username, roomID, s.conn.RemoteAddr())
	return nil
}

func (s *Session) dispatch(req protocol.RequestType) error {
	switch req {
	case protocol.ReqMessage:
		return s.handleMessage()
	case protocol.ReqUpload:
		return s.handleUpload()
	case protocol.ReqDownload:
		return s.handleDownload()
	case protocol.ReqFiles:
		return s.handleFiles()
	case protocol.ReqLogout:
		return s.handleLogout()
	case protocol.ReqUsers:
		return s.handleUsers()
	}
	// ReadRequest rejects out-of-range codes before dispatch.
	return nil
}

// readFailed handles every way the request loop can end other than LOGOUT.
// End-of-stream and transport errors get the implicit-logout cleanup; an
// unknown op code closes only this connection.
func (s *Session) readFailed(err error) {
	var unknown *protocol.ErrUnknownRequest
	switch {
	case errors.Is(err, io.EOF):
		log.Printf("%s disconnected from room %s", s.user.Username, s.room.ID())
	case errors.As(err, &unknown):
		log.Printf("closing connection of %s in room %s: %v", s.user.Username, s.room.ID(), err)
	default:
		log.Printf("read from %s in room %s: %v", s.user.Username, s.room.ID(), err)
	}
	s.cleanup()
}

// cleanup is the implicit logout path: status offline, connection removed,
// no "left" notice.
func (s *Session) cleanup() {
	s.room.Leave(s.user.ID)
}

func (s *Session) handleMessage() error {
	text, err := protocol.ReadString(s.r)
	if err != nil {
		return fmt.Errorf("read message text: %w", err)
	}
	stamp := time.Now().Format(historyTimeFormat)
	prefix := fmt.Sprintf("[%s] %s: ", stamp, s.user.Username)
	// The stamped line goes into history verbatim, so it must itself fit
	// one wire string or it could never be delivered or replayed.
	text = truncateText(text, protocol.MaxStringLen-len(prefix))
	s.persist(s.room.Broadcast(prefix+text, true))
	return nil
}

// truncateText trims s to at most max bytes, backing off to a rune boundary
// so a multi-byte character is never split.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 0 {
		return ""
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func (s *Session) handleUpload() error {
	filename, err := protocol.ReadString(s.r)
	if err != nil {
		return fmt.Errorf("read upload filename: %w", err)
	}
	length, err := protocol.ReadInt64(s.r)
	if err != nil {
		return fmt.Errorf("read upload length: %w", err)
	}
	if err := s.files.Save(s.room.ID(), filename, s.r, length); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if length <= 0 {
		return nil
	}
	s.room.Broadcast(fmt.Sprintf("%s uploaded by %s", filename, s.user.Username), false)
	s.room.NotifyUpload(filename)
	return nil
}

func (s *Session) handleFiles() error {
	names, err := s.files.List(s.room.ID())
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	return s.out.SendFileList(strings.Join(names, ","))
}

func (s *Session) handleDownload() error {
	filename, err := protocol.ReadString(s.r)
	if err != nil {
		return fmt.Errorf("read download filename: %w", err)
	}
	path, err := protocol.ReadString(s.r)
	if err != nil {
		return fmt.Errorf("read destination path: %w", err)
	}
	f, size, err := s.files.Open(s.room.ID(), filename)
	if err != nil {
		return fmt.Errorf("open download: %w", err)
	}
	defer f.Close()

	// The destination path is metadata only, echoed back uninterpreted.
	if err := s.out.SendFile(path+"/"+filename, f, size); err != nil {
		return fmt.Errorf("stream download: %w", err)
	}
	return s.out.SendMessage(fmt.Sprintf("%s downloaded successfully", filename))
}

func (s *Session) handleLogout() error {
	s.room.Leave(s.user.ID)
	s.room.Broadcast(fmt.Sprintf("%s left", s.user.Username), false)
	s.room.NotifyUserStatus(s.user.ID, protocol.StatusOffline)
	s.persist(s.room.State())
	log.Printf("%s logged out of room %s", s.user.Username, s.room.ID())
	return errLoggedOut
}

func (s *Session) handleUsers() error {
	for _, u := range s.room.Roster() {
		if err := s.out.SendUserStatus(u.Username, u.Status); err != nil {
			return fmt.Errorf("send roster: %w", err)
		}
	}
	// Other clients get only this user's own status; a deliberate partial
	// sync, matching the full-roster reply going to the requester alone.
	s.room.NotifyUserStatus(s.user.ID, protocol.StatusOnline)
	return nil
}

// persist writes the room snapshot produced by a mutating operation. A
// failed write is logged; in-memory state stays authoritative.
func (s *Session) persist(state *storage.RoomState) {
	if state == nil {
		return
	}
	if err := s.snapshots.Save(state); err != nil {
		log.Printf("snapshot room %s: %v", state.ID, err)
	}
}
