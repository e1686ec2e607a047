package server

import (
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/fushaoqin-devops/go-chatroom/internal/protocol"
	"github.com/fushaoqin-devops/go-chatroom/internal/storage"
)

// User is one roster entry. A username binds permanently to the same ID on
// first use within a room; afterwards only the status toggles.
type User struct {
	ID       string
	Username string
	Status   protocol.Status
}

// Outbound is the write half of one connection, registered in a room's
// online table. The mutex keeps each frame intact when many sessions fan
// out onto the same connection.
type Outbound struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOutbound wraps a connection's writer.
func NewOutbound(w io.Writer) *Outbound {
	return &Outbound{w: w}
}

// SendMessage writes a MESSAGE frame.
func (o *Outbound) SendMessage(text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return protocol.WriteMessage(o.w, text)
}

// SendBacklog replays history as consecutive MESSAGE frames under one lock
// so live broadcasts cannot interleave with the replay.
func (o *Outbound) SendBacklog(lines []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, line := range lines {
		if err := protocol.WriteMessage(o.w, line); err != nil {
			return err
		}
	}
	return nil
}

// SendUserStatus writes a USERS frame.
func (o *Outbound) SendUserStatus(username string, status protocol.Status) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return protocol.WriteUserStatus(o.w, username, status)
}

// SendFileList writes a FILES frame.
func (o *Outbound) SendFileList(filenames string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return protocol.WriteFileList(o.w, filenames)
}

// SendUploadNotice writes an UPLOAD frame.
func (o *Outbound) SendUploadNotice(filename string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return protocol.WriteUploadNotice(o.w, filename)
}

// SendFile streams a DOWNLOAD frame: declared length, echoed destination
// path, then exactly length bytes in fixed-size chunks.
func (o *Outbound) SendFile(path string, src io.Reader, length int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := protocol.WriteFileHeader(o.w, path, length); err != nil {
		return err
	}
	return protocol.CopyN(o.w, src, length)
}

// Room is one chat room: its roster of all users ever seen, the table of
// currently connected users, and the append-only message history. A single
// mutex guards all three so roster and presence changes apply as a unit;
// no lock ever spans two rooms.
type Room struct {
	id string

	mu      sync.Mutex
	roster  map[string]*User     // user ID -> user
	online  map[string]*Outbound // user ID -> connection writer
	history []string
}

func newRoom(id string) *Room {
	return &Room{
		id:     id,
		roster: make(map[string]*User),
		online: make(map[string]*Outbound),
	}
}

// restoreRoom rebuilds a room from a durable snapshot. Every restored user
// starts offline; no connections exist yet.
func restoreRoom(state *storage.RoomState) *Room {
	r := newRoom(state.ID)
	for _, rec := range state.Users {
		r.roster[rec.ID] = &User{ID: rec.ID, Username: rec.Username, Status: protocol.StatusOffline}
	}
	r.history = append(r.history, state.History...)
	return r
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// Join resolves the username to its user (reusing the existing ID, or
// minting one on first-ever join), marks it online, registers the
// connection's writer, and replays the history backlog to it. Username
// lookup is linear in roster size.
func (r *Room) Join(username string, out *Outbound) *User {
	r.mu.Lock()
	defer r.mu.Unlock()

	var user *User
	for _, u := range r.roster {
		if u.Username == username {
			user = u
			break
		}
	}
	if user == nil {
		user = &User{ID: uuid.New().String(), Username: username}
		r.roster[user.ID] = user
	}
	user.Status = protocol.StatusOnline
	r.online[user.ID] = out

	if err := out.SendBacklog(r.history); err != nil {
		log.Printf("history replay to %s in room %s: %v", username, r.id, err)
	}
	return user
}

// Leave marks the user offline and drops its connection from the online
// table. The roster entry remains; membership is monotonic.
func (r *Room) Leave(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.roster[userID]; ok {
		user.Status = protocol.StatusOffline
	}
	delete(r.online, userID)
}

// Roster returns a point-in-time copy of every user ever seen in the room.
func (r *Room) Roster() []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]User, 0, len(r.roster))
	for _, u := range r.roster {
		users = append(users, *u)
	}
	return users
}

// OnlineUsers returns a snapshot of roster entries currently marked online.
func (r *Room) OnlineUsers() []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]User, 0, len(r.online))
	for _, u := range r.roster {
		if u.Status == protocol.StatusOnline {
			users = append(users, *u)
		}
	}
	return users
}

// History returns a copy of the room's message history.
func (r *Room) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Broadcast fans a MESSAGE frame out to every connected user. A persistent
// message is first appended to history; the returned state must then be
// snapshotted by the caller. Ephemeral notices reach only current
// connections and are never replayed. A failed write to one peer is logged
// and skipped; that peer's own session cleans it up.
func (r *Room) Broadcast(text string, persistent bool) *storage.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if persistent {
		r.history = append(r.history, text)
	}
	for id, out := range r.online {
		if err := out.SendMessage(text); err != nil {
			log.Printf("broadcast to user %s in room %s: %v", id, r.id, err)
		}
	}
	if persistent {
		return r.stateLocked()
	}
	return nil
}

// NotifyUpload pushes an UPLOAD frame naming the new file to every
// connected user, uploader included.
func (r *Room) NotifyUpload(filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, out := range r.online {
		if err := out.SendUploadNotice(filename); err != nil {
			log.Printf("upload notice to user %s in room %s: %v", id, r.id, err)
		}
	}
}

// NotifyUserStatus pushes a USERS frame about the named user to every
// connected user except that user itself.
func (r *Room) NotifyUserStatus(userID string, status protocol.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.roster[userID]
	if !ok {
		return
	}
	for id, out := range r.online {
		if id == userID {
			continue
		}
		if err := out.SendUserStatus(user.Username, status); err != nil {
			log.Printf("status update to user %s in room %s: %v", id, r.id, err)
		}
	}
}

// State returns the room's durable form: roster and history, owned
// one-directionally by the room.
func (r *Room) State() *storage.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Room) stateLocked() *storage.RoomState {
	state := &storage.RoomState{
		ID:      r.id,
		Users:   make([]storage.UserRecord, 0, len(r.roster)),
		History: append([]string(nil), r.history...),
	}
	for _, u := range r.roster {
		state.Users = append(state.Users, storage.UserRecord{ID: u.ID, Username: u.Username})
	}
	return state
}
