package server

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/fushaoqin-devops/go-chatroom/internal/storage"
)

// Server accepts connections and hands each one to its own Session worker.
type Server struct {
	config    *Config
	registry  *Registry
	files     *storage.FileStore
	snapshots *storage.SnapshotStore
	listener  net.Listener
	wg        sync.WaitGroup
	done      chan struct{}

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

func NewServer(config *Config) *Server {
	return &Server{
		config:   config,
		registry: NewRegistry(),
		files:    storage.NewFileStore(config.FilesDir),
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start opens the snapshot store, restores every persisted room with its
// users offline, and begins accepting connections.
func (s *Server) Start() error {
	snapshots, err := storage.OpenSnapshotStore(s.config.SnapshotDB)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	s.snapshots = snapshots

	states, err := snapshots.LoadAll()
	if err != nil {
		// Snapshot read failures are not fatal; the server starts empty.
		log.Printf("Error loading room snapshots: %v", err)
	}
	for _, state := range states {
		s.registry.Restore(state)
	}
	if len(states) > 0 {
		log.Printf("Restored %d room(s) from snapshots", len(states))
	}

	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		snapshots.Close()
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	log.Printf("Server listening on %s", s.config.Address())

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

func (s *Server) Stop() error {
	close(s.done)

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			return fmt.Errorf("error closing listener: %w", err)
		}
	}

	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()

	if s.snapshots != nil {
		if err := s.snapshots.Close(); err != nil {
			return fmt.Errorf("error closing snapshot store: %w", err)
		}
	}
	return nil
}

// Addr returns the listener's address, usable once Start has returned.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				log.Println("Stopped accepting connections")
				return
			default:
				log.Printf("Error accepting connection: %v", err)
				continue
			}
		}

		log.Printf("New connection from %s", conn.RemoteAddr())

		s.trackConn(conn)
		session := NewSession(conn, s.registry, s.files, s.snapshots)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackConn(conn)
			session.Run()
		}()
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}
