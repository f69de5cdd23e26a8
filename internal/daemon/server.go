package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hubwatch/hubwatch/internal/logging"
	"github.com/hubwatch/hubwatch/internal/protocol"
)

// connTimeout bounds how long a single IPC exchange may take end to end.
const connTimeout = 30 * time.Second

// Server is the Unix socket IPC listener. Each connection carries exactly
// one command: the server reads one line, hands it to the queue, writes the
// single response, and closes the connection.
type Server struct {
	socketPath string
	queue      *Queue
	listener   net.Listener
	mu         sync.Mutex
	shutdown   bool
	wg         sync.WaitGroup
	log        *logrus.Entry
}

// NewServer creates a server that feeds commands into queue.
func NewServer(socketPath string, queue *Queue) *Server {
	return &Server{
		socketPath: socketPath,
		queue:      queue,
		log:        logging.NewLogger("ipc"),
	}
}

// Start binds the socket and begins accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	if err := s.removeStaleSocket(); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	// Owner-only: the socket accepts unauthenticated commands.
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("restrict socket permissions: %w", err)
	}

	go s.acceptLoop()
	return nil
}

// Stop closes the listener, waits briefly for in-flight connections, and
// removes the socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn("timed out waiting for IPC connections to drain")
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove socket: %w", err)
	}
	return nil
}

// removeStaleSocket deletes a leftover socket file, but refuses to steal a
// socket another daemon is still answering on.
func (s *Server) removeStaleSocket() error {
	if _, err := os.Stat(s.socketPath); err != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("socket %s is in use by another daemon", s.socketPath)
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				return
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection runs one command/response exchange. Malformed commands
// are answered directly; valid ones go through the queue so the processor
// stays the only writer to daemon state.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		s.log.WithError(err).Debug("dropping connection without a command line")
		return
	}

	cmd, err := protocol.DecodeCommand(line)
	if err != nil {
		s.writeResponse(conn, protocol.Errorf("%s", err))
		return
	}

	respCh := make(chan *protocol.Response, 1)
	if !s.queue.Enqueue(cmd, func(resp *protocol.Response) { respCh <- resp }) {
		s.writeResponse(conn, protocol.Errorf("daemon is shutting down"))
		return
	}

	select {
	case resp := <-respCh:
		s.writeResponse(conn, resp)
	case <-time.After(connTimeout):
		s.writeResponse(conn, protocol.Errorf("command timed out"))
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.WithError(err).Error("marshal response")
		return
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		s.log.WithError(err).Debug("write response failed")
	}
}
