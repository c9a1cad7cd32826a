package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HandlerFunc handles one decoded request payload and returns the value to
// be JSON-encoded as the reply (nil for a no-payload success).
type HandlerFunc func(payload json.RawMessage) (any, error)

// Server dispatches framed JSON RPCs to registered methods, one goroutine
// per accepted connection: each client conversation is an independent task.
type Server struct {
	mu             sync.RWMutex
	handlers       map[string]HandlerFunc
	log            zerolog.Logger
	requestTimeout time.Duration
}

// NewServer builds a Server. requestTimeout bounds how long a connection may
// sit idle between frames before the read deadline fires; zero disables it.
func NewServer(log zerolog.Logger, requestTimeout time.Duration) *Server {
	return &Server{
		handlers:       make(map[string]HandlerFunc),
		log:            log,
		requestTimeout: requestTimeout,
	}
}

// Handle registers h under method. Call before Serve.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Serve accepts connections from ln until it returns an error.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	r := bufio.NewReader(conn)

	for {
		if s.requestTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.requestTimeout))
		}
		frame, err := ReadFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug().Err(err).Str("remote", remote).Msg("connection closed")
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			s.reply(conn, replyEnvelope{Error: fmt.Sprintf("malformed envelope: %v", err)})
			continue
		}

		s.mu.RLock()
		h, ok := s.handlers[env.Method]
		s.mu.RUnlock()

		var rep replyEnvelope
		if !ok {
			rep.Error = fmt.Sprintf("unknown method %q", env.Method)
		} else if result, err := h(env.Payload); err != nil {
			rep.Error = err.Error()
			s.log.Debug().Err(err).Str("method", env.Method).Str("remote", remote).Msg("handler failed")
		} else if result != nil {
			b, err := json.Marshal(result)
			if err != nil {
				rep.Error = fmt.Sprintf("marshal response: %v", err)
			} else {
				rep.Payload = b
			}
		}

		if !s.reply(conn, rep) {
			return
		}
	}
}

func (s *Server) reply(conn net.Conn, rep replyEnvelope) bool {
	b, err := json.Marshal(rep)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal reply envelope")
		return false
	}
	if err := WriteFrame(conn, b); err != nil {
		s.log.Debug().Err(err).Msg("write reply")
		return false
	}
	return true
}
