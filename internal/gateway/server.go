package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

const maxLineSize = 4 << 20

// Server runs one MCP session over a newline-delimited JSON stream.
type Server struct {
	handler *Handler
	session *Session
	mu      sync.Mutex // protects writes
}

func NewServer(h *Handler, sess *Session) *Server {
	return &Server{handler: h, session: sess}
}

// RunStdio serves stdin/stdout until EOF or ctx is done.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.RunConn(ctx, os.Stdin, os.Stdout)
}

// RunConn serves an arbitrary reader/writer pair.
func (s *Server) RunConn(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handler.Handle(ctx, s.session, line)
		if resp == nil {
			continue
		}
		if err := s.writeResponse(w, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

func (s *Server) writeResponse(w io.Writer, resp *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
