package gateway

import (
	"sync"

	"github.com/google/uuid"

	"github.com/revittco/costgate/internal/upstream"
)

// Transport names recorded in the audit log.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// Session is the identity behind one MCP connection. The customer context
// can change mid-session through change_customer, so access is locked.
type Session struct {
	ID        string
	Transport string

	mu         sync.RWMutex
	auth       upstream.Auth
	operator   bool
	clientInfo ClientInfo
}

func NewSession(transport string, auth upstream.Auth, operator bool) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Transport: transport,
		auth:      auth,
		operator:  operator,
	}
}

func (s *Session) Auth() upstream.Auth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

func (s *Session) IsOperator() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operator
}

// SetCustomerContext rebinds the live session.
func (s *Session) SetCustomerContext(customerContext string) {
	s.mu.Lock()
	s.auth.CustomerContext = customerContext
	s.mu.Unlock()
}

func (s *Session) setClient(ci ClientInfo) {
	s.mu.Lock()
	s.clientInfo = ci
	s.mu.Unlock()
}
