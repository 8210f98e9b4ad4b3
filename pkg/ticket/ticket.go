// Package ticket provides the support-ticket client used when importer
// proposals age out or a feed keeps failing. The real implementation
// talks to a ticketing system's REST API; the mock keeps everything in
// memory so imports can run without the external dependency.
package ticket

import (
	"context"
	"fmt"
	"sync"
)

// Request is a ticket to open. A nonzero ID appends to an existing
// ticket instead of opening a new one.
type Request struct {
	ID      int64  `json:"id,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Response is the ticketing system's view of a created ticket.
type Response struct {
	ID  int64  `json:"id"`
	Ref string `json:"ref"`
}

// Client opens tickets in a support system.
type Client interface {
	Create(ctx context.Context, req *Request) (*Response, error)
}

// MockClient assigns sequential IDs without touching any external
// system. Used in tests and whenever ticket.send is off.
type MockClient struct {
	mu      sync.Mutex
	next    int64
	Created []Request
}

// NewMockClient creates a mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Create records the request and returns a synthetic ticket.
func (m *MockClient) Create(_ context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.Created = append(m.Created, *req)
	return &Response{
		ID:  m.next,
		Ref: fmt.Sprintf("MOCK-%d", m.next),
	}, nil
}
