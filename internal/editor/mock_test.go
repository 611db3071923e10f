package editor

import (
	"context"
	"fmt"
	"sync"

	"pmcopilot/internal/orchestration"
)

// MockCaller records calls and returns a canned result. When Block is set
// each call waits for it to close or for its context to end.
type MockCaller struct {
	mu     sync.Mutex
	Calls  []RecordedCall
	Result *orchestration.Result
	Err    error
	Block  chan struct{}
}

// RecordedCall is one call seen by [MockCaller].
type RecordedCall struct {
	Endpoint orchestration.Endpoint
	Payload  any
}

func (m *MockCaller) Call(ctx context.Context, endpoint orchestration.Endpoint, payload any) (*orchestration.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, RecordedCall{Endpoint: endpoint, Payload: payload})
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, &orchestration.Error{
				Endpoint: endpoint,
				Kind:     orchestration.KindTransport,
				Message:  fmt.Sprintf("request to %s failed: %v", endpoint, ctx.Err()),
				Err:      ctx.Err(),
			}
		}
	}
	return m.Result, m.Err
}

func (m *MockCaller) recorded() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedCall, len(m.Calls))
	copy(out, m.Calls)
	return out
}
