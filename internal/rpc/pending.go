package rpc

import (
	"sync"

	"github.com/shaiso/Delegate/internal/mq"
)

// pendingCall — вызов, ожидающий ответа.
type pendingCall struct {
	handler mq.Handler
	reject  Reject
}

// pendingCalls — реестр ожидающих вызовов по correlation id.
//
// Каждый вызов извлекается из реестра ровно один раз: ответом,
// отменой или остановкой Delegator'а.
type pendingCalls struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]*pendingCall)}
}

func (p *pendingCalls) add(correlationID string, call *pendingCall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[correlationID] = call
}

// take извлекает вызов из реестра.
func (p *pendingCalls) take(correlationID string) (*pendingCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	call, ok := p.calls[correlationID]
	if ok {
		delete(p.calls, correlationID)
	}
	return call, ok
}

// drain извлекает все вызовы.
func (p *pendingCalls) drain() []*pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	calls := make([]*pendingCall, 0, len(p.calls))
	for id, call := range p.calls {
		calls = append(calls, call)
		delete(p.calls, id)
	}
	return calls
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
