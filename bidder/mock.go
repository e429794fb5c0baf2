package bidder

import (
	"sync"
	"time"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/bidrequest"
)

// scriptedBid is one queued response a test wants Mock to deliver the next
// time its agent is sent a dispatch, whatever the request.
type scriptedBid struct {
	resp Response
}

// Mock is an in-memory Channel double. Tests call Script to queue a
// response; Send delivers it synchronously (directly to the registered
// handler) unless Async is set, in which case it delivers from a goroutine,
// exercising the same interleaving guarantees a real channel would.
type Mock struct {
	mu       sync.Mutex
	handler  ResponseHandler
	scripted map[string][]scriptedBid // agentID -> queued responses, FIFO
	Async    bool
	Sent     []SentCall
}

// SentCall records one Send invocation, for assertions.
type SentCall struct {
	AgentID string
	Request *bidrequest.BidRequest
	Spots   []agent.SpotCreatives
}

func NewMock() *Mock {
	return &Mock{scripted: make(map[string][]scriptedBid)}
}

func (m *Mock) SetResponseHandler(h ResponseHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// Script queues resp to be delivered the next time agentID is sent a
// dispatch. Responses are delivered FIFO per agent.
func (m *Mock) Script(agentID string, resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted[agentID] = append(m.scripted[agentID], scriptedBid{resp: resp})
}

func (m *Mock) Send(agentID string, req *bidrequest.BidRequest, spots []agent.SpotCreatives, deadline time.Time) {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentCall{AgentID: agentID, Request: req, Spots: spots})
	queue := m.scripted[agentID]
	var next *scriptedBid
	if len(queue) > 0 {
		next = &queue[0]
		m.scripted[agentID] = queue[1:]
	}
	handler := m.handler
	m.mu.Unlock()

	if next == nil || handler == nil {
		return
	}
	resp := next.resp
	resp.RequestID = req.ID
	resp.AgentID = agentID
	if m.Async {
		go handler.OnResponse(resp)
	} else {
		handler.OnResponse(resp)
	}
}
