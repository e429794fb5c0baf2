package bidder

import (
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/rtbexchange/router/agent"
	"github.com/rtbexchange/router/bidrequest"
	"github.com/rtbexchange/router/logger"
)

// dispatchPayload is the per-agent egress payload (spec §4.4, §6 "Bidder
// egress"): {request-id, agent-id, eligible-spots, candidate creative-ids,
// deadline}.
type dispatchPayload struct {
	RequestID string                `json:"request_id"`
	AgentID   string                `json:"agent_id"`
	Spots     []agent.SpotCreatives `json:"spots"`
	Deadline  time.Time             `json:"deadline"`
}

// agentReplyPayload is the wire shape an agent posts back.
type agentReplyPayload struct {
	NoBid bool `json:"no_bid"`
	Bids  []struct {
		SpotID         string `json:"spot_id"`
		CreativeID     string `json:"creative_id"`
		MaxPriceMicros int64  `json:"max_price_micros"`
		Currency       string `json:"currency"`
		AccountKey     string `json:"account_key"`
	} `json:"bids"`
}

// AgentEndpoints resolves an agent id to the URL its bid requests are
// POSTed to. Populated from the bidder configuration file (spec §6
// `--bidder <file>`).
type AgentEndpoints interface {
	URLFor(agentID string) (string, bool)
}

// HTTPChannel is the fasthttp-backed concrete Channel (spec §4.4): each
// Send spawns a goroutine that POSTs the dispatch and feeds whatever comes
// back (or a timeout) to the registered handler as one OnResponse call,
// preserving the "responds at most once" guarantee. A dispatch payload that
// fails to marshal is logged and produces no OnResponse call.
type HTTPChannel struct {
	client    *fasthttp.Client
	endpoints AgentEndpoints
	handler   ResponseHandler
}

func NewHTTPChannel(endpoints AgentEndpoints) *HTTPChannel {
	return &HTTPChannel{
		client: &fasthttp.Client{
			MaxConnsPerHost:     4096,
			MaxIdleConnDuration: 30 * time.Second,
		},
		endpoints: endpoints,
	}
}

func (c *HTTPChannel) SetResponseHandler(h ResponseHandler) { c.handler = h }

func (c *HTTPChannel) Send(agentID string, req *bidrequest.BidRequest, spots []agent.SpotCreatives, deadline time.Time) {
	go c.send(agentID, req, spots, deadline)
}

func (c *HTTPChannel) send(agentID string, req *bidrequest.BidRequest, spots []agent.SpotCreatives, deadline time.Time) {
	url, ok := c.endpoints.URLFor(agentID)
	if !ok {
		logger.Warnf("bidder channel: no endpoint for agent %s, treating as no-bid", agentID)
		c.deliver(Response{RequestID: req.ID, AgentID: agentID, NoBid: true, Timestamp: time.Now()})
		return
	}

	body, err := json.Marshal(dispatchPayload{RequestID: req.ID, AgentID: agentID, Spots: spots, Deadline: deadline})
	if err != nil {
		logger.Errorf("bidder channel: marshal dispatch for %s: %v", agentID, err)
		return
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.SetRequestURI(url)
	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.Header.SetContentType("application/json")
	httpReq.SetBody(body)

	timeout := time.Until(deadline)
	if timeout <= 0 {
		c.deliver(Response{RequestID: req.ID, AgentID: agentID, NoBid: true, Timestamp: time.Now()})
		return
	}

	if err := c.client.DoTimeout(httpReq, httpResp, timeout); err != nil {
		// at-most-once delivery: a timed-out or failed send is a no-bid, the
		// engine never learns the difference and never retries.
		c.deliver(Response{RequestID: req.ID, AgentID: agentID, NoBid: true, Timestamp: time.Now()})
		return
	}

	if httpResp.StatusCode() == fasthttp.StatusNoContent {
		c.deliver(Response{RequestID: req.ID, AgentID: agentID, NoBid: true, Timestamp: time.Now()})
		return
	}

	var reply agentReplyPayload
	if err := json.Unmarshal(httpResp.Body(), &reply); err != nil {
		logger.Warnf("bidder channel: malformed reply from %s: %v", agentID, err)
		c.deliver(Response{RequestID: req.ID, AgentID: agentID, NoBid: true, Timestamp: time.Now()})
		return
	}

	resp := Response{RequestID: req.ID, AgentID: agentID, NoBid: reply.NoBid, Timestamp: time.Now()}
	for _, b := range reply.Bids {
		resp.Bids = append(resp.Bids, SpotBid{
			SpotID:         b.SpotID,
			CreativeID:     b.CreativeID,
			MaxPriceMicros: b.MaxPriceMicros,
			Currency:       b.Currency,
			AccountKey:     b.AccountKey,
		})
	}
	c.deliver(resp)
}

func (c *HTTPChannel) deliver(resp Response) {
	if c.handler != nil {
		c.handler.OnResponse(resp)
	}
}
