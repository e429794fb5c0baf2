// Package server wires the router's and post-auction binary's external
// HTTP surfaces (spec §6): bid ingress, adserver win/delivery ingress, and
// an admin/health endpoint, built the way the teacher's own server and
// router packages compose httprouter with gzip/CORS/rate-limit middleware.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/didip/tollbooth"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/rtbexchange/router/auction"
	"github.com/rtbexchange/router/bidrequest"
	"github.com/rtbexchange/router/exchangeconfig"
	"github.com/rtbexchange/router/logger"
	"github.com/rtbexchange/router/postauction"
)

// ExchangeDecoder turns one exchange's wire payload into the uniform
// ingress record (spec §6 "pluggable exchange encoders"). Registered per
// exchange name at startup.
type ExchangeDecoder interface {
	Decode(body []byte) (*bidrequest.BidRequest, error)
}

// EventTypeMap is the injective external-event-name -> internal EventType
// mapping spec §6 calls for ("Event-type mapping is configurable").
type EventTypeMap map[string]postauction.EventType

// Shards dispatches ingress traffic to the right per-request-id shard.
// Both the auction engine and the post-auction loop are sharded the same
// way (spec §4.7 "Sharding"), so one implementation serves both ingress
// paths.
type Shards struct {
	Engines   []*auction.Engine
	Loops     []*postauction.Loop
	ShardFunc func(requestID string, n int) int
}

func (s *Shards) engineFor(requestID string) *auction.Engine {
	return s.Engines[s.ShardFunc(requestID, len(s.Engines))]
}

func (s *Shards) loopFor(requestID string) *postauction.Loop {
	return s.Loops[s.ShardFunc(requestID, len(s.Loops))]
}

// Server owns the HTTP surfaces for one router process.
type Server struct {
	shards    *Shards
	decoders  map[string]ExchangeDecoder
	eventMap  EventTypeMap
	rateLimit float64
	exchanges exchangeconfig.Registry

	mux *httprouter.Router
}

type Config struct {
	Shards            *Shards
	Decoders          map[string]ExchangeDecoder
	EventMap          EventTypeMap
	RequestsPerSecond float64
	Exchanges         exchangeconfig.Registry
}

func New(cfg Config) *Server {
	exchanges := cfg.Exchanges
	if exchanges == nil {
		exchanges = exchangeconfig.NewDummyRegistry()
	}
	s := &Server{
		shards:    cfg.Shards,
		decoders:  cfg.Decoders,
		eventMap:  cfg.EventMap,
		rateLimit: cfg.RequestsPerSecond,
		exchanges: exchanges,
	}
	s.mux = httprouter.New()
	s.mux.POST("/bid/:exchange", s.handleBid)
	s.mux.POST("/event", s.handleEvent)
	s.mux.GET("/health", s.handleHealth)
	return s
}

// Handler wraps the router's mux with the teacher's standard middleware
// stack: gzip response compression, permissive CORS for agent-side
// dashboards, and a rate limiter guarding the ingress surface.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.rateLimit > 0 {
		limiter := tollbooth.NewLimiter(s.rateLimit, nil)
		h = tollbooth.LimitHandler(limiter, h)
	}
	h = cors.Default().Handler(h)
	h = gziphandler.GzipHandler(h)
	return h
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	exchange := ps.ByName("exchange")
	decoder, ok := s.decoders[exchange]
	if !ok {
		http.Error(w, "unknown exchange", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	req, err := decoder.Decode(body)
	if err != nil {
		logger.Warnf("server: decode bid request from %s: %v", exchange, err)
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	req.Exchange = exchange
	if req.ArrivedAt.IsZero() {
		req.ArrivedAt = time.Now()
	}

	if !s.exchanges.AllowedDomain(exchange, req.URL) {
		logger.Warnf("server: %s not permitted to carry domain %s", exchange, req.URL)
		http.Error(w, "domain not permitted for exchange", http.StatusForbidden)
		return
	}

	s.shards.engineFor(req.ID).Dispatch(req)
	w.WriteHeader(http.StatusAccepted)
}

// adEventPayload is the wire shape of the adserver ingress record (spec §6
// "Adserver ingress").
type adEventPayload struct {
	RequestID    string  `json:"request_id"`
	EventType    string  `json:"event_type"`
	Timestamp    int64   `json:"timestamp"`
	PriceMicros  int64   `json:"price,omitempty"`
	AuctionTag   string  `json:"auction_user_tag,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload adEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	internal, ok := s.eventMap[payload.EventType]
	if !ok {
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	ts := time.Now()
	if payload.Timestamp > 0 {
		ts = time.Unix(0, payload.Timestamp*int64(time.Millisecond))
	}

	ev := postauction.AdEvent{
		RequestID:   payload.RequestID,
		Type:        internal,
		PriceMicros: payload.PriceMicros,
		Timestamp:   ts,
	}
	s.shards.loopFor(ev.RequestID).OnAdEvent(ev)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
