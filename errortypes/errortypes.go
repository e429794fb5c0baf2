package errortypes

// ConfigInvalid is used when an agent or exchange configuration document fails schema
// or invariant validation. Fatal: the process refuses to start, or the registry
// refuses the single offending AgentConfig.
type ConfigInvalid struct {
	Message string
}

func (err *ConfigInvalid) Error() string   { return err.Message }
func (err *ConfigInvalid) Code() int       { return ConfigInvalidErrorCode }
func (err *ConfigInvalid) Severity() Severity { return SeverityFatal }

// AgentUnknown is used when a bid response, win, or delivery event references an
// agent-id the registry has never seen (or has since unregistered). Drop + count.
type AgentUnknown struct {
	AgentID string
}

func (err *AgentUnknown) Error() string       { return "unknown agent: " + err.AgentID }
func (err *AgentUnknown) Code() int           { return AgentUnknownErrorCode }
func (err *AgentUnknown) Severity() Severity  { return SeverityWarning }

// BidLate is used when a bid response arrives after its auction's deadline has
// passed, or after the auction already resolved. Drop + count, never fatal.
type BidLate struct {
	RequestID string
	AgentID   string
}

func (err *BidLate) Error() string      { return "late bid for " + err.RequestID + " from " + err.AgentID }
func (err *BidLate) Code() int          { return BidLateErrorCode }
func (err *BidLate) Severity() Severity { return SeverityWarning }

// BidMalformed is used when a bid response fails basic structural validation
// (unknown ad-spot id, non-positive price, missing account key). Drop + count + log.
type BidMalformed struct {
	Message string
}

func (err *BidMalformed) Error() string      { return err.Message }
func (err *BidMalformed) Code() int          { return BidMalformedErrorCode }
func (err *BidMalformed) Severity() Severity { return SeverityWarning }

// BankerInsufficient is used when the banker refuses an authorization because the
// account balance can't cover it. The caller should demote the winner and promote the
// runner-up; never fatal.
type BankerInsufficient struct {
	Account string
}

func (err *BankerInsufficient) Error() string      { return "insufficient balance for account " + err.Account }
func (err *BankerInsufficient) Code() int          { return BankerInsufficientErrorCode }
func (err *BankerInsufficient) Severity() Severity { return SeverityWarning }

// BankerUnavailable is used when the banker RPC itself fails (timeout, connection
// refused). Escalated through the health signal into slow-mode.
type BankerUnavailable struct {
	Message string
}

func (err *BankerUnavailable) Error() string      { return err.Message }
func (err *BankerUnavailable) Code() int          { return BankerUnavailableErrorCode }
func (err *BankerUnavailable) Severity() Severity { return SeverityFatal }

// DownstreamQueueFull is used when an event-emission queue is full and the oldest
// entry had to be dropped to make room. Drop-oldest + count.
type DownstreamQueueFull struct {
	Queue string
}

func (err *DownstreamQueueFull) Error() string      { return err.Queue + " queue full, dropped oldest" }
func (err *DownstreamQueueFull) Code() int          { return DownstreamQueueFullErrorCode }
func (err *DownstreamQueueFull) Severity() Severity { return SeverityWarning }

// OrphanEvent is used when a buffered early win/impression/click event expires
// from the grace-window buffer without ever finding its PostAuctionRecord.
type OrphanEvent struct {
	RequestID string
	EventType string
}

func (err *OrphanEvent) Error() string      { return "orphaned " + err.EventType + " for " + err.RequestID }
func (err *OrphanEvent) Code() int          { return OrphanEventErrorCode }
func (err *OrphanEvent) Severity() Severity { return SeverityWarning }

// InvariantViolated is used when a global invariant from spec §3 is caught broken
// at runtime (e.g. two PostAuctionRecords for the same request-id). Fatal: the
// owning shard terminates rather than continue operating on inconsistent state.
type InvariantViolated struct {
	Message string
}

func (err *InvariantViolated) Error() string      { return err.Message }
func (err *InvariantViolated) Code() int          { return InvariantViolatedErrorCode }
func (err *InvariantViolated) Severity() Severity { return SeverityFatal }
