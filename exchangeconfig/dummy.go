package exchangeconfig

// DummyRegistry is the Registry used when no --exchange-configuration
// file is given: every exchange is known and every domain/account is
// allowed.
type DummyRegistry struct{}

func NewDummyRegistry() *DummyRegistry { return &DummyRegistry{} }

func (r *DummyRegistry) Close() {}

func (r *DummyRegistry) Lookup(exchangeID string) (*Entry, bool) {
	return &Entry{ID: exchangeID, Decoder: "json"}, true
}

func (r *DummyRegistry) AllowedDomain(exchangeID, domain string) bool   { return true }
func (r *DummyRegistry) AllowedAccount(exchangeID, account string) bool { return true }
