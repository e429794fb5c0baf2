// Package exchangeconfig loads the --exchange-configuration file (spec
// §6): per-exchange decoder selection plus the set of domains and
// accounts that exchange is permitted to transact on behalf of.
package exchangeconfig

// Entry is one exchange's configuration: which decoder it speaks and
// which domains/accounts its traffic is allowed to carry.
type Entry struct {
	ID       string
	Decoder  string
	Domains  map[string]bool
	Accounts map[string]bool
}

// Registry resolves exchange names to their Entry. The router consults
// it as a cheap pre-filter pre-dispatch reject, ahead of the full agent
// filter pipeline, matching the blacklist's "cheapest reject first"
// placement.
type Registry interface {
	Lookup(exchangeID string) (*Entry, bool)
	AllowedDomain(exchangeID, domain string) bool
	AllowedAccount(exchangeID, account string) bool
	Close()
}
