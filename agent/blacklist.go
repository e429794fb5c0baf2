package agent

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// BlacklistStore holds (user, site) blacklist entries with per-entry TTL,
// supplementing spec.md from RTBKit's router blacklist (original_source/
// rtbkit/core/router): an agent may blacklist a user (optionally scoped to
// the whole account) after a loss or error, for a configured duration.
type BlacklistStore struct {
	cache *gocache.Cache
}

func NewBlacklistStore() *BlacklistStore {
	return &BlacklistStore{cache: gocache.New(5*time.Minute, time.Minute)}
}

func blacklistKey(scope, scopeID, userID, site string) string {
	return scope + "|" + scopeID + "|" + userID + "|" + site
}

// Add blacklists userID (optionally scoped to site) under scopeID for
// duration. scopeID is the agentID for BlacklistScopeAgent, or the account
// for BlacklistScopeAccount.
func (b *BlacklistStore) Add(scope BlacklistScope, scopeID, userID, site string, duration time.Duration) {
	b.cache.Set(blacklistKey(string(scope), scopeID, userID, site), struct{}{}, duration)
}

// Blacklisted reports whether userID is currently blacklisted for cfg,
// honoring cfg.Blacklist.Mode/Scope. site is only consulted in
// BlacklistUserOnSite mode.
func (b *BlacklistStore) Blacklisted(cfg *Config, userID, site string) bool {
	if cfg.Blacklist.Mode == BlacklistOff || userID == "" {
		return false
	}

	scopeID := cfg.AgentID
	if cfg.Blacklist.Scope == BlacklistScopeAccount {
		scopeID = cfg.Account
	}

	checkSite := ""
	if cfg.Blacklist.Mode == BlacklistUserOnSite {
		checkSite = site
	}

	_, found := b.cache.Get(blacklistKey(string(cfg.Blacklist.Scope), scopeID, userID, checkSite))
	return found
}
