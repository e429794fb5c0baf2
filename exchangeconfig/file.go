package exchangeconfig

import (
	"io/ioutil"

	"github.com/golang/glog"
	yaml "gopkg.in/yaml.v2"
)

// FileRegistry is the production Registry: a YAML document loaded once at
// startup and held read-only for the process's lifetime.
type FileRegistry struct {
	entries map[string]*Entry
}

type fileEntry struct {
	ID       string   `yaml:"id"`
	Decoder  string   `yaml:"decoder"`
	Domains  []string `yaml:"domains"`
	Accounts []string `yaml:"accounts"`
}

type exchangeConfigFile struct {
	Exchanges []fileEntry `yaml:"exchanges"`
}

func NewFileRegistry(filename string) (*FileRegistry, error) {
	if glog.V(2) {
		glog.Infof("exchangeconfig: reading %s", filename)
	}

	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var doc exchangeConfigFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}

	r := &FileRegistry{entries: make(map[string]*Entry, len(doc.Exchanges))}
	for _, fe := range doc.Exchanges {
		e := &Entry{
			ID:       fe.ID,
			Decoder:  fe.Decoder,
			Domains:  make(map[string]bool, len(fe.Domains)),
			Accounts: make(map[string]bool, len(fe.Accounts)),
		}
		for _, d := range fe.Domains {
			e.Domains[d] = true
		}
		for _, a := range fe.Accounts {
			e.Accounts[a] = true
		}
		r.entries[fe.ID] = e
	}
	glog.Infof("exchangeconfig: loaded %d exchanges", len(r.entries))
	return r, nil
}

func (r *FileRegistry) Close() {}

func (r *FileRegistry) Lookup(exchangeID string) (*Entry, bool) {
	e, ok := r.entries[exchangeID]
	return e, ok
}

// AllowedDomain reports whether domain is permitted for exchangeID. An
// exchange with no configured domain allow-list permits every domain.
func (r *FileRegistry) AllowedDomain(exchangeID, domain string) bool {
	e, ok := r.entries[exchangeID]
	if !ok {
		return false
	}
	if len(e.Domains) == 0 {
		return true
	}
	return e.Domains[domain]
}

// AllowedAccount reports whether account is permitted for exchangeID. An
// exchange with no configured account allow-list permits every account.
func (r *FileRegistry) AllowedAccount(exchangeID, account string) bool {
	e, ok := r.entries[exchangeID]
	if !ok {
		return false
	}
	if len(e.Accounts) == 0 {
		return true
	}
	return e.Accounts[account]
}
