package exchangeconfig

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestFileRegistry(t *testing.T) {
	doc := exchangeConfigFile{
		Exchanges: []fileEntry{
			{ID: "appnexus", Decoder: "json", Domains: []string{"one.com", "two.com"}, Accounts: []string{"acct-1"}},
			{ID: "openLedger", Decoder: "json"},
		},
	}

	b, err := yaml.Marshal(&doc)
	require.NoError(t, err)

	tmpfile, err := ioutil.TempFile("", "exchangeconfig")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())
	require.NoError(t, ioutil.WriteFile(tmpfile.Name(), b, 0644))

	reg, err := NewFileRegistry(tmpfile.Name())
	require.NoError(t, err)

	require.True(t, reg.AllowedDomain("appnexus", "one.com"))
	require.False(t, reg.AllowedDomain("appnexus", "three.com"))
	require.True(t, reg.AllowedAccount("appnexus", "acct-1"))
	require.False(t, reg.AllowedAccount("appnexus", "acct-2"))

	// An exchange with no configured allow-list permits everything.
	require.True(t, reg.AllowedDomain("openLedger", "anything.com"))
	require.True(t, reg.AllowedAccount("openLedger", "any-account"))

	require.False(t, reg.AllowedDomain("unknown-exchange", "one.com"))

	e, ok := reg.Lookup("appnexus")
	require.True(t, ok)
	require.Equal(t, "json", e.Decoder)
}
