package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xorcare/pointer"
)

func TestFromDocumentFixedCPM(t *testing.T) {
	doc := document{
		Account:        "acct-1",
		BidProbability: 1,
		BidControl:     string(BidControlRelayFixed),
		FixedCPMMicros: pointer.Int64(2500000),
		Creatives:      []Creative{{ID: "cr-1", Width: 300, Height: 250}},
	}

	cfg := fromDocument(doc)
	require.Equal(t, int64(2500000), cfg.FixedCPMMicros)
	require.NoError(t, cfg.Validate())
}

func TestFromDocumentAbsentFixedCPMDefaultsToZero(t *testing.T) {
	doc := document{
		Account:        "acct-2",
		BidProbability: 0.5,
		BidControl:     string(BidControlRelay),
		Creatives:      []Creative{{ID: "cr-1", Width: 300, Height: 250}},
	}

	cfg := fromDocument(doc)
	require.Equal(t, int64(0), cfg.FixedCPMMicros)
	require.NoError(t, cfg.Validate())
}
