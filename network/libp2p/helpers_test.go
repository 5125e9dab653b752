package libp2p

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"gitlab.com/alternet/naming-service/naming/kad"
	"gitlab.com/alternet/naming-service/naming/record"
)

func newKey(t *testing.T) crypto.PrivKey {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	return priv
}

// rootStored signs a root record for name pointing at addr.
func rootStored(t *testing.T, priv crypto.PrivKey, name, addr string) kad.Record {
	t.Helper()
	signed, err := record.Sign[record.Record](priv, &record.RootRecord{
		Root: record.MustParseName(name),
		Addr: multiaddr.StringCast(addr),
	})
	require.NoError(t, err)
	return record.Publish(record.Chain{Record: signed}, time.Time{})
}
