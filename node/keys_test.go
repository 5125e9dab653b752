package node

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/alternet/naming-service/internal/config"
	"gitlab.com/alternet/naming-service/naming/record"
)

func TestLoadOrCreateKey(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	path := "/data/identity.key"

	first, err := LoadOrCreateKey(fs, path)
	require.NoError(t, err)

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	second, err := LoadOrCreateKey(fs, path)
	require.NoError(t, err)
	assert.True(t, first.Equals(second), "the stored key must be reused")
}

func TestLoadOrCreateKeyCorrupt(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "identity.key", []byte("not a key"), 0o600))

	_, err := LoadOrCreateKey(fs, "identity.key")
	assert.ErrorContains(t, err, "unable to unmarshal private key")

	raw, err := afero.ReadFile(fs, "identity.key")
	require.NoError(t, err)
	assert.Equal(t, []byte("not a key"), raw, "a corrupt key must not be replaced")
}

func TestWriteKey(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	priv, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	require.NoError(t, WriteKey(fs, "keys/a.key", priv, false))

	err = WriteKey(fs, "keys/a.key", other, false)
	assert.ErrorIs(t, err, ErrKeyExists)

	require.NoError(t, WriteKey(fs, "keys/a.key", other, true))
	loaded, err := ReadKey(fs, "keys/a.key")
	require.NoError(t, err)
	assert.True(t, other.Equals(loaded))
}

func TestParseTrustedRoots(t *testing.T) {
	t.Parallel()

	priv, err := GenerateKey()
	require.NoError(t, err)
	id, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)

	cases := map[string]struct {
		roots   map[string]string
		want    map[record.Name]peer.ID
		wantErr string
	}{
		"empty": {
			roots: nil,
			want:  map[record.Name]peer.ID{},
		},
		"normalised name": {
			roots: map[string]string{"AN.": id.String()},
			want:  map[record.Name]peer.ID{record.MustParseName("an"): id},
		},
		"subdomain": {
			roots:   map[string]string{"foo.an": id.String()},
			wantErr: "not a top-level name",
		},
		"bad peer id": {
			roots:   map[string]string{"an": "nope"},
			wantErr: "peer id",
		},
		"bad name": {
			roots:   map[string]string{"a..b": id.String()},
			wantErr: "invalid domain name",
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTrustedRoots(tc.roots)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseAddrs(t *testing.T) {
	t.Parallel()

	addrs, err := ParseAddrs([]string{"/ip4/127.0.0.1/tcp/4077", "/an/example.an/tcp/4077"})
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "/an/example.an/tcp/4077", addrs[1].String())

	_, err = ParseAddrs([]string{"not-an-addr"})
	assert.ErrorContains(t, err, "not-an-addr")
}

func TestParseNames(t *testing.T) {
	t.Parallel()

	names, err := ParseNames([]string{"Foo.AN", "bar.an."})
	require.NoError(t, err)
	assert.Equal(t, []record.Name{record.MustParseName("foo.an"), record.MustParseName("bar.an")}, names)

	_, err = ParseNames([]string{""})
	assert.ErrorIs(t, err, record.ErrInvalidName)
}

func TestDataPath(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{General: config.General{DataDir: "/var/lib/alternet"}}
	assert.Equal(t, "/var/lib/alternet/claims.db", DataPath(cfg, "claims.db"))
	assert.Equal(t, "/tmp/claims.db", DataPath(cfg, "/tmp/claims.db"))
}
