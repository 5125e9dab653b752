package record

import (
	"testing"
	"time"

	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	priv := newKey(t)
	cases := map[string]struct {
		record Record
		check  func(t *testing.T, got Record)
	}{
		"root": {
			record: &RootRecord{Root: MustParseName("an"), Addr: multiaddr.StringCast("/ip4/1.2.3.4/tcp/80")},
			check: func(t *testing.T, got Record) {
				r, ok := got.(*RootRecord)
				require.True(t, ok)
				assert.Equal(t, "an", r.Root.String())
				assert.True(t, r.Addr.Equal(multiaddr.StringCast("/ip4/1.2.3.4/tcp/80")))
			},
		},
		"lease": {
			record: &LeaseRecord{
				Subdomain: MustParseName("sub.an"),
				Leasee:    idOf(t, newKey(t)),
				Until:     time.Unix(1_800_000_000, 123456789),
			},
			check: func(t *testing.T, got Record) {
				r, ok := got.(*LeaseRecord)
				require.True(t, ok)
				assert.Equal(t, "sub.an", r.Subdomain.String())
				assert.NotEmpty(t, r.Leasee)
				assert.True(t, r.Until.Equal(time.Unix(1_800_000_000, 123456789)))
			},
		},
		"addr": {
			record: &AddrRecord{
				Domain: MustParseName("sub.an"),
				Addrs: []multiaddr.Multiaddr{
					multiaddr.StringCast("/ip4/1.2.3.4/tcp/80"),
					multiaddr.StringCast("/dns4/example.com/tcp/443"),
				},
			},
			check: func(t *testing.T, got Record) {
				r, ok := got.(*AddrRecord)
				require.True(t, ok)
				require.Len(t, r.Addrs, 2)
				assert.Equal(t, "/ip4/1.2.3.4/tcp/80", r.Addrs[0].String())
				assert.Equal(t, "/dns4/example.com/tcp/443", r.Addrs[1].String())
			},
		},
		"addr without addresses": {
			record: &AddrRecord{Domain: MustParseName("sub.an")},
			check: func(t *testing.T, got Record) {
				r, ok := got.(*AddrRecord)
				require.True(t, ok)
				assert.Empty(t, r.Addrs)
			},
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := mustSign(t, priv, tc.record)
			encoded := Encode(s)

			assert.Equal(t, StoreKey(tc.record.Kind(), tc.record.Name()), encoded[:len(StoreKey(tc.record.Kind(), tc.record.Name()))])

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.record.Kind(), decoded.Signed.Kind())
			assert.Equal(t, idOf(t, priv), decoded.Signer())
			assert.Equal(t, s.Signature, decoded.Signature)
			tc.check(t, decoded.Signed)

			assert.Equal(t, encoded, Encode(decoded))
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	priv := newKey(t)
	valid := Encode(mustSign(t, priv, &AddrRecord{
		Domain: MustParseName("x.an"),
		Addrs:  []multiaddr.Multiaddr{multiaddr.StringCast("/ip4/1.2.3.4/tcp/80")},
	}))

	unknown := &writer{}
	unknown.string("txt:x.an")

	cases := map[string]struct {
		value []byte
		err   error
	}{
		"empty":          {value: nil},
		"truncated":      {value: valid[:len(valid)-3]},
		"only key":       {value: StoreKey(KindAddr, MustParseName("x.an"))},
		"unknown kind":   {value: unknown.buf, err: ErrUnknownRecordType},
		"trailing bytes": {value: append(append([]byte{}, valid...), 0x00), err: ErrMoreData},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tc.value)
			require.Error(t, err)
			assert.True(t, IsDecodeError(err), err.Error())
			assert.False(t, IsTrustError(err))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestStoreKeyIsValuePrefix(t *testing.T) {
	t.Parallel()

	f := newChainFixture(t)
	stored := Publish(f.addrChain(t), f.now.Add(time.Hour))
	assert.Equal(t, StoreKey(KindAddr, MustParseName("a.b.an")), stored.Key)
	assert.Equal(t, stored.Key, stored.Value[:len(stored.Key)])
	assert.Equal(t, idOf(t, f.leaf), stored.Publisher)
}
