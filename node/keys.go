package node

import (
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"gitlab.com/alternet/naming-service/naming/record"
)

var ErrKeyExists = errors.New("key file already exists")

// GenerateKey creates an Ed25519 identity.
func GenerateKey() (crypto.PrivKey, error) {
	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating key pair")
	}
	return priv, nil
}

// WriteKey stores priv at path in its protobuf encoding, readable by the
// owner only. It refuses to replace an existing file unless force is set.
func WriteKey(fs afero.Fs, path string, priv crypto.PrivKey, force bool) error {
	if !force {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return errors.Wrapf(err, "checking %s", path)
		}
		if exists {
			return errors.Wrap(ErrKeyExists, path)
		}
	}
	raw, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return errors.Wrap(err, "marshalling private key")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	if err := afero.WriteFile(fs, path, raw, 0o600); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// ReadKey loads a key written by WriteKey.
func ReadKey(fs afero.Fs, path string) (crypto.PrivKey, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	priv, err := crypto.UnmarshalPrivateKey(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to unmarshal private key in %s", path)
	}
	return priv, nil
}

// LoadOrCreateKey reads the identity at path, generating and storing a new
// one on first start.
func LoadOrCreateKey(fs afero.Fs, path string) (crypto.PrivKey, error) {
	priv, err := ReadKey(fs, path)
	if err == nil {
		return priv, nil
	}
	if !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}

	priv, err = GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := WriteKey(fs, path, priv, false); err != nil {
		return nil, err
	}
	id, _ := peer.IDFromPrivateKey(priv)
	zlog.Sugar().Infof("generated new identity %s in %s", id, path)
	return priv, nil
}

// ParseTrustedRoots turns the configured root name -> peer id pairs into
// the form the naming behaviour expects.
func ParseTrustedRoots(roots map[string]string) (map[record.Name]peer.ID, error) {
	trusted := make(map[record.Name]peer.ID, len(roots))
	for rawName, rawID := range roots {
		name, err := record.ParseName(rawName)
		if err != nil {
			return nil, errors.Wrap(err, "trusted root")
		}
		if !name.IsRoot() {
			return nil, errors.Errorf("trusted root %q is not a top-level name", rawName)
		}
		id, err := peer.Decode(rawID)
		if err != nil {
			return nil, errors.Wrapf(err, "trusted root %s: peer id %q", name, rawID)
		}
		trusted[name] = id
	}
	return trusted, nil
}

// ParseAddrs parses multiaddrs such as the bootstrap peers.
func ParseAddrs(raw []string) ([]multiaddr.Multiaddr, error) {
	addrs := make([]multiaddr.Multiaddr, 0, len(raw))
	for _, s := range raw {
		addr, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, errors.Wrapf(err, "address %q", s)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// ParseNames parses and normalises the configured domains.
func ParseNames(raw []string) ([]record.Name, error) {
	names := make([]record.Name, 0, len(raw))
	for _, s := range raw {
		name, err := record.ParseName(s)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
