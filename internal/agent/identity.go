package agent

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Identity is the unit's key pair, used to name it in the banner.
type Identity struct {
	Path        string
	Fingerprint string // SHA256, unpadded base64, without the "SHA256:" prefix
	Signer      ssh.Signer
}

// LoadIdentity reads the OpenSSH private key at path, generating an
// ed25519 key there first if none exists.
func LoadIdentity(path, comment string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = generateKey(path, comment)
	}
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", path, err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", path, err)
	}
	return &Identity{
		Path:        path,
		Fingerprint: strings.TrimPrefix(ssh.FingerprintSHA256(signer.PublicKey()), "SHA256:"),
		Signer:      signer,
	}, nil
}

// PublicKey returns the authorized_keys form of the public key.
func (id *Identity) PublicKey() string {
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(id.Signer.PublicKey())))
}

func generateKey(path, comment string) ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, err
	}
	data := pem.EncodeToMemory(block)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return data, nil
}
