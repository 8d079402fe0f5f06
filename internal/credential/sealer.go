package credential

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrUnseal = errors.New("cannot unseal credential")

// Sealer encrypts credentials at rest with a symmetric secretbox key.
type Sealer struct {
	key [32]byte
}

func NewSealer(key [32]byte) *Sealer { return &Sealer{key: key} }

// Seal returns nonce || secretbox(json(c)).
func (s *Sealer) Seal(c Credential) ([]byte, error) {
	plain, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Sealer) Open(sealed []byte) (Credential, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return Credential{}, fmt.Errorf("%w: too short", ErrUnseal)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return Credential{}, fmt.Errorf("%w: authentication failed", ErrUnseal)
	}
	var c Credential
	if err := json.Unmarshal(plain, &c); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrUnseal, err)
	}
	return c, nil
}
