package core

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies an account on the ledger.
type Address [32]byte

// ObjectID identifies an on-chain object.
type ObjectID [32]byte

// ObjectRef is a versioned reference to an object, such as a gas coin.
type ObjectRef struct {
	ID      ObjectID
	Version uint64
}

func (a Address) String() string  { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) IsZero() bool    { return a == Address{} }
func (o ObjectID) String() string { return "0x" + hex.EncodeToString(o[:]) }
func (o ObjectID) IsZero() bool   { return o == ObjectID{} }

func (r ObjectRef) String() string { return fmt.Sprintf("%s@%d", r.ID, r.Version) }
func (r ObjectRef) IsZero() bool   { return r.ID.IsZero() }

// ParseAddress decodes a 0x-prefixed hex address. Short inputs are left-padded.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeHex32(s)
	if err != nil {
		return a, fmt.Errorf("parsing address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// ParseObjectID decodes a 0x-prefixed hex object ID. Short inputs are left-padded.
func ParseObjectID(s string) (ObjectID, error) {
	var o ObjectID
	b, err := decodeHex32(s)
	if err != nil {
		return o, fmt.Errorf("parsing object id %q: %w", s, err)
	}
	copy(o[:], b)
	return o, nil
}

func decodeHex32(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) > 32 {
		return nil, fmt.Errorf("too long: %d bytes", len(raw))
	}
	out := make([]byte, 32)
	copy(out[32-len(raw):], raw)
	return out, nil
}

// DeriveAddress returns a deterministic address for the index-th auxiliary
// account owned by base.
func DeriveAddress(base Address, index int) Address {
	return Address(derive("address", base[:], index))
}

// DeriveObjectID returns a deterministic object ID for the index-th auxiliary
// object created from base.
func DeriveObjectID(base ObjectID, index int) ObjectID {
	return ObjectID(derive("object", base[:], index))
}

func derive(domain string, base []byte, index int) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write(base)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(index))
	h.Write(idx[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Keypair is an immutable ed25519 signing credential. The zero value is
// invalid. Copies share nothing mutable, so a Keypair can be handed to any
// number of workers by value.
type Keypair struct {
	seed string
}

// NewKeypair builds a keypair from a 32-byte ed25519 seed.
func NewKeypair(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("keypair seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return Keypair{seed: string(seed)}, nil
}

// KeypairFromHex builds a keypair from a hex-encoded 32-byte seed.
func KeypairFromHex(s string) (Keypair, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Keypair{}, fmt.Errorf("decoding keypair seed: %w", err)
	}
	return NewKeypair(raw)
}

func (k Keypair) IsZero() bool { return k.seed == "" }

func (k Keypair) privateKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed([]byte(k.seed))
}

// Public returns a fresh copy of the public key.
func (k Keypair) Public() ed25519.PublicKey {
	return k.privateKey().Public().(ed25519.PublicKey)
}

// Address derives the account address controlled by this keypair.
func (k Keypair) Address() Address {
	sum := sha256.Sum256(append([]byte{0x00}, k.Public()...))
	return Address(sum)
}

// Sign signs msg. It allocates its own key material on every call.
func (k Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.privateKey(), msg)
}

// Verify reports whether sig is a valid signature of msg by this keypair.
func (k Keypair) Verify(msg, sig []byte) bool {
	return ed25519.Verify(k.Public(), msg, sig)
}
