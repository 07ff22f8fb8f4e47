// Package digest parses and computes content digests in the prefixed form.
//
// Format: "algorithm:hexvalue" (e.g., "sha1:2f3c...", "sha256:c0ffee...").
// Bare hex values are accepted and the algorithm is guessed from their length.
package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
)

// ChunkSize is the read size used when hashing streams.
const ChunkSize = 64 * 1024

var (
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")
	ErrInvalidDigest    = errors.New("invalid digest")
)

// Algorithm identifies a supported hash function.
type Algorithm int

const (
	SHA1 Algorithm = iota
	SHA256
	SHA512
)

func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case SHA512:
		return sha512.New()
	default:
		return sha1.New()
	}
}

func (a Algorithm) hexLen() int {
	switch a {
	case SHA256:
		return 64
	case SHA512:
		return 128
	default:
		return 40
	}
}

// ParseAlgorithm maps a prefix such as "sha256" to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	default:
		return SHA1, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
}

// Digest is an algorithm plus a lowercase hex value.
type Digest struct {
	Algorithm Algorithm
	Hex       string
}

// Parse parses a digest that may or may not carry an algorithm prefix.
func Parse(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Digest{}, fmt.Errorf("%w: empty", ErrInvalidDigest)
	}

	var algo Algorithm
	value := s
	if name, rest, ok := strings.Cut(s, ":"); ok {
		a, err := ParseAlgorithm(name)
		if err != nil {
			return Digest{}, err
		}
		algo, value = a, rest
	} else {
		// Legacy format - guess based on length
		switch len(s) {
		case 40:
			algo = SHA1
		case 64:
			algo = SHA256
		case 128:
			algo = SHA512
		default:
			return Digest{}, fmt.Errorf("%w: cannot guess algorithm for %d hex chars", ErrInvalidDigest, len(s))
		}
	}

	value = strings.ToLower(value)
	if len(value) != algo.hexLen() {
		return Digest{}, fmt.Errorf("%w: %s value has %d hex chars, want %d", ErrInvalidDigest, algo, len(value), algo.hexLen())
	}
	if _, err := hex.DecodeString(value); err != nil {
		return Digest{}, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	return Digest{Algorithm: algo, Hex: value}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Digest {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromHex builds a digest from a known algorithm and hex value.
func FromHex(algo Algorithm, value string) (Digest, error) {
	return Parse(algo.String() + ":" + value)
}

// String renders the prefixed form.
func (d Digest) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Algorithm.String() + ":" + d.Hex
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d.Hex == ""
}

// Equal compares algorithm and value.
func (d Digest) Equal(o Digest) bool {
	return d.Algorithm == o.Algorithm && strings.EqualFold(d.Hex, o.Hex)
}

// Matches reports whether a raw hash sum equals the digest.
func (d Digest) Matches(sum []byte) bool {
	return strings.EqualFold(hex.EncodeToString(sum), d.Hex)
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Digest{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Of computes the digest of r with the given algorithm, reading in ChunkSize chunks.
func Of(r io.Reader, algo Algorithm) (Digest, int64, error) {
	h := algo.New()
	n, err := io.CopyBuffer(h, r, make([]byte, ChunkSize))
	if err != nil {
		return Digest{}, n, err
	}
	return Digest{Algorithm: algo, Hex: hex.EncodeToString(h.Sum(nil))}, n, nil
}

// OfBytes computes the digest of data.
func OfBytes(data []byte, algo Algorithm) Digest {
	h := algo.New()
	h.Write(data)
	return Digest{Algorithm: algo, Hex: hex.EncodeToString(h.Sum(nil))}
}

// Verifier hashes everything read through it.
type Verifier struct {
	r    io.Reader
	h    hash.Hash
	want Digest
	n    int64
}

// NewVerifier wraps r so that reads feed a hash for want's algorithm.
func NewVerifier(r io.Reader, want Digest) *Verifier {
	return &Verifier{r: r, h: want.Algorithm.New(), want: want}
}

func (v *Verifier) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		v.h.Write(p[:n])
		v.n += int64(n)
	}
	return n, err
}

// BytesRead returns the number of bytes hashed so far.
func (v *Verifier) BytesRead() int64 {
	return v.n
}

// Sum returns the digest of the bytes read so far.
func (v *Verifier) Sum() Digest {
	return Digest{Algorithm: v.want.Algorithm, Hex: hex.EncodeToString(v.h.Sum(nil))}
}

// Verified reports whether the bytes read so far match the expected digest.
func (v *Verifier) Verified() bool {
	return v.want.Matches(v.h.Sum(nil))
}
