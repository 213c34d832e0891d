// Package vector generates and fingerprints work-item vectors.
package vector

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/bits"

	"github.com/tuneinsight/lattigo/v4/utils"
	"golang.org/x/crypto/sha3"
)

// Uniform draws n values uniform in [0, p) from a PRNG keyed by seed.
func Uniform(seed []byte, n int, p uint32) ([]uint32, error) {
	if p == 0 {
		return nil, fmt.Errorf("vector: zero modulus")
	}
	prng, err := utils.NewKeyedPRNG(seed)
	if err != nil {
		return nil, fmt.Errorf("vector: keyed prng: %w", err)
	}
	return FromPRNG(prng, n, p)
}

// FromPRNG rejection-samples n values below p from r.
func FromPRNG(r io.Reader, n int, p uint32) ([]uint32, error) {
	mask := uint32(1)<<bits.Len32(p) - 1
	out := make([]uint32, n)
	buf := make([]byte, 4)
	for i := range out {
		for {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("vector: prng read: %w", err)
			}
			v := binary.LittleEndian.Uint32(buf) & mask
			if v < p {
				out[i] = v
				break
			}
		}
	}
	return out, nil
}

// Ramp returns 0, 1, ..., n-1 reduced mod p.
func Ramp(n int, p uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(i) % p
	}
	return out
}

// Digest is SHA3-256 over the little-endian encoding of v.
func Digest(v []uint32) [32]byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], x)
	}
	return sha3.Sum256(buf)
}

// DigestHex is Digest rendered as a short hex string for reports.
func DigestHex(v []uint32) string {
	d := Digest(v)
	return hex.EncodeToString(d[:8])
}
