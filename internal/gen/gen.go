// Package gen provides deterministic synthetic data generators. Every
// function is a pure function of its inputs so that two runs with the same
// cycle numbers produce the same rows.
package gen

import (
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

var uuidNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// Hash returns a 63-bit hash of i.
func Hash(i int64) int64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i))
	return int64(xxhash.Sum64(buf[:]) >> 1)
}

// Hash2 returns a 63-bit hash of the pair (a, b).
func Hash2(a, b int64) int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(a))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b))
	return int64(xxhash.Sum64(buf[:]) >> 1)
}

// HashRange maps i into [0, max).
func HashRange(i, max int64) int64 {
	if max <= 0 {
		return 0
	}
	return Hash(i) % max
}

// HashSelect deterministically picks one of n items for i.
func HashSelect(i int64, n int) int {
	if n <= 0 {
		return -1
	}
	return int(HashRange(i, int64(n)))
}

// UUID returns a name-based UUID derived from i.
func UUID(i int64) uuid.UUID {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(i))
	return uuid.NewSHA1(uuidNamespace, buf[:])
}

func rng(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(Hash(seed)))
}

// Blob returns n pseudo-random bytes seeded by seed.
func Blob(seed int64, n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	out := make([]byte, n)
	r := rng(seed)
	for i := range out {
		out[i] = byte(r.Intn(256))
	}
	return out
}

const textAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "

// Text returns n printable characters seeded by seed.
func Text(seed int64, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, n)
	r := rng(seed)
	for i := range out {
		out[i] = textAlphabet[r.Intn(len(textAlphabet))]
	}
	return string(out)
}

// Uniform returns a value in [min, max) seeded by i.
func Uniform(i int64, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng(i).Float64()*(max-min)
}

// Normal returns a normally distributed value seeded by i.
func Normal(i int64, mean, stdDev float64) float64 {
	return mean + rng(i).NormFloat64()*math.Abs(stdDev)
}

// Vector returns n values in [0, 1) seeded by seed, for vector columns.
func Vector(seed int64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	r := rng(seed)
	for i := range out {
		out[i] = r.Float64()
	}
	return out
}
