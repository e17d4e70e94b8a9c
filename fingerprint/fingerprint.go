package fingerprint

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand"
)

// DefaultWidth is the documented fingerprint width in bits.
const DefaultWidth = 10000

const wordBits = 64

// ErrDimensionMismatch is returned when two fingerprints of different widths
// are combined. The operation is aborted; operands are never padded.
var ErrDimensionMismatch = errors.New("fingerprint: dimension mismatch")

// Fingerprint is a fixed-width bit vector. The zero value is not usable;
// construct one with Zero, Random, Derive or FromBytes.
//
// Fingerprints are treated as immutable: all algebra returns new values, so
// a fingerprint may be shared across goroutines without synchronization.
type Fingerprint struct {
	width int
	words []uint64
}

// Zero returns the all-zero fingerprint of the given width.
func Zero(width int) *Fingerprint {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Fingerprint{
		width: width,
		words: make([]uint64, wordCount(width)),
	}
}

// Random returns a fingerprint with uniformly random bits. The same seed
// always produces the same fingerprint, which keeps tests reproducible.
func Random(width int, seed int64) *Fingerprint {
	f := Zero(width)
	rng := rand.New(rand.NewSource(seed))
	for i := range f.words {
		f.words[i] = rng.Uint64()
	}
	f.maskTail()
	return f
}

// Derive returns a deterministic pseudo-random fingerprint for a 64-bit key.
// It is used for position and axis codes: the same (key, width) pair yields
// the same code on every run and every machine.
func Derive(width int, key uint64) *Fingerprint {
	f := Zero(width)
	state := key
	for i := range f.words {
		state = splitmix64(state)
		f.words[i] = state
	}
	f.maskTail()
	return f
}

// FromBytes reconstructs a fingerprint from its Bytes representation.
func FromBytes(width int, data []byte) (*Fingerprint, error) {
	if width <= 0 {
		return nil, fmt.Errorf("fingerprint: invalid width %d", width)
	}
	if len(data) != byteCount(width) {
		return nil, fmt.Errorf("fingerprint: need %d bytes for width %d, got %d",
			byteCount(width), width, len(data))
	}
	f := Zero(width)
	for i, b := range data {
		f.words[i/8] |= uint64(b) << (uint(i%8) * 8)
	}
	f.maskTail()
	return f, nil
}

// Width returns the width in bits.
func (f *Fingerprint) Width() int { return f.width }

// Bytes returns the bit content as a little-endian byte slice of length
// ceil(width/8). The returned slice is a copy.
func (f *Fingerprint) Bytes() []byte {
	out := make([]byte, byteCount(f.width))
	for i := range out {
		out[i] = byte(f.words[i/8] >> (uint(i%8) * 8))
	}
	return out
}

// Bit reports whether bit i is set.
func (f *Fingerprint) Bit(i int) bool {
	return f.words[i/wordBits]&(1<<(uint(i)%wordBits)) != 0
}

// OnesCount returns the number of set bits.
func (f *Fingerprint) OnesCount() int {
	n := 0
	for _, w := range f.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Equal reports bit-for-bit equality. Fingerprints of different widths are
// never equal.
func (f *Fingerprint) Equal(o *Fingerprint) bool {
	if f.width != o.width {
		return false
	}
	for i, w := range f.words {
		if w != o.words[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (f *Fingerprint) Clone() *Fingerprint {
	c := &Fingerprint{width: f.width, words: make([]uint64, len(f.words))}
	copy(c.words, f.words)
	return c
}

// Bind XORs two fingerprints. Bind is self-inverse: Bind(Bind(a, b), a) == b.
func Bind(a, b *Fingerprint) (*Fingerprint, error) {
	if a.width != b.width {
		return nil, fmt.Errorf("%w: %d vs %d bits", ErrDimensionMismatch, a.width, b.width)
	}
	c := Zero(a.width)
	for i := range c.words {
		c.words[i] = a.words[i] ^ b.words[i]
	}
	return c, nil
}

// Unbind recovers b from Bind(a, b) and a. It is the same XOR; the separate
// name documents intent at call sites.
func Unbind(bound, a *Fingerprint) (*Fingerprint, error) {
	return Bind(bound, a)
}

// Bundle computes the per-bit majority vote across the inputs. A bit is set
// in the result only when strictly more than half the inputs set it, so an
// exact tie yields 0. The result is independent of input order.
func Bundle(items []*Fingerprint) (*Fingerprint, error) {
	if len(items) == 0 {
		return nil, errors.New("fingerprint: bundle of zero items")
	}
	width := items[0].width
	for _, it := range items[1:] {
		if it.width != width {
			return nil, fmt.Errorf("%w: %d vs %d bits", ErrDimensionMismatch, width, it.width)
		}
	}
	if len(items) == 1 {
		return items[0].Clone(), nil
	}

	counts := make([]uint16, width)
	for _, it := range items {
		for wi, w := range it.words {
			base := wi * wordBits
			for w != 0 {
				tz := bits.TrailingZeros64(w)
				counts[base+tz]++
				w &= w - 1
			}
		}
	}

	out := Zero(width)
	for i, c := range counts {
		if int(c)*2 > len(items) {
			out.words[i/wordBits] |= 1 << (uint(i) % wordBits)
		}
	}
	return out, nil
}

// Distance returns the Hamming distance between two fingerprints, in [0, W].
func Distance(a, b *Fingerprint) (int, error) {
	if a.width != b.width {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrDimensionMismatch, a.width, b.width)
	}
	d := 0
	for i, w := range a.words {
		d += bits.OnesCount64(w ^ b.words[i])
	}
	return d, nil
}

// Similarity returns 1 - Distance/W, in [0, 1].
func Similarity(a, b *Fingerprint) (float64, error) {
	d, err := Distance(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - float64(d)/float64(a.width), nil
}

// FlipRandom returns a copy of f with n distinct random bits flipped.
// Useful for simulating corruption; deterministic for a fixed seed.
func FlipRandom(f *Fingerprint, n int, seed int64) *Fingerprint {
	out := f.Clone()
	rng := rand.New(rand.NewSource(seed))
	flipped := make(map[int]struct{}, n)
	for len(flipped) < n && len(flipped) < f.width {
		i := rng.Intn(f.width)
		if _, done := flipped[i]; done {
			continue
		}
		flipped[i] = struct{}{}
		out.words[i/wordBits] ^= 1 << (uint(i) % wordBits)
	}
	return out
}

// Sculpt returns a copy of current with the first n differing bits (lowest
// index first) flipped to match target. n is clamped to the number of
// differing bits, so Sculpt(current, target, W) == target.
func Sculpt(current, target *Fingerprint, n int) (*Fingerprint, error) {
	if current.width != target.width {
		return nil, fmt.Errorf("%w: %d vs %d bits", ErrDimensionMismatch, current.width, target.width)
	}
	out := current.Clone()
	if n <= 0 {
		return out, nil
	}
	remaining := n
	for wi := range out.words {
		diff := out.words[wi] ^ target.words[wi]
		for diff != 0 && remaining > 0 {
			lowest := diff & -diff
			out.words[wi] ^= lowest
			diff ^= lowest
			remaining--
		}
		if remaining == 0 {
			break
		}
	}
	return out, nil
}

func wordCount(width int) int { return (width + wordBits - 1) / wordBits }

func byteCount(width int) int { return (width + 7) / 8 }

// maskTail clears bits beyond the width in the last word so equality and
// popcounts never see garbage.
func (f *Fingerprint) maskTail() {
	if rem := f.width % wordBits; rem != 0 {
		f.words[len(f.words)-1] &= (1 << uint(rem)) - 1
	}
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
