package fingerprint

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindUnbindInverse(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		a := Random(DefaultWidth, seed)
		b := Random(DefaultWidth, seed+100)

		bound, err := Bind(a, b)
		require.NoError(t, err)

		recovered, err := Unbind(bound, a)
		require.NoError(t, err)
		assert.True(t, recovered.Equal(b), "unbind(bind(a,b),a) must equal b")
	}
}

func TestBindDimensionMismatch(t *testing.T) {
	a := Random(DefaultWidth, 1)
	b := Random(128, 2)

	_, err := Bind(a, b)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Distance(a, b)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Bundle([]*Fingerprint{a, b})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBundleCommutative(t *testing.T) {
	items := make([]*Fingerprint, 7)
	for i := range items {
		items[i] = Random(DefaultWidth, int64(i))
	}

	want, err := Bundle(items)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]*Fingerprint, len(items))
		copy(shuffled, items)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got, err := Bundle(shuffled)
		require.NoError(t, err)
		assert.True(t, got.Equal(want), "bundle must not depend on input order")
	}
}

func TestBundleMajorityAndTies(t *testing.T) {
	width := 64
	ones := Zero(width)
	for i := 0; i < width; i++ {
		ones.words[0] |= 1 << uint(i)
	}
	zeros := Zero(width)

	// 2-of-3 majority wins.
	got, err := Bundle([]*Fingerprint{ones, ones, zeros})
	require.NoError(t, err)
	assert.True(t, got.Equal(ones))

	// Exact tie breaks to 0.
	got, err = Bundle([]*Fingerprint{ones, zeros})
	require.NoError(t, err)
	assert.True(t, got.Equal(zeros))
}

func TestDistanceAndSimilarity(t *testing.T) {
	a := Random(DefaultWidth, 7)

	d, err := Distance(a, a)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	s, err := Similarity(a, a)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)

	flipped := FlipRandom(a, 50, 99)
	d, err = Distance(a, flipped)
	require.NoError(t, err)
	assert.Equal(t, 50, d)

	s, err = Similarity(a, flipped)
	require.NoError(t, err)
	assert.InDelta(t, 1-50.0/float64(DefaultWidth), s, 1e-12)
}

func TestDeriveDeterministic(t *testing.T) {
	a := Derive(DefaultWidth, 12345)
	b := Derive(DefaultWidth, 12345)
	c := Derive(DefaultWidth, 54321)

	assert.True(t, a.Equal(b), "same key must derive the same code")
	assert.False(t, a.Equal(c), "different keys must derive different codes")

	// Derived codes should look random: roughly half the bits set.
	count := a.OnesCount()
	assert.Greater(t, count, DefaultWidth*4/10)
	assert.Less(t, count, DefaultWidth*6/10)
}

func TestBytesRoundTrip(t *testing.T) {
	for _, width := range []int{64, 100, DefaultWidth} {
		a := Random(width, 3)
		back, err := FromBytes(width, a.Bytes())
		require.NoError(t, err)
		assert.True(t, a.Equal(back), "width %d", width)
	}

	_, err := FromBytes(DefaultWidth, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestSculpt(t *testing.T) {
	current := Random(DefaultWidth, 11)
	target := Random(DefaultWidth, 22)

	diff, err := Distance(current, target)
	require.NoError(t, err)

	// Zero flips: no-op.
	same, err := Sculpt(current, target, 0)
	require.NoError(t, err)
	assert.True(t, same.Equal(current))

	// Full flips: converges exactly.
	full, err := Sculpt(current, target, diff)
	require.NoError(t, err)
	assert.True(t, full.Equal(target))

	// Partial flips move monotonically toward the target.
	half, err := Sculpt(current, target, diff/2)
	require.NoError(t, err)
	d, err := Distance(half, target)
	require.NoError(t, err)
	assert.Equal(t, diff-diff/2, d)

	// Original input untouched.
	d, err = Distance(current, target)
	require.NoError(t, err)
	assert.Equal(t, diff, d)
}

func TestTailBitsMasked(t *testing.T) {
	// Width not a multiple of 64: bits past the width must stay zero.
	f := Random(100, 17)
	assert.Zero(t, f.words[1]>>36, "tail bits beyond width must be masked")
}
