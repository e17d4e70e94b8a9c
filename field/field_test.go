package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladybuglabs/crystal-go/fingerprint"
)

func TestNewValidation(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)

	_, err = New(7)
	assert.Error(t, err)

	_, err = NewWithWidth(4, -1)
	assert.Error(t, err)

	f, err := New(DefaultQuorumThreshold)
	require.NoError(t, err)
	assert.Equal(t, fingerprint.DefaultWidth, f.Width())
	assert.Equal(t, DefaultQuorumThreshold, f.Threshold())
}

func TestInjectAddressableByPosition(t *testing.T) {
	f, err := New(DefaultQuorumThreshold)
	require.NoError(t, err)

	pattern := fingerprint.Random(fingerprint.DefaultWidth, 1)
	require.NoError(t, f.Inject(pattern))

	// Every cell holds bind(pattern, positionCode); unbinding the position
	// code recovers the pattern exactly.
	for _, pos := range [][3]int{{0, 0, 0}, {2, 3, 1}, {4, 4, 4}} {
		v, err := f.Cell(pos[0], pos[1], pos[2]).Read()
		require.NoError(t, err)

		recovered, err := fingerprint.Unbind(v, PositionCode(pos[0], pos[1], pos[2], f.Width()))
		require.NoError(t, err)
		assert.True(t, recovered.Equal(pattern), "cell %v", pos)
	}
}

func TestInjectDimensionMismatch(t *testing.T) {
	f, err := New(DefaultQuorumThreshold)
	require.NoError(t, err)

	err = f.Inject(fingerprint.Zero(256))
	assert.ErrorIs(t, err, fingerprint.ErrDimensionMismatch)
}

func TestSettleFixedPointConvergesImmediately(t *testing.T) {
	f, err := New(DefaultQuorumThreshold)
	require.NoError(t, err)

	// A uniform field is a fixed point: every cell's bundle of itself and
	// its neighbors equals its own value.
	v := fingerprint.Random(fingerprint.DefaultWidth, 5)
	for x := 0; x < Size; x++ {
		for y := 0; y < Size; y++ {
			for z := 0; z < Size; z++ {
				require.NoError(t, f.Cell(x, y, z).Write(v))
			}
		}
	}

	steps, converged := f.Settle(1)
	assert.True(t, converged)
	assert.LessOrEqual(t, steps, 1)
}

func TestSettleDeterministic(t *testing.T) {
	build := func() *QuorumField {
		f, err := NewWithWidth(DefaultQuorumThreshold, 512)
		require.NoError(t, err)
		require.NoError(t, f.Inject(fingerprint.Random(512, 9)))
		return f
	}

	a := build()
	b := build()

	stepsA, convA := a.Settle(20)
	stepsB, convB := b.Settle(20)

	assert.Equal(t, stepsA, stepsB)
	assert.Equal(t, convA, convB)
	for i := range a.cells {
		va, err := a.cells[i].Read()
		require.NoError(t, err)
		vb, err := b.cells[i].Read()
		require.NoError(t, err)
		assert.True(t, va.Equal(vb), "cell %d diverged", i)
	}
}

func TestSettleZeroBudget(t *testing.T) {
	f, err := New(DefaultQuorumThreshold)
	require.NoError(t, err)

	steps, converged := f.Settle(0)
	assert.Equal(t, 0, steps)
	assert.False(t, converged)
}

func TestSettleRepairsCorruptedCopies(t *testing.T) {
	f, err := New(DefaultQuorumThreshold)
	require.NoError(t, err)
	require.NoError(t, f.Inject(fingerprint.Random(fingerprint.DefaultWidth, 13)))

	// Damage one copy of one cell below the repair threshold. The settled
	// write-back restores full redundancy.
	f.Cell(1, 1, 1).corruptCopy(0, 50, 33)

	f.Settle(2)

	c := f.Cell(1, 1, 1)
	assert.True(t, c.copies[0].Equal(c.copies[1]))
	assert.True(t, c.copies[1].Equal(c.copies[2]))
}

func TestSettleTolerableCorruptionInvisible(t *testing.T) {
	// One corrupted copy per cell must not change the settle outcome:
	// majority reads mask it before the first sweep.
	build := func(corrupt bool) *QuorumField {
		f, err := NewWithWidth(DefaultQuorumThreshold, 512)
		require.NoError(t, err)
		require.NoError(t, f.Inject(fingerprint.Random(512, 21)))
		if corrupt {
			for i := range f.cells {
				f.cells[i].corruptCopy(i%3, 5, int64(i))
			}
		}
		return f
	}

	clean := build(false)
	dirty := build(true)

	cleanSteps, cleanConv := clean.Settle(20)
	dirtySteps, dirtyConv := dirty.Settle(20)

	assert.Equal(t, cleanSteps, dirtySteps)
	assert.Equal(t, cleanConv, dirtyConv)
	for i := range clean.cells {
		va, err := clean.cells[i].Read()
		require.NoError(t, err)
		vb, err := dirty.cells[i].Read()
		require.NoError(t, err)
		assert.True(t, va.Equal(vb), "cell %d diverged", i)
	}
}

func TestNeighborClamping(t *testing.T) {
	corner := neighborIndices(cellIndex(0, 0, 0))
	assert.Len(t, corner, 3)

	edge := neighborIndices(cellIndex(0, 0, 2))
	assert.Len(t, edge, 4)

	face := neighborIndices(cellIndex(0, 2, 2))
	assert.Len(t, face, 5)

	interior := neighborIndices(cellIndex(2, 2, 2))
	assert.Len(t, interior, 6)
}

func TestAxisCodesDeterministic(t *testing.T) {
	a := AxisCode(AxisX, 3, 512)
	b := AxisCode(AxisX, 3, 512)
	assert.True(t, a.Equal(b))

	c := AxisCode(AxisY, 3, 512)
	assert.False(t, a.Equal(c), "axes must have independent codes")

	d := AxisCode(AxisX, 4, 512)
	assert.False(t, a.Equal(d), "coordinates must have independent codes")
}

func TestPositionCodesDistinguishPositions(t *testing.T) {
	// Permuting coordinates across axes must change the position code.
	a := PositionCode(0, 1, 2, 512)
	b := PositionCode(2, 1, 0, 512)
	assert.False(t, a.Equal(b), "permuted positions must not share a code")

	// Pairs whose coordinates would cancel under a shared code family:
	// with one code family c, (1,1,2) and (2,3,3) both reduce to c(2).
	c := PositionCode(1, 1, 2, 512)
	d := PositionCode(2, 3, 3, 512)
	assert.False(t, c.Equal(d))

	e := PositionCode(0, 1, 2, 512)
	f := PositionCode(0, 1, 2, 512)
	assert.True(t, e.Equal(f), "position codes are deterministic")
}
