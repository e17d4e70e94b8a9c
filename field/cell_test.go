package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladybuglabs/crystal-go/fingerprint"
)

func TestCellQuorumReconstruction(t *testing.T) {
	f := fingerprint.Random(fingerprint.DefaultWidth, 1)

	cell := NewCell(fingerprint.DefaultWidth, DefaultRepairThreshold)
	require.NoError(t, cell.Write(f))

	// One copy corrupted below the repair threshold: read returns f exactly.
	for copyIdx := 0; copyIdx < 3; copyIdx++ {
		cell := NewCell(fingerprint.DefaultWidth, DefaultRepairThreshold)
		require.NoError(t, cell.Write(f))
		cell.corruptCopy(copyIdx, DefaultRepairThreshold-1, int64(copyIdx))

		got, err := cell.Read()
		require.NoError(t, err)
		assert.True(t, got.Equal(f), "copy %d corrupted", copyIdx)
	}
}

func TestCellToleratesOneHeavilyCorruptedCopy(t *testing.T) {
	f := fingerprint.Random(fingerprint.DefaultWidth, 2)
	cell := NewCell(fingerprint.DefaultWidth, DefaultRepairThreshold)
	require.NoError(t, cell.Write(f))

	// Even far beyond the repair threshold, a single bad copy is outvoted
	// because the two clean copies still agree.
	cell.corruptCopy(1, 5000, 7)

	got, err := cell.Read()
	require.NoError(t, err)
	assert.True(t, got.Equal(f))
}

func TestCellUnrecoverable(t *testing.T) {
	f := fingerprint.Random(fingerprint.DefaultWidth, 3)
	cell := NewCell(fingerprint.DefaultWidth, DefaultRepairThreshold)
	require.NoError(t, cell.Write(f))

	// All three copies diverge pairwise beyond the threshold.
	cell.corruptCopy(0, 2000, 10)
	cell.corruptCopy(1, 2000, 11)
	cell.corruptCopy(2, 2000, 12)

	_, err := cell.Read()
	assert.ErrorIs(t, err, ErrCellUnrecoverable)

	_, err = cell.Repair()
	assert.ErrorIs(t, err, ErrCellUnrecoverable)
}

func TestCellRepairSelfHeals(t *testing.T) {
	f := fingerprint.Random(fingerprint.DefaultWidth, 4)
	cell := NewCell(fingerprint.DefaultWidth, DefaultRepairThreshold)
	require.NoError(t, cell.Write(f))

	cell.corruptCopy(2, 80, 20)

	got, err := cell.Repair()
	require.NoError(t, err)
	assert.True(t, got.Equal(f))

	// After repair every copy matches the majority again.
	for i := range cell.copies {
		assert.True(t, cell.copies[i].Equal(f), "copy %d", i)
	}
}

func TestCellWriteDimensionMismatch(t *testing.T) {
	cell := NewCell(fingerprint.DefaultWidth, DefaultRepairThreshold)
	err := cell.Write(fingerprint.Zero(128))
	assert.ErrorIs(t, err, fingerprint.ErrDimensionMismatch)
}
