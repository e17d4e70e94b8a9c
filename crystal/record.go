package crystal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ladybuglabs/crystal-go/fingerprint"
)

// Persisted record layout for one crystal, little-endian:
//
//	basin id  uint32
//	width W   uint32 (bits)
//	axis x    ceil(W/8) bytes
//	axis y    ceil(W/8) bytes
//	axis z    ceil(W/8) bytes
//
// The width travels with the record so readers stay forward compatible with
// non-default widths.

const recordHeaderSize = 8

// maxRecordWidth bounds the width accepted on decode so a corrupt header
// cannot trigger a huge allocation.
const maxRecordWidth = 1 << 24

// ErrInvalidRecord is returned when a record's header or payload cannot be
// decoded.
var ErrInvalidRecord = errors.New("crystal: invalid record")

// RecordSize returns the encoded size in bytes of one record at a width.
func RecordSize(width int) int {
	return recordHeaderSize + Axes*((width+7)/8)
}

// EncodeRecord writes one crystal record.
func EncodeRecord(w io.Writer, basinID uint32, c *Crystal) error {
	var header [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], basinID)
	binary.LittleEndian.PutUint32(header[4:8], uint32(c.Width()))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	for i := range c.axes {
		if _, err := w.Write(c.axes[i].Bytes()); err != nil {
			return fmt.Errorf("write axis %d: %w", i, err)
		}
	}
	return nil
}

// DecodeRecord reads one crystal record.
func DecodeRecord(r io.Reader) (uint32, *Crystal, error) {
	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read record header: %w", err)
	}
	basinID := binary.LittleEndian.Uint32(header[0:4])
	width := int(binary.LittleEndian.Uint32(header[4:8]))
	if width <= 0 || width > maxRecordWidth {
		return 0, nil, fmt.Errorf("%w: width %d", ErrInvalidRecord, width)
	}

	blockSize := (width + 7) / 8
	var axes [Axes]*fingerprint.Fingerprint
	for i := range axes {
		block := make([]byte, blockSize)
		if _, err := io.ReadFull(r, block); err != nil {
			return 0, nil, fmt.Errorf("%w: axis %d: %v", ErrInvalidRecord, i, err)
		}
		fp, err := fingerprint.FromBytes(width, block)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: axis %d: %v", ErrInvalidRecord, i, err)
		}
		axes[i] = fp
	}
	return basinID, &Crystal{axes: axes}, nil
}
