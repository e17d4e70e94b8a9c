package field

import (
	"github.com/ladybuglabs/crystal-go/fingerprint"
)

// Axis identifies one of the three lattice axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// axisCodeSalt namespaces axis codes away from other Derive users.
const axisCodeSalt = 0xc7a5_7a1f_0000_0000

// AxisCode returns the deterministic code fingerprint for a coordinate on an
// axis. Codes depend only on (axis, coord, width), so injection, the codec
// and tests all agree on them across runs and machines.
func AxisCode(axis Axis, coord, width int) *fingerprint.Fingerprint {
	key := axisCodeSalt ^ uint64(axis+1)<<40 ^ uint64(uint32(coord))
	return fingerprint.Derive(width, key)
}

// PositionCode returns the code for a lattice position: the bind of its
// three axis codes. Injection binds the pattern with this code so each
// cell's content is addressable by position.
func PositionCode(x, y, z, width int) *fingerprint.Fingerprint {
	cx := AxisCode(AxisX, x, width)
	cy := AxisCode(AxisY, y, width)
	cz := AxisCode(AxisZ, z, width)
	xy, _ := fingerprint.Bind(cx, cy)
	xyz, _ := fingerprint.Bind(xy, cz)
	return xyz
}
