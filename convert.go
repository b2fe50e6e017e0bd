package volio

import (
	"encoding/binary"
	"math"
)

/*
===============================================================================
    Sample Types & Conversion
===============================================================================
*/

// DataType identifies a voxel sample encoding, on disk or in memory.
type DataType int

const (
	// NoDataType means no type has been assigned yet
	NoDataType DataType = iota
	// UnsignedByte is an unsigned 8-bit integer sample
	UnsignedByte
	// UnsignedShort is an unsigned 16-bit integer sample
	UnsignedShort
	// SignedShort is a signed 16-bit integer sample
	SignedShort
	// SignedInt is a signed 32-bit integer sample
	SignedInt
	// Float32 is a 32-bit floating point sample
	Float32
)

// Size returns the number of bytes occupied by one sample.
func (t DataType) Size() int {
	switch t {
	case UnsignedByte:
		return 1
	case UnsignedShort, SignedShort:
		return 2
	case SignedInt, Float32:
		return 4
	}
	return 0
}

func (t DataType) String() string {
	switch t {
	case UnsignedByte:
		return "unsigned byte"
	case UnsignedShort:
		return "unsigned short"
	case SignedShort:
		return "signed short"
	case SignedInt:
		return "signed int"
	case Float32:
		return "float"
	case NoDataType:
		return "none"
	}
	return "unknown"
}

// outputLevels returns the number of representable levels assumed when
// rescaling into type `t`. Integer types use their representable count;
// anything else falls back to the byte count, matching the historical
// byte-conversion behaviour.
func outputLevels(t DataType) int {
	switch t {
	case UnsignedByte:
		return 256
	case UnsignedShort:
		return 65536
	case SignedShort:
		return 32768
	default:
		return 256
	}
}

// decodeSample produces one numeric sample from raw bytes at `off`.
// Multi-byte samples are normalized from `order` to host order.
func decodeSample(buf []byte, off int, t DataType, order binary.ByteOrder) float64 {
	switch t {
	case UnsignedByte:
		return float64(buf[off])
	case UnsignedShort:
		return float64(order.Uint16(buf[off:]))
	case SignedShort:
		return float64(int16(order.Uint16(buf[off:])))
	case SignedInt:
		return float64(int32(order.Uint32(buf[off:])))
	case Float32:
		return float64(math.Float32frombits(order.Uint32(buf[off:])))
	}
	return 0
}

// scanBufferRange updates a running min/max with every sample in `buf`.
// This is the decode-only path: no rescale is applied.
func scanBufferRange(buf []byte, t DataType, order binary.ByteOrder, min, max float64) (float64, float64) {
	size := t.Size()
	for off := 0; off+size <= len(buf); off += size {
		value := decodeSample(buf, off, t, order)
		if value < min {
			min = value
		}
		if value > max {
			max = value
		}
	}
	return min, max
}

// scanVoxelRange drives a full forward pass over every remaining slice to
// find the native value range, then resets the slice cursor. The caller is
// responsible for rewinding a single-file stream afterwards; per-slice
// layouts are replayed from the reset cursor.
func (vin *VolumeInput) scanVoxelRange(order binary.ByteOrder) (min, max float64, err error) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for slice := 0; slice < vin.nSlices(); slice++ {
		if err = vin.inputSlice(); err != nil {
			return 0, 0, err
		}
		min, max = scanBufferRange(vin.sliceBuffer, vin.dataType, order, min, max)
	}
	vin.sliceIndex = 0
	return min, max, nil
}
