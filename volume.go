package volio

import "fmt"

/*
===============================================================================
    Volume
===============================================================================
*/

// MaxDimensions is the largest dimensionality a Volume can carry.
const MaxDimensions = 5

// NSpatialDimensions is the number of canonical spatial axes (X, Y, Z).
const NSpatialDimensions = 3

// Canonical spatial axis indices.
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
)

// Volume is the canonical in-memory voxel grid. It carries the grid geometry
// (per-axis separations, starts and direction cosines), a fixed storage type,
// and the voxel/real value ranges committed at the end of decoding.
//
// Geometry and storage type must be committed before any voxel write; Alloc
// enforces this.
type Volume struct {
	nDimensions int
	sizes       [MaxDimensions]int
	dataType    DataType

	separations      [NSpatialDimensions]float64
	starts           [NSpatialDimensions]float64
	directionCosines [NSpatialDimensions][NSpatialDimensions]float64

	voxelMin, voxelMax float64
	realMin, realMax   float64
	realRangeSet       bool

	byteData   []uint8
	ushortData []uint16
	shortData  []int16
	intData    []int32
	floatData  []float32
}

// NewVolume returns a Volume with three dimensions, unit separations and
// identity direction cosines, and no storage type assigned.
func NewVolume() Volume {
	vol := Volume{nDimensions: NSpatialDimensions}
	for c := 0; c < NSpatialDimensions; c++ {
		vol.separations[c] = 1.0
		vol.directionCosines[c][c] = 1.0
	}
	return vol
}

// SetNDimensions assigns the volume's dimensionality.
func (vol *Volume) SetNDimensions(n int) error {
	if n < 1 || n > MaxDimensions {
		return fmt.Errorf("dimensionality %d out of range [1, %d]", n, MaxDimensions)
	}
	vol.nDimensions = n
	return nil
}

// NDimensions returns the volume's dimensionality.
func (vol *Volume) NDimensions() int {
	return vol.nDimensions
}

// SetSizes assigns the per-axis extents, canonical spatial axes first.
// Any previously allocated voxel data is discarded.
func (vol *Volume) SetSizes(sizes []int) error {
	if len(sizes) > MaxDimensions {
		return fmt.Errorf("%d sizes exceed the maximum of %d dimensions", len(sizes), MaxDimensions)
	}
	for axis := range vol.sizes {
		vol.sizes[axis] = 0
	}
	copy(vol.sizes[:], sizes)
	vol.byteData = nil
	vol.ushortData = nil
	vol.shortData = nil
	vol.intData = nil
	vol.floatData = nil
	return nil
}

// Sizes returns the per-axis extents for the volume's dimensionality.
func (vol *Volume) Sizes() []int {
	sizes := make([]int, vol.nDimensions)
	copy(sizes, vol.sizes[:vol.nDimensions])
	return sizes
}

// SetDataType assigns the in-memory storage type.
func (vol *Volume) SetDataType(t DataType) {
	vol.dataType = t
}

// DataType returns the in-memory storage type.
func (vol *Volume) DataType() DataType {
	return vol.dataType
}

// SetSeparations assigns the physical spacing along each canonical axis.
// Negative separations indicate a mirrored axis.
func (vol *Volume) SetSeparations(separations [NSpatialDimensions]float64) {
	vol.separations = separations
}

// Separations returns the physical spacing along each canonical axis.
func (vol *Volume) Separations() [NSpatialDimensions]float64 {
	return vol.separations
}

// SetStarts assigns the world coordinate of voxel (0,0,0) along each axis.
func (vol *Volume) SetStarts(starts [NSpatialDimensions]float64) {
	vol.starts = starts
}

// Starts returns the world coordinate of voxel (0,0,0) along each axis.
func (vol *Volume) Starts() [NSpatialDimensions]float64 {
	return vol.starts
}

// SetDirectionCosine assigns the unit vector expressing how canonical axis
// `axis` projects onto the physical axes.
func (vol *Volume) SetDirectionCosine(axis int, dir [NSpatialDimensions]float64) error {
	if axis < 0 || axis >= NSpatialDimensions {
		return fmt.Errorf("axis %d out of range", axis)
	}
	vol.directionCosines[axis] = dir
	return nil
}

// DirectionCosine returns the direction cosine vector of canonical axis `axis`.
func (vol *Volume) DirectionCosine(axis int) [NSpatialDimensions]float64 {
	return vol.directionCosines[axis]
}

// SetVoxelRange assigns the range of stored voxel values.
func (vol *Volume) SetVoxelRange(min, max float64) {
	vol.voxelMin = min
	vol.voxelMax = max
}

// VoxelRange returns the range of stored voxel values.
func (vol *Volume) VoxelRange() (min, max float64) {
	return vol.voxelMin, vol.voxelMax
}

// SetRealRange assigns the range of real-world values the voxel range maps to.
func (vol *Volume) SetRealRange(min, max float64) {
	vol.realMin = min
	vol.realMax = max
	vol.realRangeSet = true
}

// RealRange returns the real-world value range. If no explicit real range has
// been committed, the voxel range is returned (identity mapping).
func (vol *Volume) RealRange() (min, max float64) {
	if !vol.realRangeSet {
		return vol.voxelMin, vol.voxelMax
	}
	return vol.realMin, vol.realMax
}

// nSpatialVoxels returns the number of voxels covered by the three spatial
// axes.
func (vol *Volume) nSpatialVoxels() int {
	return vol.sizes[AxisX] * vol.sizes[AxisY] * vol.sizes[AxisZ]
}

// Alloc allocates the voxel storage. The storage type and sizes must have
// been committed beforehand.
func (vol *Volume) Alloc() error {
	if vol.dataType == NoDataType {
		return fmt.Errorf("cannot allocate volume data without a storage type")
	}
	n := vol.nSpatialVoxels()
	if n <= 0 {
		return fmt.Errorf("cannot allocate volume data without sizes")
	}
	switch vol.dataType {
	case UnsignedByte:
		vol.byteData = make([]uint8, n)
	case UnsignedShort:
		vol.ushortData = make([]uint16, n)
	case SignedShort:
		vol.shortData = make([]int16, n)
	case SignedInt:
		vol.intData = make([]int32, n)
	case Float32:
		vol.floatData = make([]float32, n)
	default:
		return fmt.Errorf("cannot allocate volume data of type %s", vol.dataType)
	}
	return nil
}

// IsAlloced returns whether voxel storage has been allocated.
func (vol *Volume) IsAlloced() bool {
	switch vol.dataType {
	case UnsignedByte:
		return vol.byteData != nil
	case UnsignedShort:
		return vol.ushortData != nil
	case SignedShort:
		return vol.shortData != nil
	case SignedInt:
		return vol.intData != nil
	case Float32:
		return vol.floatData != nil
	}
	return false
}

// voxelIndex flattens a canonical (x, y, z) index, z fastest-varying.
func (vol *Volume) voxelIndex(x, y, z int) int {
	return (x*vol.sizes[AxisY]+y)*vol.sizes[AxisZ] + z
}

// SetVoxel stores one value at canonical index (x, y, z). The value is
// saturated to the bounds of the storage type.
func (vol *Volume) SetVoxel(x, y, z int, value float64) {
	idx := vol.voxelIndex(x, y, z)
	switch vol.dataType {
	case UnsignedByte:
		vol.byteData[idx] = uint8(saturate(value, 0, 255))
	case UnsignedShort:
		vol.ushortData[idx] = uint16(saturate(value, 0, 65535))
	case SignedShort:
		vol.shortData[idx] = int16(saturate(value, -32768, 32767))
	case SignedInt:
		vol.intData[idx] = int32(saturate(value, -2147483648, 2147483647))
	case Float32:
		vol.floatData[idx] = float32(value)
	}
}

// Voxel returns the stored value at canonical index (x, y, z).
func (vol *Volume) Voxel(x, y, z int) float64 {
	idx := vol.voxelIndex(x, y, z)
	switch vol.dataType {
	case UnsignedByte:
		return float64(vol.byteData[idx])
	case UnsignedShort:
		return float64(vol.ushortData[idx])
	case SignedShort:
		return float64(vol.shortData[idx])
	case SignedInt:
		return float64(vol.intData[idx])
	case Float32:
		return float64(vol.floatData[idx])
	}
	return 0
}

func saturate(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
