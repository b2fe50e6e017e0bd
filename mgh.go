package volio

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"

	"github.com/b71729/bin"
)

/*
===============================================================================
    MGH Format
===============================================================================
*/

const (
	// mghHeaderSize is the fixed byte length of an MGH header, reserved
	// padding included
	mghHeaderSize = 284
	// mghReservedSize is the unused tail of the header
	mghReservedSize = 194
)

// MGH sample type codes
const (
	mghTypeUChar = 0
	mghTypeInt   = 1
	mghTypeFloat = 3
	mghTypeShort = 4
)

// mghHeader is the decoded fixed header of an MGH file. sizes are in file
// order, fastest-varying axis first. dircos rows 0..2 are per-file-axis world
// direction cosines; row 3 is the stored centre translation.
type mghHeader struct {
	version int32
	sizes   [4]int32
	typ     int32
	dof     int32
	goodRAS int16
	spacing [3]float32
	dircos  [4][3]float32
}

func readMGHInt32(br *bin.Reader, dst *int32) error {
	var v uint32
	if err := br.ReadUint32(&v); err != nil {
		return err
	}
	*dst = int32(v)
	return nil
}

func readMGHFloat32(br *bin.Reader, dst *float32) error {
	var v uint32
	if err := br.ReadUint32(&v); err != nil {
		return err
	}
	*dst = math.Float32frombits(v)
	return nil
}

// readMGHHeader decodes the 284-byte fixed header from the stream.
//
// When the "good RAS" flag is zero the stored spacing and cosine table are
// untrustworthy and the historical defaults apply: unit spacing and the
// coronal orientation.
func readMGHHeader(br *bin.Reader) (*mghHeader, error) {
	hdr := &mghHeader{}
	fail := func(err error) (*mghHeader, error) {
		return nil, InsufficientBytesError("mgh: short header: %v", err)
	}
	if err := readMGHInt32(br, &hdr.version); err != nil {
		return fail(err)
	}
	if hdr.version != 1 {
		return nil, UnsupportedVolumeError("mgh: version %d not supported, must be 1", hdr.version)
	}
	for i := range hdr.sizes {
		if err := readMGHInt32(br, &hdr.sizes[i]); err != nil {
			return fail(err)
		}
	}
	if err := readMGHInt32(br, &hdr.typ); err != nil {
		return fail(err)
	}
	if err := readMGHInt32(br, &hdr.dof); err != nil {
		return fail(err)
	}
	var goodRAS uint16
	if err := br.ReadUint16(&goodRAS); err != nil {
		return fail(err)
	}
	hdr.goodRAS = int16(goodRAS)
	for i := range hdr.spacing {
		if err := readMGHFloat32(br, &hdr.spacing[i]); err != nil {
			return fail(err)
		}
	}
	for i := range hdr.dircos {
		for j := range hdr.dircos[i] {
			if err := readMGHFloat32(br, &hdr.dircos[i][j]); err != nil {
				return fail(err)
			}
		}
	}
	if err := br.Discard(mghReservedSize); err != nil {
		return fail(err)
	}
	if hdr.goodRAS == 0 {
		for i := range hdr.spacing {
			hdr.spacing[i] = 1
		}
		hdr.dircos = [4][3]float32{
			{-1, 0, 0},
			{0, 0, -1},
			{0, 1, 0},
			{0, 0, 0},
		}
	}
	return hdr, nil
}

// mghDataType maps an MGH type code to its sample type.
func mghDataType(code int32) (DataType, error) {
	switch code {
	case mghTypeUChar:
		return UnsignedByte, nil
	case mghTypeInt:
		return SignedInt, nil
	case mghTypeFloat:
		return Float32, nil
	case mghTypeShort:
		return SignedShort, nil
	}
	return NoDataType, UnsupportedVolumeError("mgh: unknown data type code %d", code)
}

// dominantAxis returns the canonical axis whose world component dominates the
// given cosine row. Ties resolve to the lowest axis.
func dominantAxis(row [3]float32) int {
	cx := math.Abs(float64(row[0]))
	cy := math.Abs(float64(row[1]))
	cz := math.Abs(float64(row[2]))
	axis := AxisX
	if cy > cx && cy > cz {
		axis = AxisY
	}
	if cz > cx && cz > cy {
		axis = AxisZ
	}
	return axis
}

// StartMGH initializes the session from the MGH file at `path`, committing
// geometry, dimensionality and storage type to `vol`. A ".mgz" suffix selects
// gzip decompression.
func (vin *VolumeInput) StartMGH(path string, vol *Volume) error {
	if vin.state != stateUninitialized {
		return CorruptVolumeError("StartMGH(): session already started")
	}
	vin.format = FormatMGH
	// payload order: slices along file axis 2, file axis 0 fastest
	vin.sliceAxis, vin.rowAxis, vin.innerAxis = 2, 1, 0
	vin.order = binary.BigEndian

	compressed := strings.EqualFold(filepath.Ext(path), ".mgz")
	stream, err := openVolumeStream(path, binary.BigEndian, compressed, 0)
	if err != nil {
		return err
	}
	vin.stream = stream
	hdr, err := readMGHHeader(&stream.br)
	if err != nil {
		return err
	}
	stream.payloadOffset = mghHeaderSize

	if vin.dataType, err = mghDataType(hdr.typ); err != nil {
		return err
	}
	nDims := 0
	for axis := 0; axis < len(hdr.sizes); axis++ {
		if hdr.sizes[axis] > 1 {
			nDims++
		}
	}
	if nDims < NSpatialDimensions {
		nDims = NSpatialDimensions
	}
	for axis := 0; axis < NSpatialDimensions; axis++ {
		if hdr.sizes[axis] < 1 {
			return CorruptVolumeError("mgh: axis %d has non-positive size %d", axis, hdr.sizes[axis])
		}
		vin.sizesInFile[axis] = int(hdr.sizes[axis])
	}
	vin.sizesInFile[3] = int(hdr.sizes[3])

	for axis := 0; axis < NSpatialDimensions; axis++ {
		vin.axisIndexFromFile[axis] = dominantAxis(hdr.dircos[axis])
	}
	if err := checkAxisBijection(vin.axisIndexFromFile); err != nil {
		return err
	}

	seps, starts, dircos, err := mghGeometry(hdr, vin.axisIndexFromFile, true)
	if err != nil {
		return err
	}
	vol.SetSeparations(seps)
	vol.SetStarts(starts)
	for axis := 0; axis < NSpatialDimensions; axis++ {
		vol.SetDirectionCosine(axis, dircos[axis])
	}

	var sizes [MaxDimensions]int
	for axis := 0; axis < NSpatialDimensions; axis++ {
		sizes[vin.axisIndexFromFile[axis]] = vin.sizesInFile[axis]
	}
	sizes[3] = vin.sizesInFile[3]
	if err := vol.SetNDimensions(nDims); err != nil {
		return CorruptVolumeError("mgh: %v", err)
	}
	if err := vol.SetSizes(sizes[:nDims]); err != nil {
		return CorruptVolumeError("commit sizes: %v", err)
	}

	vin.sliceBuffer = make([]byte, vin.voxelsInSlice()*vin.dataType.Size())

	desired := desiredDataType(vol, vin.dataType)
	vol.SetDataType(desired)
	if desired != vin.dataType {
		min, max, err := vin.scanVoxelRange(vin.order)
		if err != nil {
			return err
		}
		vin.nativeMin, vin.nativeMax = min, max
		vol.SetVoxelRange(min, max)
		if err := stream.Rewind(); err != nil {
			return err
		}
		vin.prepareScaling(desired)
	}

	vin.sliceIndex = 0
	vin.minValue = math.Inf(1)
	vin.maxValue = math.Inf(-1)
	vin.state = stateReady
	Debugf("mgh: %dx%dx%d %s, %d slice(s), compressed=%t",
		vin.sizesInFile[0], vin.sizesInFile[1], vin.sizesInFile[2],
		desired, vin.nSlices(), compressed)
	return nil
}

// stepMGH decodes one MGH slice into the volume, tracking the stored value
// range as it goes.
func (vin *VolumeInput) stepMGH(vol *Volume) (float64, bool, error) {
	if !vol.IsAlloced() {
		if err := vol.Alloc(); err != nil {
			return 0, false, CorruptVolumeError("alloc: %v", err)
		}
	}
	if err := vin.inputSlice(); err != nil {
		return float64(vin.sliceIndex) / float64(vin.nSlices()), false, err
	}

	var idx [3]int
	idx[vin.axisIndexFromFile[vin.sliceAxis]] = vin.sliceIndex - 1
	size := vin.dataType.Size()
	off := 0
	for row := 0; row < vin.sizesInFile[vin.rowAxis]; row++ {
		idx[vin.axisIndexFromFile[vin.rowAxis]] = row
		for inner := 0; inner < vin.sizesInFile[vin.innerAxis]; inner++ {
			idx[vin.axisIndexFromFile[vin.innerAxis]] = inner
			value := vin.convertSample(decodeSample(vin.sliceBuffer, off, vin.dataType, vin.order))
			if value < vin.minValue {
				vin.minValue = value
			}
			if value > vin.maxValue {
				vin.maxValue = value
			}
			vol.SetVoxel(idx[0], idx[1], idx[2], value)
			off += size
		}
	}

	fraction := float64(vin.sliceIndex) / float64(vin.nSlices())
	more := vin.sliceIndex < vin.nSlices()
	if !more {
		// trailing metadata after the payload is ignored
		vol.SetVoxelRange(vin.minValue, vin.maxValue)
		if vin.scaling {
			vol.SetRealRange(vin.nativeMin, vin.nativeMax)
		}
	}
	return fraction, more, nil
}
