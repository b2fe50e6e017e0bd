package volio

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

/*
===============================================================================
    Free Format
===============================================================================
*/

// freeHeader is the parsed form of a free-format ASCII header.
type freeHeader struct {
	dataType DataType
	trans    [3]float64

	// per file axis, in header order
	sizes     [3]int
	seps      [3]float64
	axisIndex [3]int

	// single-file layout
	volumeFilename string
	volumeOffset   int64

	// one-file-per-slice layout (selected by a non-positive first size)
	oneFilePerSlice  bool
	sliceFilenames   []string
	sliceByteOffsets []int64
}

// tokenReader hands out whitespace-delimited header tokens with one token of
// pushback, needed to probe for the optional byte offsets.
type tokenReader struct {
	sc      *bufio.Scanner
	pending string
	pushed  bool
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &tokenReader{sc: sc}
}

func (tr *tokenReader) next() (string, bool) {
	if tr.pushed {
		tr.pushed = false
		return tr.pending, true
	}
	if tr.sc.Scan() {
		return tr.sc.Text(), true
	}
	return "", false
}

func (tr *tokenReader) unread(tok string) {
	tr.pending = tok
	tr.pushed = true
}

func (tr *tokenReader) err() error {
	return tr.sc.Err()
}

func (tr *tokenReader) nextInt(what string) (int, error) {
	tok, ok := tr.next()
	if !ok {
		return 0, CorruptVolumeError("header ended before %s", what)
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, CorruptVolumeError("%s: expected integer, got %q", what, tok)
	}
	return v, nil
}

func (tr *tokenReader) nextFloat(what string) (float64, error) {
	tok, ok := tr.next()
	if !ok {
		return 0, CorruptVolumeError("header ended before %s", what)
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, CorruptVolumeError("%s: expected number, got %q", what, tok)
	}
	return v, nil
}

// parseFreeHeader decodes the ASCII directive stream:
//
//	bytes_per_voxel  tx ty tz  {size sep axis}×3  payload-location
//
// where payload-location is either a single filename with an optional byte
// offset, or (when the first size is non-positive) a list of per-slice
// filenames, each with an optional byte offset.
func parseFreeHeader(r io.Reader) (*freeHeader, error) {
	tr := newTokenReader(r)
	hdr := &freeHeader{}

	bytesPerVoxel, err := tr.nextInt("bytes per voxel")
	if err != nil {
		return nil, err
	}
	switch bytesPerVoxel {
	case 1:
		hdr.dataType = UnsignedByte
	case 2:
		hdr.dataType = UnsignedShort
	default:
		return nil, UnsupportedVolumeError("must be either 1 or 2 bytes per voxel, got %d", bytesPerVoxel)
	}

	for axis := 0; axis < 3; axis++ {
		if hdr.trans[axis], err = tr.nextFloat("translation"); err != nil {
			return nil, err
		}
	}

	for axis := 0; axis < 3; axis++ {
		if hdr.sizes[axis], err = tr.nextInt("axis size"); err != nil {
			return nil, err
		}
		if hdr.seps[axis], err = tr.nextFloat("axis separation"); err != nil {
			return nil, err
		}
		tag, ok := tr.next()
		if !ok {
			return nil, CorruptVolumeError("header ended before axis tag")
		}
		switch tag {
		case "x", "X":
			hdr.axisIndex[axis] = AxisX
		case "y", "Y":
			hdr.axisIndex[axis] = AxisY
		case "z", "Z":
			hdr.axisIndex[axis] = AxisZ
		default:
			return nil, CorruptVolumeError("invalid axis tag %q", tag)
		}
	}

	if hdr.sizes[0] <= 0 {
		hdr.oneFilePerSlice = true
		if err := parseSliceList(tr, hdr); err != nil {
			return nil, err
		}
		// the filename list runs to end-of-header, so a read failure is
		// indistinguishable from a short list without checking
		if err := tr.err(); err != nil {
			return nil, IOErrorf("reading header: %v", err)
		}
	} else {
		if err := parseSingleFile(tr, hdr); err != nil {
			return nil, err
		}
	}
	return hdr, nil
}

func parseSliceList(tr *tokenReader, hdr *freeHeader) error {
	for {
		name, ok := tr.next()
		if !ok {
			break
		}
		offset := int64(0)
		if tok, ok := tr.next(); ok {
			if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
				offset = v
			} else {
				tr.unread(tok)
			}
		}
		hdr.sliceFilenames = append(hdr.sliceFilenames, name)
		hdr.sliceByteOffsets = append(hdr.sliceByteOffsets, offset)
	}
	if len(hdr.sliceFilenames) == 0 {
		return CorruptVolumeError("no slice filenames in header")
	}
	// the slice count comes from the list itself
	hdr.sizes[0] = len(hdr.sliceFilenames)
	return nil
}

func parseSingleFile(tr *tokenReader, hdr *freeHeader) error {
	name, ok := tr.next()
	if !ok {
		return CorruptVolumeError("header ended before volume filename")
	}
	hdr.volumeFilename = name
	if tok, ok := tr.next(); ok {
		if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
			hdr.volumeOffset = v
		} else {
			tr.unread(tok)
		}
	}
	if tok, ok := tr.next(); ok {
		if GetConfig().StrictMode {
			return CorruptVolumeError("unexpected content after volume filename: %q", tok)
		}
		Warnf("ignoring trailing header content starting at %q", tok)
	}
	return nil
}

// StartFreeFormat initializes the session from a free-format header at
// `path`, committing geometry and storage type to `vol`. Payload filenames in
// the header are resolved relative to the header's directory.
func (vin *VolumeInput) StartFreeFormat(path string, vol *Volume) error {
	if vin.state != stateUninitialized {
		return CorruptVolumeError("StartFreeFormat(): session already started")
	}
	vin.format = FormatFree
	// payload order: slices along file axis 0, file axis 2 fastest
	vin.sliceAxis, vin.rowAxis, vin.innerAxis = 0, 1, 2
	vin.order = binary.LittleEndian
	vin.directory = filepath.Dir(path)

	f, err := os.Open(path)
	if err != nil {
		return IOErrorf("open %s: %v", filepath.Base(path), err)
	}
	hdr, err := parseFreeHeader(f)
	f.Close()
	if err != nil {
		return err
	}
	if err := checkAxisBijection(hdr.axisIndex); err != nil {
		return err
	}
	for axis := 0; axis < 3; axis++ {
		if hdr.sizes[axis] < 1 {
			return CorruptVolumeError("axis %d has non-positive size %d", axis, hdr.sizes[axis])
		}
	}
	vin.dataType = hdr.dataType
	vin.axisIndexFromFile = hdr.axisIndex
	for axis := 0; axis < 3; axis++ {
		vin.sizesInFile[axis] = hdr.sizes[axis]
	}

	// commit geometry in canonical axis order; a negative separation flips
	// the axis, shifting its start to the far end of the extent
	var sizes [3]int
	var seps, starts [3]float64
	for axis := 0; axis < 3; axis++ {
		canonical := hdr.axisIndex[axis]
		sizes[canonical] = hdr.sizes[axis]
		seps[canonical] = hdr.seps[axis]
		starts[canonical] = hdr.trans[canonical]
	}
	for axis := 0; axis < 3; axis++ {
		if seps[axis] < 0 {
			starts[axis] += -seps[axis] * float64(sizes[axis]-1)
		}
	}
	vol.SetSeparations(seps)
	vol.SetStarts(starts)
	for axis := 0; axis < 3; axis++ {
		var dir [3]float64
		dir[axis] = 1
		vol.SetDirectionCosine(axis, dir)
	}
	vol.SetNDimensions(NSpatialDimensions)
	if err := vol.SetSizes(sizes[:]); err != nil {
		return CorruptVolumeError("commit sizes: %v", err)
	}

	if hdr.oneFilePerSlice {
		vin.oneFilePerSlice = true
		vin.sliceFilenames = hdr.sliceFilenames
		vin.sliceByteOffsets = hdr.sliceByteOffsets
	} else {
		vin.stream, err = openVolumeStream(
			absolutePath(vin.directory, hdr.volumeFilename),
			binary.LittleEndian, false, hdr.volumeOffset)
		if err != nil {
			return err
		}
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
		if vin.stream != nil {
			if err := vin.stream.Rewind(); err != nil {
				return err
			}
		}
		vin.prepareScaling(desired)
		// narrowing conversions saturate at the output extremes
		vin.clamped = true
		vin.clampLo = 0
		vin.clampHi = float64(outputLevels(desired) - 1)
	}

	vin.sliceIndex = 0
	vin.minValue = math.Inf(1)
	vin.maxValue = math.Inf(-1)
	vin.state = stateReady
	Debugf("free: %dx%dx%d %s, %d slice(s)",
		sizes[0], sizes[1], sizes[2], desired, vin.nSlices())
	return nil
}

// stepFree decodes one free-format slice into the volume.
func (vin *VolumeInput) stepFree(vol *Volume) (float64, bool, error) {
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
			vol.SetVoxel(idx[0], idx[1], idx[2], value)
			off += size
		}
	}

	fraction := float64(vin.sliceIndex) / float64(vin.nSlices())
	more := vin.sliceIndex < vin.nSlices()
	if !more {
		vin.finalizeFree(vol)
	}
	return fraction, more, nil
}

// finalizeFree commits the value ranges once the last slice has landed. The
// voxel range is recomputed from the populated grid, so it reflects stored
// (possibly rescaled and saturated) values.
func (vin *VolumeInput) finalizeFree(vol *Volume) {
	sizes := vol.Sizes()
	min := math.Inf(1)
	max := math.Inf(-1)
	for x := 0; x < sizes[0]; x++ {
		for y := 0; y < sizes[1]; y++ {
			for z := 0; z < sizes[2]; z++ {
				value := vol.Voxel(x, y, z)
				if value < min {
					min = value
				}
				if value > max {
					max = value
				}
			}
		}
	}
	vol.SetVoxelRange(min, max)
	if vin.scaling {
		vol.SetRealRange(vin.nativeMin, vin.nativeMax)
	}
}
