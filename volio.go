// Package volio provides methods for reading multi-dimensional scientific
// image volumes ("voxel" grids) into a canonical in-memory representation.
//
// Two on-disk formats are supported: the ASCII-directed "free" format
// (geometry header plus raw binary samples, either in one monolithic file or
// one file per slice), and the fixed big-endian "MGH" format used for
// neuroimaging volumes, optionally gzip-compressed ("MGZ").
//
// Volumes are decoded incrementally, one slice at a time, so callers can
// report progress or abort without reading the whole file.
package volio

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
)

// VolioVersion equals the current (or aimed for) version of the software.
const VolioVersion = "0.1"

/*
===============================================================================
    Error Types
===============================================================================
*/

// CorruptVolume is an error indicating that the input file does not conform
// to its format specification (bad magic, malformed header, truncated data).
type CorruptVolume struct {
	error
}

// UnsupportedVolume is an error indicating that the input uses a feature
// outside the supported set (unknown sample type, bad version).
type UnsupportedVolume struct {
	error
}

// IOError is an error indicating that an underlying file operation failed.
type IOError struct {
	error
}

// InsufficientBytes is an error indicating that the input ended before the
// expected number of bytes could be read.
type InsufficientBytes struct {
	error
}

// CorruptVolumeError raises a `CorruptVolume` error
func CorruptVolumeError(format string, a ...interface{}) *CorruptVolume {
	return &CorruptVolume{fmt.Errorf(format, a...)}
}

// UnsupportedVolumeError raises an `UnsupportedVolume` error
func UnsupportedVolumeError(format string, a ...interface{}) *UnsupportedVolume {
	return &UnsupportedVolume{fmt.Errorf(format, a...)}
}

// IOErrorf raises an `IOError`
func IOErrorf(format string, a ...interface{}) *IOError {
	return &IOError{fmt.Errorf(format, a...)}
}

// InsufficientBytesError raises an `InsufficientBytes` error
func InsufficientBytesError(format string, a ...interface{}) *InsufficientBytes {
	return &InsufficientBytes{fmt.Errorf(format, a...)}
}

/*
===============================================================================
    VolumeInput
===============================================================================
*/

// Format identifies the on-disk volume format of a session.
type Format int

const (
	// FormatFree is the ASCII-directed free format (default suffix "fre")
	FormatFree Format = iota
	// FormatMGH is the big-endian MGH format, gzip-compressed when the
	// suffix is ".mgz"
	FormatMGH
)

func (f Format) String() string {
	switch f {
	case FormatFree:
		return "free"
	case FormatMGH:
		return "mgh"
	}
	return "unknown"
}

// session states
const (
	stateUninitialized = iota
	stateReady
	stateStreaming
	stateExhausted
	stateFailed
)

// VolumeInput is a streaming decode session for one volume file.
//
// A session is single-threaded: it exclusively owns its open file handle(s)
// and slice buffer, and Step calls must be issued strictly in order. The
// caller must invoke Close exactly once, whether or not decoding ran to
// completion; there is no implicit cleanup.
type VolumeInput struct {
	format   Format
	state    int
	dataType DataType // file-native sample type
	order    binary.ByteOrder

	// file axis geometry; axis 0..2 are spatial file axes, axis 3 (MGH
	// only) is the non-spatial extent
	sizesInFile       [MaxDimensions]int
	axisIndexFromFile [3]int

	// slice iteration order: sliceAxis is the slowest-varying file axis,
	// innerAxis the fastest
	sliceAxis, rowAxis, innerAxis int

	sliceIndex  int
	sliceBuffer []byte

	// single-file layout
	stream *volumeStream

	// one-file-per-slice layout
	oneFilePerSlice  bool
	directory        string
	sliceFilenames   []string
	sliceByteOffsets []int64

	// conversion state
	scaling          bool
	nativeMin        float64
	nativeMax        float64
	valueTranslation float64
	valueScale       float64
	clampLo, clampHi float64
	clamped          bool

	// running range of converted values (MGH reconciliation)
	minValue float64
	maxValue float64
}

// NewVolumeInput returns a fresh VolumeInput suitable for decoding a volume.
func NewVolumeInput() VolumeInput {
	return VolumeInput{state: stateUninitialized}
}

// Format returns the detected on-disk format of the session.
func (vin *VolumeInput) Format() Format {
	return vin.format
}

// Start initializes the session: the header of the file at `path` is parsed,
// geometry and storage type are committed to `vol`, and the session becomes
// ready for Step calls.
//
// The format is selected by suffix: ".mgh" and ".mgz" decode as MGH,
// anything else as free format.
func (vin *VolumeInput) Start(path string, vol *Volume) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mgh", ".mgz":
		return vin.StartMGH(path, vol)
	default:
		return vin.StartFreeFormat(path, vol)
	}
}

// Step decodes the next slice into `vol` and reports progress.
//
// fractionDone grows monotonically from 0 to 1; more is true for every call
// except exactly the one that consumes the final slice, at which point the
// volume's voxel and real value ranges are committed. Calling Step after the
// final slice, or after a failure, is an error.
func (vin *VolumeInput) Step(vol *Volume) (fractionDone float64, more bool, err error) {
	switch vin.state {
	case stateReady, stateStreaming:
	case stateExhausted:
		return 1, false, CorruptVolumeError("Step(): read past final slice")
	default:
		return 0, false, CorruptVolumeError("Step(): session is not ready")
	}
	switch vin.format {
	case FormatFree:
		fractionDone, more, err = vin.stepFree(vol)
	case FormatMGH:
		fractionDone, more, err = vin.stepMGH(vol)
	}
	if err != nil {
		vin.state = stateFailed
		return fractionDone, false, err
	}
	if more {
		vin.state = stateStreaming
	} else {
		vin.state = stateExhausted
	}
	return fractionDone, more, nil
}

// ReadVolume decodes the whole volume at `path` in one call, driving a
// session from Start to the final slice.
func ReadVolume(path string) (Volume, error) {
	vol := NewVolume()
	vin := NewVolumeInput()
	if err := vin.Start(path, &vol); err != nil {
		vin.Close()
		return vol, err
	}
	for {
		_, more, err := vin.Step(&vol)
		if err != nil {
			vin.Close()
			return vol, err
		}
		if !more {
			break
		}
	}
	if err := vin.Close(); err != nil {
		return vol, err
	}
	return vol, nil
}

// Close releases the slice buffer and any open file handle. It must be called
// exactly once per started session; a session cannot be reused afterwards.
func (vin *VolumeInput) Close() error {
	vin.sliceBuffer = nil
	vin.sliceFilenames = nil
	vin.sliceByteOffsets = nil
	if vin.stream != nil {
		err := vin.stream.Close()
		vin.stream = nil
		if err != nil {
			return IOErrorf("Close(): %v", err)
		}
	}
	return nil
}

// nSlices returns the slice count along the slowest-varying file axis.
func (vin *VolumeInput) nSlices() int {
	return vin.sizesInFile[vin.sliceAxis]
}

// voxelsInSlice returns the number of samples in one slice.
func (vin *VolumeInput) voxelsInSlice() int {
	return vin.sizesInFile[vin.rowAxis] * vin.sizesInFile[vin.innerAxis]
}

// desiredDataType decides how samples are stored in memory: the volume's
// preassigned type wins, otherwise the ConvertToByte option, otherwise the
// file-native type.
func desiredDataType(vol *Volume, native DataType) DataType {
	if vol.DataType() != NoDataType {
		return vol.DataType()
	}
	if GetConfig().ConvertToByte {
		return UnsignedByte
	}
	return native
}

// checkAxisBijection fails unless the three file-to-canonical mappings are
// mutually distinct.
func checkAxisBijection(axisIndexFromFile [3]int) error {
	if axisIndexFromFile[0] == axisIndexFromFile[1] ||
		axisIndexFromFile[0] == axisIndexFromFile[2] ||
		axisIndexFromFile[1] == axisIndexFromFile[2] {
		return CorruptVolumeError("two axis indices are equal")
	}
	return nil
}

// prepareScaling computes the fixed translation/scale pair from the native
// value range once the output type is known to differ from the native type.
func (vin *VolumeInput) prepareScaling(out DataType) {
	vin.scaling = true
	vin.valueTranslation = vin.nativeMin
	vin.valueScale = (vin.nativeMax - vin.nativeMin) / float64(outputLevels(out)-1)
	if vin.valueScale == 0 {
		// uniform data; any scale maps everything to zero offset
		vin.valueScale = 1
	}
}

// convertSample maps one decoded file-native sample to its stored value.
func (vin *VolumeInput) convertSample(sample float64) float64 {
	if !vin.scaling {
		return sample
	}
	value := (sample - vin.valueTranslation) / vin.valueScale
	if vin.clamped {
		if value < vin.clampLo {
			value = vin.clampLo
		} else if value > vin.clampHi {
			value = vin.clampHi
		}
	}
	return value
}
