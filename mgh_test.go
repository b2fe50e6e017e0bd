package volio

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

// mghFixture assembles a complete MGH byte stream: fixed header, reserved
// padding and payload.
func mghFixture(sizes [4]int32, typ int32, goodRAS int16, spacing [3]float32, dircos [4][3]float32, payload []byte) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, int32(1)) // version
	binary.Write(buf, binary.BigEndian, sizes)
	binary.Write(buf, binary.BigEndian, typ)
	binary.Write(buf, binary.BigEndian, int32(0)) // dof
	binary.Write(buf, binary.BigEndian, goodRAS)
	binary.Write(buf, binary.BigEndian, spacing)
	binary.Write(buf, binary.BigEndian, dircos)
	buf.Write(make([]byte, mghReservedSize))
	buf.Write(payload)
	return buf.Bytes()
}

var identityCosines = [4][3]float32{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
	{0, 0, 0},
}

func TestDominantAxis(t *testing.T) {
	assert.Equal(t, AxisX, dominantAxis([3]float32{0.9, 0.3, 0.3}))
	assert.Equal(t, AxisY, dominantAxis([3]float32{0.1, -0.9, 0.3}))
	assert.Equal(t, AxisZ, dominantAxis([3]float32{0, 0.2, -0.8}))
	// ties resolve to the lowest axis
	assert.Equal(t, AxisX, dominantAxis([3]float32{0.7, 0.7, 0}))
	assert.Equal(t, AxisY, dominantAxis([3]float32{0.1, 0.7, 0.7}))
}

func TestReadMGHIdentity(t *testing.T) {
	// 2x2x2 unsigned bytes 1..8, axis-aligned with spacing (2,3,4)
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeUChar, 1,
		[3]float32{2, 3, 4}, identityCosines,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8})
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	vol, err := ReadVolume(path)
	assert.NoError(t, err)
	assert.Equal(t, UnsignedByte, vol.DataType())
	assert.Equal(t, []int{2, 2, 2}, vol.Sizes())
	seps := vol.Separations()
	starts := vol.Starts()
	assert.InDeltaSlice(t, []float64{2, 3, 4}, seps[:], 1e-6)
	assert.InDeltaSlice(t, []float64{-2, -3, -4}, starts[:], 1e-6)

	// slices along z, x fastest
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				expected := float64(1 + z*4 + y*2 + x)
				assert.Equal(t, expected, vol.Voxel(x, y, z), "at (%d,%d,%d)", x, y, z)
			}
		}
	}
	min, max := vol.VoxelRange()
	assert.Equal(t, 1.0, min)
	assert.Equal(t, 8.0, max)
	min, max = vol.RealRange()
	assert.Equal(t, 1.0, min)
	assert.Equal(t, 8.0, max)
}

func TestReadMGHCoronalDefaults(t *testing.T) {
	// a zero "good RAS" flag discards the stored spacing and cosines in
	// favour of unit spacing and the coronal orientation
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeUChar, 0,
		[3]float32{9, 9, 9}, [4][3]float32{},
		[]byte{1, 2, 3, 4, 5, 6, 7, 8})
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	vol, err := ReadVolume(path)
	assert.NoError(t, err)
	seps := vol.Separations()
	starts := vol.Starts()
	assert.InDeltaSlice(t, []float64{-1, 1, -1}, seps[:], 1e-6)
	assert.InDeltaSlice(t, []float64{1, -1, 1}, starts[:], 1e-6)
	for axis, expected := range [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		cosine := vol.DirectionCosine(axis)
		assert.InDeltaSlice(t, expected, cosine[:], 1e-6)
	}

	// file axes map to canonical (x, z, y): slices along y, x fastest
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				expected := float64(1 + y*4 + z*2 + x)
				assert.Equal(t, expected, vol.Voxel(x, y, z), "at (%d,%d,%d)", x, y, z)
			}
		}
	}
}

func TestReadMGHSignedShort(t *testing.T) {
	payload := &bytes.Buffer{}
	binary.Write(payload, binary.BigEndian, []int16{-100, 20, 30, 40, 50, 60, 70, 800})
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeShort, 1,
		[3]float32{1, 1, 1}, identityCosines, payload.Bytes())
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	vol, err := ReadVolume(path)
	assert.NoError(t, err)
	assert.Equal(t, SignedShort, vol.DataType())
	assert.Equal(t, -100.0, vol.Voxel(0, 0, 0))
	assert.Equal(t, 800.0, vol.Voxel(1, 1, 1))
	min, max := vol.VoxelRange()
	assert.Equal(t, -100.0, min)
	assert.Equal(t, 800.0, max)
}

func TestReadMGZ(t *testing.T) {
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeUChar, 1,
		[3]float32{1, 1, 1}, identityCosines,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8})
	compressed := &bytes.Buffer{}
	zw := gzip.NewWriter(compressed)
	zw.Write(contents)
	assert.NoError(t, zw.Close())
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgz", compressed.Bytes())

	vol, err := ReadVolume(path)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, vol.Voxel(0, 0, 0))
	assert.Equal(t, 8.0, vol.Voxel(1, 1, 1))
	min, max := vol.VoxelRange()
	assert.Equal(t, 1.0, min)
	assert.Equal(t, 8.0, max)
}

func TestReadMGZNarrowingRewindsCompressedStream(t *testing.T) {
	// narrowing float to byte forces a range prepass, then a second pass
	// over the reopened compressed stream
	payload := &bytes.Buffer{}
	binary.Write(payload, binary.BigEndian, []float32{0, 4, 8, 12, 16, 20, 400, 1020})
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeFloat, 1,
		[3]float32{1, 1, 1}, identityCosines, payload.Bytes())
	compressed := &bytes.Buffer{}
	zw := gzip.NewWriter(compressed)
	zw.Write(contents)
	assert.NoError(t, zw.Close())
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgz", compressed.Bytes())

	vol := NewVolume()
	vol.SetDataType(UnsignedByte)
	vin := NewVolumeInput()
	assert.NoError(t, vin.Start(path, &vol))
	for {
		_, more, err := vin.Step(&vol)
		assert.NoError(t, err)
		if !more {
			break
		}
	}
	assert.NoError(t, vin.Close())

	assert.Equal(t, 0.0, vol.Voxel(0, 0, 0))
	assert.Equal(t, 255.0, vol.Voxel(1, 1, 1))
	min, max := vol.VoxelRange()
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 255.0, max)
	min, max = vol.RealRange()
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 1020.0, max)
}

func TestReadMGH4D(t *testing.T) {
	contents := mghFixture([4]int32{2, 2, 2, 3}, mghTypeUChar, 1,
		[3]float32{1, 1, 1}, identityCosines,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8})
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	vol, err := ReadVolume(path)
	assert.NoError(t, err)
	assert.Equal(t, 4, vol.NDimensions())
	assert.Equal(t, []int{2, 2, 2, 3}, vol.Sizes())
}

func TestReadMGHBadVersion(t *testing.T) {
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeUChar, 1,
		[3]float32{1, 1, 1}, identityCosines,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8})
	// overwrite the version word
	binary.BigEndian.PutUint32(contents[0:], 2)
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	_, err := ReadVolume(path)
	assert.Error(t, err)
	assert.IsType(t, &UnsupportedVolume{}, err)
}

func TestReadMGHBadDataType(t *testing.T) {
	// type code 2 ("long") is not supported
	contents := mghFixture([4]int32{2, 2, 2, 1}, 2, 1,
		[3]float32{1, 1, 1}, identityCosines, nil)
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	_, err := ReadVolume(path)
	assert.Error(t, err)
	assert.IsType(t, &UnsupportedVolume{}, err)
}

func TestReadMGHShortHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00})

	_, err := ReadVolume(path)
	assert.Error(t, err)
	assert.IsType(t, &InsufficientBytes{}, err)
}

func TestReadMGHTruncatedPayload(t *testing.T) {
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeUChar, 1,
		[3]float32{1, 1, 1}, identityCosines,
		[]byte{1, 2, 3}) // 5 bytes short
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	_, err := ReadVolume(path)
	assert.Error(t, err)
	assert.IsType(t, &InsufficientBytes{}, err)
}

func TestReadMGHNonBijectiveCosines(t *testing.T) {
	// two file axes dominated by the same canonical axis
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeUChar, 1,
		[3]float32{1, 1, 1},
		[4][3]float32{
			{1, 0, 0},
			{0.9, 0.1, 0},
			{0, 0, 1},
			{0, 0, 0},
		}, nil)
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	_, err := ReadVolume(path)
	assert.Error(t, err)
	assert.IsType(t, &CorruptVolume{}, err)
}

func TestReadMGHIgnoresTrailer(t *testing.T) {
	contents := mghFixture([4]int32{2, 2, 2, 1}, mghTypeUChar, 1,
		[3]float32{1, 1, 1}, identityCosines,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8})
	// optional metadata after the payload must not disturb decoding
	contents = append(contents, 0xDE, 0xAD, 0xBE, 0xEF)
	dir := t.TempDir()
	path := writeFixture(t, dir, "vol.mgh", contents)

	vol, err := ReadVolume(path)
	assert.NoError(t, err)
	assert.Equal(t, 8.0, vol.Voxel(1, 1, 1))
}
