package volio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestDecomposeAxisAligned(t *testing.T) {
	linear := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 3, 0,
		0, 0, 4,
	})
	seps, starts, dircos, err := decomposeTransform(linear, [3]float64{1, -2, 3})
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, seps[:], 1e-12)
	assert.InDeltaSlice(t, []float64{1, -2, 3}, starts[:], 1e-12)
	assert.InDeltaSlice(t, []float64{1, 0, 0}, dircos[0][:], 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1, 0}, dircos[1][:], 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0, 1}, dircos[2][:], 1e-12)
}

func TestDecomposeMirroredAxis(t *testing.T) {
	linear := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, -3, 0,
		0, 0, 1,
	})
	seps, starts, dircos, err := decomposeTransform(linear, [3]float64{0, 6, 0})
	assert.NoError(t, err)
	assert.InDelta(t, -3.0, seps[1], 1e-12)
	// the unit cosine keeps a non-negative principal component
	assert.InDeltaSlice(t, []float64{0, 1, 0}, dircos[1][:], 1e-12)
	assert.InDelta(t, 6.0, starts[1], 1e-12)
}

func TestDecomposeZeroAxisFails(t *testing.T) {
	linear := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 0, 0,
		0, 0, 1,
	})
	_, _, _, err := decomposeTransform(linear, [3]float64{0, 0, 0})
	assert.Error(t, err)
	assert.IsType(t, &CorruptVolume{}, err)
}

func TestMGHGeometryCoronalDefaults(t *testing.T) {
	hdr := &mghHeader{
		version: 1,
		sizes:   [4]int32{2, 2, 2, 1},
		spacing: [3]float32{1, 1, 1},
		dircos: [4][3]float32{
			{-1, 0, 0},
			{0, 0, -1},
			{0, 1, 0},
			{0, 0, 0},
		},
	}
	seps, starts, dircos, err := mghGeometry(hdr, [3]int{AxisX, AxisZ, AxisY}, true)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 1, -1}, seps[:], 1e-6)
	assert.InDeltaSlice(t, []float64{1, -1, 1}, starts[:], 1e-6)
	assert.InDeltaSlice(t, []float64{1, 0, 0}, dircos[0][:], 1e-6)
	assert.InDeltaSlice(t, []float64{0, 1, 0}, dircos[1][:], 1e-6)
	assert.InDeltaSlice(t, []float64{0, 0, 1}, dircos[2][:], 1e-6)
}

func TestMGHGeometryScaledIdentity(t *testing.T) {
	hdr := &mghHeader{
		version: 1,
		sizes:   [4]int32{2, 2, 2, 1},
		spacing: [3]float32{2, 3, 4},
		dircos: [4][3]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
			{0, 0, 0},
		},
	}
	seps, starts, _, err := mghGeometry(hdr, [3]int{AxisX, AxisY, AxisZ}, true)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, seps[:], 1e-6)
	// grid centre sits at the world origin
	assert.InDeltaSlice(t, []float64{-2, -3, -4}, starts[:], 1e-6)
}

func TestMGHGeometryStoredTranslation(t *testing.T) {
	hdr := &mghHeader{
		version: 1,
		sizes:   [4]int32{2, 2, 2, 1},
		spacing: [3]float32{1, 1, 1},
		dircos: [4][3]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
			{10, 20, 30},
		},
	}
	_, starts, _, err := mghGeometry(hdr, [3]int{AxisX, AxisY, AxisZ}, false)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{9, 19, 29}, starts[:], 1e-6)
}
