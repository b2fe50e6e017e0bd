package volio

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

/*
===============================================================================
    Voxel-to-World Geometry
===============================================================================
*/

// mghGeometry derives per-canonical-axis separations, starts and direction
// cosines from an MGH header.
//
// Each file axis contributes one world-space axis vector: its direction-cosine
// row scaled by its spacing. The origin places the grid centre at the world
// origin (gridCentred true), or honours the header's stored translation
// (gridCentred false). Columns are reordered from file order to canonical
// order via axisIndexFromFile before decomposition.
func mghGeometry(hdr *mghHeader, axisIndexFromFile [3]int, gridCentred bool) (seps, starts [3]float64, dircos [3][3]float64, err error) {
	var xform [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			xform[i][j] = float64(hdr.dircos[j][i]) * float64(hdr.spacing[j])
		}
	}

	var origin [3]float64
	for i := 0; i < 3; i++ {
		centre := 0.0
		for j := 0; j < 3; j++ {
			centre += xform[i][j] * float64(hdr.sizes[j]) / 2
		}
		origin[i] = -centre
		if !gridCentred {
			origin[i] += float64(hdr.dircos[3][i])
		}
	}

	linear := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			linear.Set(i, axisIndexFromFile[j], xform[i][j])
		}
	}
	return decomposeTransform(linear, origin)
}

// decomposeTransform splits a voxel-to-world transform into per-axis
// separations (signed step lengths), unit direction cosines and starts (the
// origin expressed in the direction-cosine basis).
//
// An axis's separation takes a negative sign when its world vector points
// against its own canonical direction, so the unit cosine keeps a
// non-negative principal component.
func decomposeTransform(linear *mat.Dense, origin [3]float64) (seps, starts [3]float64, dircos [3][3]float64, err error) {
	basis := mat.NewDense(3, 3, nil)
	for a := 0; a < 3; a++ {
		col := [3]float64{linear.At(0, a), linear.At(1, a), linear.At(2, a)}
		norm := math.Sqrt(col[0]*col[0] + col[1]*col[1] + col[2]*col[2])
		if norm == 0 {
			err = CorruptVolumeError("transform: axis %d has zero length", a)
			return
		}
		sep := norm
		if col[a] < 0 {
			sep = -sep
		}
		seps[a] = sep
		for i := 0; i < 3; i++ {
			dircos[a][i] = col[i] / sep
			basis.Set(i, a, dircos[a][i])
		}
	}

	// solve basis * starts = origin
	var qr mat.QR
	qr.Factorize(basis)
	rhs := mat.NewDense(3, 1, []float64{origin[0], origin[1], origin[2]})
	sol := mat.NewDense(3, 1, nil)
	if serr := qr.SolveTo(sol, false, rhs); serr != nil {
		err = CorruptVolumeError("transform: direction cosines are singular: %v", serr)
		return
	}
	for a := 0; a < 3; a++ {
		starts[a] = sol.At(a, 0)
	}
	return
}
