package main

import (
	"fmt"
	"os"
	"path/filepath"

	vio "github.com/b71729/volio"
)

/*
===============================================================================
    Util: View Volume File
===============================================================================
*/

var baseFile = filepath.Base(os.Args[0])

func check(err error) {
	if err != nil {
		vio.Fatalf("error: %v", err)
	}
}

func usage() {
	fmt.Printf("volio version %s\n", vio.VolioVersion)
	fmt.Printf("usage: %s [config.yaml] volume_file\n", baseFile)
	os.Exit(1)
}

func main() {
	vio.GetConfig()
	args := os.Args[1:]
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-h") {
		usage()
	}
	if len(args) == 2 {
		_, err := vio.LoadConfig(args[0])
		check(err)
		args = args[1:]
	}
	if len(args) != 1 {
		usage()
	}

	vol := vio.NewVolume()
	vin := vio.NewVolumeInput()
	check(vin.Start(args[0], &vol))
	defer vin.Close()

	fmt.Printf("format:      %s\n", vin.Format())
	fmt.Printf("data type:   %s\n", vol.DataType())
	fmt.Printf("dimensions:  %d\n", vol.NDimensions())
	fmt.Printf("sizes:       %v\n", vol.Sizes())
	fmt.Printf("separations: %v\n", vol.Separations())
	fmt.Printf("starts:      %v\n", vol.Starts())
	for axis := 0; axis < vio.NSpatialDimensions; axis++ {
		fmt.Printf("cosine[%d]:   %v\n", axis, vol.DirectionCosine(axis))
	}

	lastReported := -1
	for {
		fraction, more, err := vin.Step(&vol)
		check(err)
		if percent := int(fraction * 100); percent/10 > lastReported/10 {
			vio.Infof("decoded %d%%", percent)
			lastReported = percent
		}
		if !more {
			break
		}
	}

	voxelMin, voxelMax := vol.VoxelRange()
	realMin, realMax := vol.RealRange()
	fmt.Printf("voxel range: [%g, %g]\n", voxelMin, voxelMax)
	fmt.Printf("real range:  [%g, %g]\n", realMin, realMax)
}
