package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	vio "github.com/b71729/volio"
)

/*
===============================================================================
    Util: Scan Directory For Readable Volumes
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
	fmt.Printf("usage: %s directory\n", baseFile)
	os.Exit(1)
}

func main() {
	vio.GetConfig()
	if len(os.Args) != 2 || os.Args[1] == "--help" || os.Args[1] == "-h" {
		usage()
	}
	stat, err := os.Stat(os.Args[1])
	check(err)
	if !stat.IsDir() {
		usage()
	}

	var errorCount, successCount int64
	err = vio.ConcurrentlyWalkDir(os.Args[1], func(path string) {
		_, err := vio.ReadVolume(path)
		basePath := filepath.Base(path)
		if err != nil {
			vio.Errorf(`error reading "%s": %v`, basePath, err)
			atomic.AddInt64(&errorCount, 1)
			return
		}
		atomic.AddInt64(&successCount, 1)
		vio.Debugf(`read "%s"`, basePath)
	})
	check(err)
	if errorCount == 0 {
		vio.Infof("read %d volumes without errors", successCount)
	} else {
		vio.Infof("read %d volumes without errors, and failed to read %d", successCount, errorCount)
	}
}
