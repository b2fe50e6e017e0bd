package volio

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/b71729/bin"
)

/*
===============================================================================
    Slice Streaming
===============================================================================
*/

// volumeStream is the single-file slice source: one handle opened at session
// initialize, read strictly sequentially. Rewinding repositions the stream at
// the payload offset; for a gzip transport that means reopening and skipping,
// since the compressed stream is not seekable.
type volumeStream struct {
	path          string
	f             *os.File
	zr            *gzip.Reader
	br            bin.Reader
	order         binary.ByteOrder
	payloadOffset int64
	compressed    bool
}

// openVolumeStream opens `path` and positions the stream `offset` bytes into
// the (uncompressed) payload.
func openVolumeStream(path string, order binary.ByteOrder, compressed bool, offset int64) (*volumeStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, IOErrorf("open %s: %v", filepath.Base(path), err)
	}
	vs := &volumeStream{
		path:          path,
		f:             f,
		order:         order,
		payloadOffset: offset,
		compressed:    compressed,
	}
	if compressed {
		zr, err := gzip.NewReader(bufio.NewReaderSize(f, GetConfig().ReadBufferSize))
		if err != nil {
			f.Close()
			return nil, CorruptVolumeError("%s: %v", filepath.Base(path), err)
		}
		vs.zr = zr
		vs.br = bin.NewReader(zr, order)
	} else {
		vs.br = bin.NewReader(f, order)
	}
	if offset > 0 {
		if err := vs.br.Discard(offset); err != nil {
			vs.Close()
			return nil, InsufficientBytesError("%s: cannot skip to byte offset %d: %v", filepath.Base(path), offset, err)
		}
	}
	return vs, nil
}

// read fills `dst` from the current stream position.
func (vs *volumeStream) read(dst []byte) error {
	if err := vs.br.ReadBytes(dst); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return InsufficientBytesError("%s: short read of %d bytes", filepath.Base(vs.path), len(dst))
		}
		return IOErrorf("%s: %v", filepath.Base(vs.path), err)
	}
	return nil
}

// Rewind repositions the stream at the payload offset for a second pass.
func (vs *volumeStream) Rewind() error {
	if !vs.compressed {
		if _, err := vs.f.Seek(vs.payloadOffset, io.SeekStart); err != nil {
			return IOErrorf("%s: rewind: %v", filepath.Base(vs.path), err)
		}
		vs.br = bin.NewReader(vs.f, vs.order)
		return nil
	}
	// gzip streams cannot seek; restart decompression from the top and skip
	// back to the payload
	if _, err := vs.f.Seek(0, io.SeekStart); err != nil {
		return IOErrorf("%s: rewind: %v", filepath.Base(vs.path), err)
	}
	if err := vs.zr.Reset(bufio.NewReaderSize(vs.f, GetConfig().ReadBufferSize)); err != nil {
		return IOErrorf("%s: rewind: %v", filepath.Base(vs.path), err)
	}
	vs.br = bin.NewReader(vs.zr, vs.order)
	if vs.payloadOffset > 0 {
		if err := vs.br.Discard(vs.payloadOffset); err != nil {
			return IOErrorf("%s: rewind: %v", filepath.Base(vs.path), err)
		}
	}
	return nil
}

func (vs *volumeStream) Close() error {
	if vs.zr != nil {
		vs.zr.Close()
		vs.zr = nil
	}
	if vs.f == nil {
		return nil
	}
	err := vs.f.Close()
	vs.f = nil
	return err
}

// absolutePath resolves `name` against `dir` unless it is already absolute.
func absolutePath(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// inputSlice reads the next slice's raw bytes into the session buffer and
// advances the cursor.
//
// Under the single-file layout the read continues sequentially from the open
// stream. Under the one-file-per-slice layout the cursor's file is opened,
// positioned at its recorded byte offset, read and closed again before
// returning.
func (vin *VolumeInput) inputSlice() error {
	if vin.sliceIndex >= vin.nSlices() {
		return CorruptVolumeError("read past final slice")
	}
	if vin.oneFilePerSlice {
		path := absolutePath(vin.directory, vin.sliceFilenames[vin.sliceIndex])
		f, err := os.Open(path)
		if err != nil {
			return IOErrorf("open slice %d: %v", vin.sliceIndex, err)
		}
		if offset := vin.sliceByteOffsets[vin.sliceIndex]; offset > 0 {
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				f.Close()
				return IOErrorf("slice %d: seek to %d: %v", vin.sliceIndex, offset, err)
			}
		}
		if _, err := io.ReadFull(f, vin.sliceBuffer); err != nil {
			f.Close()
			return InsufficientBytesError("slice %d (%s): short read: %v",
				vin.sliceIndex, filepath.Base(path), err)
		}
		if err := f.Close(); err != nil {
			return IOErrorf("slice %d: close: %v", vin.sliceIndex, err)
		}
	} else {
		if err := vin.stream.read(vin.sliceBuffer); err != nil {
			return err
		}
	}
	vin.sliceIndex++
	return nil
}
