package density

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Volume file layout (.fogvol):
//
//	magic   [4]byte "FOGV"
//	version uint32  (little-endian, currently 1)
//	zstd stream of:
//	    levels uint32
//	    per level: width, height, depth uint32 then width*height*depth float32
//
// All multi-byte values are little-endian.
const (
	volumeMagic   = "FOGV"
	volumeVersion = 1

	// maxVolumeVoxels bounds a single level so a corrupt header cannot force a
	// huge allocation.
	maxVolumeVoxels = 1 << 28
)

// ErrVolumeFormat is returned when a .fogvol stream is malformed.
var ErrVolumeFormat = errors.New("malformed fog volume")

// Encode writes g, including every mip level, to w in the .fogvol format.
//
// Parameters:
//   - w: the destination
//   - g: the grid to serialize
//
// Returns:
//   - error: any write or compression error
func Encode(w io.Writer, g *Grid) error {
	var hdr [8]byte
	copy(hdr[0:4], volumeMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], volumeVersion)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write volume header: %w", err)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(zw)

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(g.levels))); err != nil {
		zw.Close()
		return fmt.Errorf("write level count: %w", err)
	}
	buf := make([]byte, 4)
	for i := range g.levels {
		l := &g.levels[i]
		dims := [3]uint32{uint32(l.Width), uint32(l.Height), uint32(l.Depth)}
		if err := binary.Write(bw, binary.LittleEndian, dims); err != nil {
			zw.Close()
			return fmt.Errorf("write level %d dims: %w", i, err)
		}
		for _, v := range l.Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := bw.Write(buf); err != nil {
				zw.Close()
				return fmt.Errorf("write level %d data: %w", i, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		zw.Close()
		return fmt.Errorf("flush volume: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

// Decode reads a .fogvol stream into a Grid.
//
// Parameters:
//   - r: the source
//
// Returns:
//   - *Grid: the decoded grid
//   - error: wrapped ErrVolumeFormat or ErrInvalidVolume for bad data, or an I/O error
func Decode(r io.Reader) (*Grid, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read volume header: %w", err)
	}
	if string(hdr[0:4]) != volumeMagic {
		return nil, fmt.Errorf("bad magic %q: %w", hdr[0:4], ErrVolumeFormat)
	}
	if v := binary.LittleEndian.Uint32(hdr[4:8]); v != volumeVersion {
		return nil, fmt.Errorf("unsupported version %d: %w", v, ErrVolumeFormat)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()
	br := bufio.NewReader(zr)

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read level count: %w", err)
	}
	if count == 0 || count > 32 {
		return nil, fmt.Errorf("level count %d: %w", count, ErrVolumeFormat)
	}

	levels := make([]Level, count)
	buf := make([]byte, 4)
	for i := range levels {
		var dims [3]uint32
		if err := binary.Read(br, binary.LittleEndian, &dims); err != nil {
			return nil, fmt.Errorf("read level %d dims: %w", i, err)
		}
		n := uint64(dims[0]) * uint64(dims[1]) * uint64(dims[2])
		if n == 0 || n > maxVolumeVoxels {
			return nil, fmt.Errorf("level %d has %d voxels: %w", i, n, ErrVolumeFormat)
		}
		l := Level{Width: int(dims[0]), Height: int(dims[1]), Depth: int(dims[2]), Data: make([]float32, n)}
		for j := range l.Data {
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, fmt.Errorf("read level %d data: %w", i, err)
			}
			l.Data[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
		}
		levels[i] = l
	}
	return NewGridFromLevels(levels)
}

// Save writes g to path in the .fogvol format.
func Save(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create volume file: %w", err)
	}
	if err := Encode(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a .fogvol file from path.
func Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open volume file: %w", err)
	}
	defer f.Close()
	g, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return g, nil
}
