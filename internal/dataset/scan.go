package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

// recordSize is the size of one (x, y, z, intensity) float32 record.
const recordSize = 16

// ErrTruncatedScan is returned when a scan's length is not a whole number of
// records.
var ErrTruncatedScan = errors.New("truncated scan record")

// DecodeScan reads records from r until EOF. Intensity is discarded.
func DecodeScan(r io.Reader) ([]l1cloud.Point, error) {
	br := bufio.NewReader(r)
	var (
		rec [recordSize]byte
		out []l1cloud.Point
	)
	for {
		n, err := io.ReadFull(br, rec[:])
		if err == io.EOF {
			return out, nil
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedScan, n)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, l1cloud.Point{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[0:4]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[4:8]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[8:12]))),
		})
	}
}

// EncodeScan writes points as records with zero intensity.
func EncodeScan(w io.Writer, points []l1cloud.Point) error {
	bw := bufio.NewWriter(w)
	var rec [recordSize]byte
	for _, p := range points {
		binary.LittleEndian.PutUint32(rec[0:4], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(rec[4:8], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(rec[8:12], math.Float32bits(float32(p.Z)))
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadScan reads one scan file, decompressing it when the name ends in .zst.
func ReadScan(path string) ([]l1cloud.Point, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open scan: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	points, err := DecodeScan(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return points, nil
}

// WriteScan writes one scan file, compressing it when the name ends in .zst.
func WriteScan(path string, points []l1cloud.Point) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".zst") {
		return EncodeScan(f, points)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd stream: %w", err)
	}
	if err := EncodeScan(enc, points); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
