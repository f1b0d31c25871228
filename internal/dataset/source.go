package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/stdesc/internal/stdesc/l1cloud"
)

// Source is an indexed sequence of scans.
type Source interface {
	Len() int
	Scan(i int) ([]l1cloud.Point, error)
}

// Dir is a directory of scan files (.bin or .bin.zst) in name order.
type Dir struct {
	root  string
	files []string
}

// OpenDir lists the scan files in dir. It fails if there are none.
func OpenDir(dir string) (*Dir, error) {
	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".bin") || strings.HasSuffix(name, ".bin.zst") {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .bin or .bin.zst scans in %s", dir)
	}
	sort.Strings(files)
	return &Dir{root: dir, files: files}, nil
}

// Len returns the number of scans.
func (d *Dir) Len() int { return len(d.files) }

// Name returns the file name of scan i.
func (d *Dir) Name(i int) string { return d.files[i] }

// Scan reads scan i.
func (d *Dir) Scan(i int) ([]l1cloud.Point, error) {
	if i < 0 || i >= len(d.files) {
		return nil, fmt.Errorf("scan %d out of range [0, %d)", i, len(d.files))
	}
	return ReadScan(filepath.Join(d.root, d.files[i]))
}

// Memory is an in-memory scan sequence.
type Memory [][]l1cloud.Point

// Len returns the number of scans.
func (m Memory) Len() int { return len(m) }

// Scan returns scan i.
func (m Memory) Scan(i int) ([]l1cloud.Point, error) {
	if i < 0 || i >= len(m) {
		return nil, fmt.Errorf("scan %d out of range [0, %d)", i, len(m))
	}
	return m[i], nil
}

// ScanName returns the conventional file name of scan i.
func ScanName(i int, compressed bool) string {
	if compressed {
		return fmt.Sprintf("%06d.bin.zst", i)
	}
	return fmt.Sprintf("%06d.bin", i)
}
