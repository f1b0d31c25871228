package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGroundTruth(t *testing.T) {
	in := "query,match\n# comment\n120, 3\n3,120\n50,7\n9,9\n"
	gt, err := DecodeGroundTruth(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []Pair{{A: 3, B: 120}, {A: 7, B: 50}}, gt.Pairs())
	assert.True(t, gt.Contains(120, 3))
	assert.True(t, gt.Contains(3, 120))
	assert.False(t, gt.Contains(9, 9))
	assert.False(t, gt.Contains(7, 8))
}

func TestDecodeGroundTruth_Errors(t *testing.T) {
	tests := map[string]string{
		"bad record":     "1,2\nx,3\n",
		"negative":       "1,-2\n",
		"too many cells": "1,2,3\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeGroundTruth(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestReadGroundTruth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gt.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,30\n5,40\n"), 0o644))
	gt, err := ReadGroundTruth(path)
	require.NoError(t, err)
	assert.Len(t, gt, 2)

	_, err = ReadGroundTruth(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
