package entropy

import (
	"fmt"
	"os"
)

// FileEntropy estimates the entropy of the file at path without reading it
// in full. Files at or below LargeFileThreshold are scored from their first
// sampleSize bytes; larger files are scored from LargeFileSampleCount
// equally-spaced slices, averaged. sampleSize <= 0 uses DefaultSampleSize.
//
// A zero-size file returns (0, nil). I/O failures are reported as an error
// rather than a sentinel value, so callers can distinguish "empty" from
// "unavailable".
func FileEntropy(path string, sampleSize int) (float64, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	if size <= LargeFileThreshold {
		buf := make([]byte, sampleSize)
		n, err := f.Read(buf)
		if err != nil && n == 0 {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
		return Shannon(buf[:n]), nil
	}

	offsets := sampleOffsets(size, int64(sampleSize), LargeFileSampleCount)
	var sum float64
	for _, off := range offsets {
		buf := make([]byte, sampleSize)
		n, err := f.ReadAt(buf, off)
		if err != nil && n == 0 {
			return 0, fmt.Errorf("read %s at %d: %w", path, off, err)
		}
		sum += Shannon(buf[:n])
	}
	return sum / float64(len(offsets)), nil
}

// sampleOffsets returns count equally-spaced starting offsets for a
// sampleSize-byte window over a file of size bytes, covering from 0 to
// size-sampleSize inclusive.
func sampleOffsets(size, sampleSize int64, count int) []int64 {
	maxOffset := size - sampleSize
	if maxOffset < 0 {
		maxOffset = 0
	}
	if count <= 1 {
		return []int64{0}
	}
	offsets := make([]int64, count)
	step := float64(maxOffset) / float64(count-1)
	for i := 0; i < count; i++ {
		offsets[i] = int64(float64(i) * step)
	}
	return offsets
}
