package renderer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// WritePNG writes a tone-mapped 8-bit PNG
func WritePNG(w io.Writer, b *ImageBuffer) error {
	return png.Encode(w, b.ToRGBA())
}

// WriteTIFF writes a tone-mapped 16-bit deflate-compressed TIFF
func WriteTIFF(w io.Writer, b *ImageBuffer) error {
	return tiff.Encode(w, b.ToRGBA64(), &tiff.Options{Compression: tiff.Deflate})
}

// WritePFM writes linear radiance as a little-endian portable float map.
// Rows are stored bottom to top.
func WritePFM(w io.Writer, b *ImageBuffer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "PF\n%d %d\n-1.0\n", b.Width, b.Height); err != nil {
		return err
	}

	row := make([]float32, 3*b.Width)
	for y := b.Height - 1; y >= 0; y-- {
		for x := 0; x < b.Width; x++ {
			v := b.At(x, y)
			row[3*x] = float32(v.X)
			row[3*x+1] = float32(v.Y)
			row[3*x+2] = float32(v.Z)
		}
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save writes the image in the format implied by the file extension
func Save(filename string, b *ImageBuffer) error {
	var write func(io.Writer, *ImageBuffer) error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		write = WritePNG
	case ".pfm":
		write = WritePFM
	case ".tif", ".tiff":
		write = WriteTIFF
	default:
		return fmt.Errorf("unsupported output format %q", filepath.Ext(filename))
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	if err := write(file, b); err != nil {
		file.Close()
		return fmt.Errorf("error writing %s: %w", filename, err)
	}
	return file.Close()
}
