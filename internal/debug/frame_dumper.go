// Package debug provides diagnostics around a running console: frame dumps,
// dump sessions, a state graph and a runtime stats server.
package debug

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

const (
	frameWidth  = 256
	frameHeight = 240
)

// Format selects the frame dump file format
type Format string

const (
	FormatPNG  Format = "png"
	FormatPPM  Format = "ppm"
	FormatText Format = "txt"
)

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatPNG, FormatPPM, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("unknown dump format %q (want png, ppm or txt)", name)
}

// FrameDumper writes 0x00RRGGBB frames to disk
type FrameDumper struct {
	outputDir    string
	format       Format
	scale        int
	dumpInterval int
	maxDumps     int
	dumped       int
	pixelFilter  func(x, y int, rgb uint32) bool
}

// NewFrameDumper creates a dumper writing into outputDir. Every frame is
// dumped at 1x scale with no limit until configured otherwise.
func NewFrameDumper(outputDir string, format Format) *FrameDumper {
	return &FrameDumper{
		outputDir:    outputDir,
		format:       format,
		scale:        1,
		dumpInterval: 1,
	}
}

// SetScale sets the integer upscale applied to image formats
func (fd *FrameDumper) SetScale(scale int) {
	if scale < 1 {
		scale = 1
	}
	fd.scale = scale
}

// SetDumpInterval dumps only frames whose number is a multiple of interval
func (fd *FrameDumper) SetDumpInterval(interval int) {
	if interval < 1 {
		interval = 1
	}
	fd.dumpInterval = interval
}

// SetMaxDumps limits the number of files written; 0 means unlimited
func (fd *FrameDumper) SetMaxDumps(max int) {
	fd.maxDumps = max
}

// SetPixelFilter restricts text dumps to pixels accepted by filter
func (fd *FrameDumper) SetPixelFilter(filter func(x, y int, rgb uint32) bool) {
	fd.pixelFilter = filter
}

// Dumped returns the number of files written
func (fd *FrameDumper) Dumped() int {
	return fd.dumped
}

// Dump writes frame number frameNum if the interval and limit allow it. It
// returns the written path, or "" when the frame was skipped.
func (fd *FrameDumper) Dump(frame []uint32, frameNum uint64) (string, error) {
	if len(frame) != frameWidth*frameHeight {
		return "", fmt.Errorf("frame has %d pixels, want %d", len(frame), frameWidth*frameHeight)
	}
	if frameNum%uint64(fd.dumpInterval) != 0 {
		return "", nil
	}
	if fd.maxDumps > 0 && fd.dumped >= fd.maxDumps {
		return "", nil
	}
	if err := os.MkdirAll(fd.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}

	path := filepath.Join(fd.outputDir, fmt.Sprintf("frame_%06d.%s", frameNum, fd.format))
	if err := fd.writeFile(path, frame, frameNum); err != nil {
		return "", err
	}
	fd.dumped++
	return path, nil
}

func (fd *FrameDumper) writeFile(path string, frame []uint32, frameNum uint64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame dump file: %w", err)
	}
	w := bufio.NewWriter(file)

	switch fd.format {
	case FormatPNG:
		err = png.Encode(w, fd.image(frame))
	case FormatPPM:
		err = writePPM(w, fd.image(frame))
	default:
		err = fd.writeText(w, frame, frameNum)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// image converts frame to RGBA and applies the configured upscale
func (fd *FrameDumper) image(frame []uint32) *image.RGBA {
	src := FrameImage(frame)
	if fd.scale == 1 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, frameWidth*fd.scale, frameHeight*fd.scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// FrameImage converts a 0x00RRGGBB frame to an opaque RGBA image
func FrameImage(frame []uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	for i, pixel := range frame {
		o := i * 4
		img.Pix[o] = uint8(pixel >> 16)
		img.Pix[o+1] = uint8(pixel >> 8)
		img.Pix[o+2] = uint8(pixel)
		img.Pix[o+3] = 0xFF
	}
	return img
}

// writePPM writes a binary (P6) PPM
func writePPM(w *bufio.Writer, img *image.RGBA) error {
	b := img.Bounds()
	if _, err := fmt.Fprintf(w, "P6\n%d %d\n255\n", b.Dx(), b.Dy()); err != nil {
		return err
	}
	for i := 0; i < len(img.Pix); i += 4 {
		if _, err := w.Write(img.Pix[i : i+3]); err != nil {
			return err
		}
	}
	return nil
}

// writeText writes one hex value per pixel, 16 per line
func (fd *FrameDumper) writeText(w *bufio.Writer, frame []uint32, frameNum uint64) error {
	fmt.Fprintf(w, "Frame Buffer Dump\n")
	fmt.Fprintf(w, "Frame Number: %d\n", frameNum)
	fmt.Fprintf(w, "Dimensions: %dx%d\n", frameWidth, frameHeight)
	fmt.Fprintf(w, "===================\n\n")

	for y := 0; y < frameHeight; y++ {
		fmt.Fprintf(w, "Line %03d: ", y)
		written := 0
		for x := 0; x < frameWidth; x++ {
			pixel := frame[y*frameWidth+x]
			if fd.pixelFilter != nil && !fd.pixelFilter(x, y, pixel) {
				continue
			}
			if written > 0 && written%16 == 0 {
				fmt.Fprintf(w, "\n          ")
			}
			fmt.Fprintf(w, "%06X ", pixel)
			written++
		}
		if _, err := fmt.Fprintf(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// CreateRegionFilter accepts pixels inside the inclusive rectangle
func CreateRegionFilter(x1, y1, x2, y2 int) func(x, y int, rgb uint32) bool {
	return func(x, y int, rgb uint32) bool {
		return x >= x1 && x <= x2 && y >= y1 && y <= y2
	}
}

// CreateColorRangeFilter accepts pixels whose packed color lies in range
func CreateColorRangeFilter(minRGB, maxRGB uint32) func(x, y int, rgb uint32) bool {
	return func(x, y int, rgb uint32) bool {
		return rgb >= minRGB && rgb <= maxRGB
	}
}
