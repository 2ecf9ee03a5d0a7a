// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging processes uploaded images: normalizes EXIF
// orientation, stores the original on local disk, and generates a
// thumbnail for admin listings and block previews.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/havenretreats/haven-go/internal/model"
)

// Thumbnail bounds. Thumbnails keep aspect ratio within this box.
const (
	ThumbWidth   = 480
	ThumbHeight  = 360
	ThumbQuality = 80
)

// ProcessResult describes a stored upload.
type ProcessResult struct {
	Width     int
	Height    int
	MimeType  string
	Size      int64
	FilePath  string
	ThumbPath string
}

// Processor stores processed uploads under a local uploads directory.
type Processor struct {
	uploadDir string
}

// NewProcessor creates a new image processor.
func NewProcessor(uploadDir string) *Processor {
	return &Processor{
		uploadDir: uploadDir,
	}
}

// Process decodes an upload, fixes its EXIF orientation, saves the
// re-encoded original plus a thumbnail, and returns their paths and
// metadata. The re-encode strips EXIF, which also drops GPS tags from
// guest-submitted photos.
func (p *Processor) Process(reader io.Reader, uuid, filename string) (*ProcessResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return nil, fmt.Errorf("unsupported image format")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	original, err := encodeImage(img, format, 95)
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	filePath, err := p.saveImageFile(filepath.Join("originals", uuid), filename, original)
	if err != nil {
		return nil, fmt.Errorf("saving original: %w", err)
	}

	thumbPath := ""
	if width > ThumbWidth || height > ThumbHeight {
		thumb := imaging.Fit(img, ThumbWidth, ThumbHeight, imaging.Lanczos)
		encoded, err := encodeImage(thumb, format, ThumbQuality)
		if err != nil {
			return nil, fmt.Errorf("encoding thumbnail: %w", err)
		}
		thumbPath, err = p.saveImageFile(filepath.Join("thumbs", uuid), filename, encoded)
		if err != nil {
			return nil, fmt.Errorf("saving thumbnail: %w", err)
		}
	}

	return &ProcessResult{
		Width:     width,
		Height:    height,
		MimeType:  formatToMimeType(format),
		Size:      int64(len(original)),
		FilePath:  filePath,
		ThumbPath: thumbPath,
	}, nil
}

// DetectMimeType detects the MIME type of image data.
func (p *Processor) DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

// IsSupportedType checks if a MIME type is supported for upload.
func (p *Processor) IsSupportedType(mimeType string) bool {
	return model.IsSupportedMimeType(mimeType)
}

// DeleteFiles removes the stored original and thumbnail for an upload.
func (p *Processor) DeleteFiles(uuid string) error {
	for _, sub := range []string{"originals", "thumbs"} {
		dir := filepath.Join(p.uploadDir, sub, uuid)
		if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting %s: %w", sub, err)
		}
	}
	return nil
}

// PublicURL maps a stored file path to its public URL under /uploads/.
func (p *Processor) PublicURL(filePath string) string {
	absBase, err := filepath.Abs(p.uploadDir)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(absBase, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/uploads/" + filepath.ToSlash(rel)
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation applies the EXIF orientation transform. Values 2-8
// cover the mirrored and rotated cases; anything else passes through.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage encodes an image with the given format and quality. WebP
// input is re-encoded as JPEG since pure Go has no WebP encoder.
func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// formatToMimeType converts format string to MIME type.
func formatToMimeType(format string) string {
	switch format {
	case "jpeg":
		return model.MimeTypeJPEG
	case "png":
		return model.MimeTypePNG
	case "gif":
		return model.MimeTypeGIF
	case "webp":
		return model.MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}

// saveImageFile writes image data under uploadDir, rejecting any path
// that would escape it.
func (p *Processor) saveImageFile(subDir, filename string, data []byte) (string, error) {
	safeFilename := filepath.Base(filename)
	if safeFilename == "." || safeFilename == ".." || safeFilename == "" {
		return "", fmt.Errorf("invalid filename")
	}

	cleanSubDir := filepath.Clean(subDir)
	if strings.Contains(cleanSubDir, "..") || filepath.IsAbs(cleanSubDir) {
		return "", fmt.Errorf("invalid subdirectory path")
	}

	absBase, err := filepath.Abs(p.uploadDir)
	if err != nil {
		return "", fmt.Errorf("resolving base directory: %w", err)
	}
	absTarget := filepath.Join(absBase, cleanSubDir)

	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path traversal detected")
	}

	if err := os.MkdirAll(absTarget, 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	filePath := filepath.Join(absTarget, safeFilename)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("saving image: %w", err)
	}
	return filePath, nil
}
