package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"

	"github.com/zombor/receipt-extractor/internal/expense"
)

// Raw is a decoded receipt image plus its dimensions
type Raw struct {
	Image  image.Image
	Width  int
	Height int
	// Format is the decoder that read the input ("jpeg", "png", "gif", "heic" or "pdf")
	Format string
}

// Load decodes receipt bytes into a Raw document.
// Any decode failure is reported as expense.ErrImageLoad.
func Load(data []byte, contentType string) (*Raw, error) {
	if len(data) == 0 {
		return nil, expense.NewError("LoadDocument", expense.ErrImageLoad, nil, "empty input")
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	var (
		img    image.Image
		format string
		err    error
	)
	switch {
	case mimeType == "application/pdf" || isPDF(data):
		img, err = renderPDF(data)
		format = "pdf"
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		img, err = heic.Decode(bytes.NewReader(data))
		format = "heic"
		if err != nil {
			err = fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	default:
		img, format, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decoding image (supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF): %w", err)
		}
	}
	if err != nil {
		return nil, expense.NewError("LoadDocument", expense.ErrImageLoad, err, mimeType)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, expense.NewError("LoadDocument", expense.ErrImageLoad, nil, "image has no pixels")
	}

	return &Raw{
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: format,
	}, nil
}

// renderPDF rasterises the first page; receipts are single page
func renderPDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// isHEICFormat checks for an ftyp box at offset 4 with a HEIC-family brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
