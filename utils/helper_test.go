package utils

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNumber(t *testing.T) {
	t.Setenv("DEFAULT_PHONE_REGION", "US")

	got, err := NormalizePhoneNumber("(650) 253-0000")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", got)

	got, err = NormalizePhoneNumber("  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NormalizePhoneNumber("12")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUniqueSlice(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, UniqueSlice([]int{3, 1, 3, 2, 1}))
	assert.Empty(t, UniqueSlice([]string{}))
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"Engagement Letter.pdf":  "Engagement_Letter.pdf",
		"../../etc/passwd":       "passwd",
		`C:\docs\brief (v2).docx`: "brief_v2.docx",
		"...":                    "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}

func TestThumbnailObjectKey(t *testing.T) {
	assert.Equal(t, "org/cases/4/thumbnails/abc-photo.png.jpg", ThumbnailObjectKey("org/cases/4/abc-photo.png"))
}

func TestDocumentObjectKeyLayout(t *testing.T) {
	key := DocumentObjectKey("org-1", 12, "my file.pdf")
	assert.Regexp(t, `^org-1/cases/12/[0-9a-f-]{36}-my_file\.pdf$`, key)
}

func TestDetectContentType(t *testing.T) {
	ct, err := DetectContentType("scan.pdf", []byte("%PDF-1.4 minimal"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)

	_, err = DetectContentType("run.exe", []byte{0x4d, 0x5a, 0x90, 0x00, 0x03})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMakeThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 400))
	for x := 0; x < 800; x++ {
		img.Set(x, x%400, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	thumb, err := MakeThumbnail(buf.Bytes())
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, decoded.Bounds().Dx())
	assert.Equal(t, 100, decoded.Bounds().Dy())
}

type paymentInput struct {
	Amount decimal.Decimal `json:"amount" validate:"dgt0"`
	Method string          `json:"method" validate:"required,oneof=CASH CARD"`
}

func TestValidateStruct(t *testing.T) {
	err := ValidateStruct(paymentInput{Amount: decimal.NewFromInt(10), Method: "CASH"})
	require.NoError(t, err)

	err = ValidateStruct(paymentInput{Amount: decimal.NewFromInt(-10), Method: "CHEQUE"})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "amount dgt0")
	assert.Contains(t, err.Error(), "method oneof")
}
