package embedding

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestImageFormat(t *testing.T) {
	img := createTestImage(10, 10, color.White)

	if f, err := ImageFormat(encodeJPEG(img)); err != nil || f != "jpeg" {
		t.Errorf("ImageFormat(jpeg) = %q, %v", f, err)
	}
	if f, err := ImageFormat(encodePNG(img)); err != nil || f != "png" {
		t.Errorf("ImageFormat(png) = %q, %v", f, err)
	}
	if _, err := ImageFormat([]byte("not an image")); err == nil {
		t.Error("expected error for garbage data")
	}
}

func TestPrepareReference_SmallJPEGUnchanged(t *testing.T) {
	data := encodeJPEG(createTestImage(100, 50, color.White))

	out, err := PrepareReference(data, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("expected small JPEG to pass through unchanged")
	}
}

func TestPrepareReference_GIFConvertedToJPEG(t *testing.T) {
	var buf bytes.Buffer
	gif.Encode(&buf, createTestImage(20, 20, color.Black), nil)

	out, err := PrepareReference(buf.Bytes(), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, _ := ImageFormat(out); f != "jpeg" {
		t.Errorf("expected jpeg output, got %q", f)
	}
}

func TestResizeImage_Landscape(t *testing.T) {
	data := encodeJPEG(createTestImage(2000, 1000, color.White))

	resized, err := ResizeImage(data, 500)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode resized image: %v", err)
	}
	if decoded.Bounds().Dx() != 500 || decoded.Bounds().Dy() != 250 {
		t.Errorf("expected 500x250, got %dx%d", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestResizeImage_Portrait(t *testing.T) {
	data := encodePNG(createTestImage(1000, 2000, color.White))

	resized, err := ResizeImage(data, 500)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode resized image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg format, got %s", format)
	}
	if decoded.Bounds().Dx() != 250 || decoded.Bounds().Dy() != 500 {
		t.Errorf("expected 250x500, got %dx%d", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestResizeImage_InvalidData(t *testing.T) {
	if _, err := ResizeImage([]byte("garbage"), 100); err == nil {
		t.Error("expected error for invalid image data")
	}
}
