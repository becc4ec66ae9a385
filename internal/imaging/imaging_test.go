package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDataURLNoComma(t *testing.T) {
	if _, err := DecodeDataURL("not-a-data-url"); !errors.Is(err, ErrMalformedDataURL) {
		t.Fatalf("want ErrMalformedDataURL, got %v", err)
	}
}

func TestDecodeDataURLInvalidBase64(t *testing.T) {
	cases := []string{
		"data:image/png;base64,!!!not-base64!!!",
		"data:image/png;base64,%%",
		"prefix,====",
	}
	for _, c := range cases {
		if _, err := DecodeDataURL(c); !errors.Is(err, ErrInvalidBase64) {
			t.Fatalf("DecodeDataURL(%q): want ErrInvalidBase64, got %v", c, err)
		}
	}
}

func TestDecodeDataURLNotAnImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("plain text, definitely no image"))
	if _, err := DecodeDataURL("data:text/plain;base64," + payload); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("want ErrUnsupportedImage, got %v", err)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	raw := pngBytes(t)
	decoded, err := DecodeDataURL(EncodeDataURL(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatal("round-tripped payload differs from original PNG")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "images")
	raw := pngBytes(t)

	name, err := Save(raw, dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Fatalf("expected .png filename, got %q", name)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}

	back, err := Load(dir, name)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(back, raw) {
		t.Fatal("loaded bytes differ from saved bytes")
	}
}

func TestSaveUniqueNames(t *testing.T) {
	dir := t.TempDir()
	raw := pngBytes(t)
	a, err := Save(raw, dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := Save(raw, dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct filenames, got %q twice", a)
	}
}
