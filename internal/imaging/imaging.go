// Package imaging decodes browser canvas data URLs and stores PNG files
// under collision-free names.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrMalformedDataURL = errors.New("malformed data URL")
	ErrInvalidBase64    = errors.New("invalid base64")
	ErrUnsupportedImage = errors.New("unsupported image encoding")
)

// DecodeDataURL разбирает "data:image/png;base64,<payload>" и возвращает
// сырые байты изображения. Принимает любой префикс до первой запятой.
func DecodeDataURL(text string) ([]byte, error) {
	_, payload, ok := strings.Cut(text, ",")
	if !ok {
		return nil, ErrMalformedDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return raw, nil
}

// EncodeDataURL — обратная операция (используется клиентами и тестами).
func EncodeDataURL(raw []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
}

// Save записывает изображение под уникальным именем <uuid>.png,
// создавая директорию при необходимости. Возвращает имя файла.
func Save(raw []byte, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir %s: %w", dir, err)
	}
	name := uuid.NewString() + ".png"
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", name, err)
	}
	return name, nil
}

// Load читает сохранённый файл обратно (для фоновой генерации).
func Load(dir, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, filepath.Base(name)))
}

// Remove удаляет сохранённый файл (например, при проигранной гонке записи).
func Remove(dir, name string) error {
	return os.Remove(filepath.Join(dir, filepath.Base(name)))
}
