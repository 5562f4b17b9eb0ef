package render

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pool-block-alerts/internal/classify"
)

// ErrNoBackground is returned when a tier has no usable background image.
var ErrNoBackground = errors.New("render: no background available")

// BackgroundPicker selects a background image path for a tier.
type BackgroundPicker interface {
	Pick(tier classify.Tier) (string, error)
}

// DirPicker picks uniformly among the .png/.jpg files in {Dir}/{tier}.
type DirPicker struct {
	Dir  string
	intn func(n int) int
}

// NewDirPicker returns a picker rooted at dir.
func NewDirPicker(dir string) *DirPicker {
	return &DirPicker{Dir: dir, intn: rand.IntN}
}

// Pick implements BackgroundPicker.
func (p *DirPicker) Pick(tier classify.Tier) (string, error) {
	folder := filepath.Join(p.Dir, string(tier))
	entries, err := os.ReadDir(folder)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: missing folder %s", ErrNoBackground, folder)
	}
	if err != nil {
		return "", fmt.Errorf("read background folder %s: %w", folder, err)
	}

	images := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		images = append(images, e.Name())
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%w: no images in %s", ErrNoBackground, folder)
	}
	sort.Strings(images)

	return filepath.Join(folder, images[p.intn(len(images))]), nil
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".png" || ext == ".jpg"
}

// StaticPicker always returns the same path; handy for tests and single-image setups.
type StaticPicker string

// Pick implements BackgroundPicker.
func (s StaticPicker) Pick(classify.Tier) (string, error) {
	if s == "" {
		return "", ErrNoBackground
	}
	return string(s), nil
}

var (
	_ BackgroundPicker = (*DirPicker)(nil)
	_ BackgroundPicker = StaticPicker("")
)
