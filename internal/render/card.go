// Package render composes the PNG cards attached to block and payout notifications.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog"
	chart "github.com/wcharczuk/go-chart/v2"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"pool-block-alerts/internal/classify"
	"pool-block-alerts/internal/fetcher"
)

// Block card geometry.
const (
	BlockWidth  = 600
	BlockHeight = 300

	blockOverlayAlpha  = 180
	payoutOverlayAlpha = 160

	blockHeaderSize = 28
	blockBodySize   = 20
	blockLineStep   = 35
)

var textColor = color.White

// Options configure the renderer.
type Options struct {
	Coin             string
	PayoutBackground string
}

// Renderer draws notification cards.
type Renderer struct {
	opts   Options
	picker BackgroundPicker
	logger zerolog.Logger

	fontOnce sync.Once
	font     *truetype.Font
	fontErr  error
}

// New constructs a Renderer. The picker supplies block backgrounds per tier.
func New(opts Options, picker BackgroundPicker, logger zerolog.Logger) *Renderer {
	if opts.Coin == "" {
		opts.Coin = "BTC"
	}
	return &Renderer{
		opts:   opts,
		picker: picker,
		logger: logger.With().Str("component", "renderer").Logger(),
	}
}

// BlockCard renders the 600x300 card for a block of the given tier.
func (r *Renderer) BlockCard(ev fetcher.BlockEvent, tier classify.Tier) ([]byte, error) {
	if r.picker == nil {
		return nil, ErrNoBackground
	}
	path, err := r.picker.Pick(tier)
	if err != nil {
		return nil, err
	}
	bg, err := loadImage(path)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, BlockWidth, BlockHeight))
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), bg, bg.Bounds(), draw.Src, nil)
	shade(canvas, image.Rect(20, 10, 580, 270), blockOverlayAlpha)

	f, err := r.loadFont()
	if err != nil {
		return nil, err
	}
	if err := drawText(canvas, f, blockHeaderSize, 40, 30, tier.Header()); err != nil {
		return nil, err
	}
	y := 80
	for _, line := range BlockLines(ev, tier, r.opts.Coin) {
		if err := drawText(canvas, f, blockBodySize, 40, y, line); err != nil {
			return nil, err
		}
		y += blockLineStep
	}

	r.logger.Debug().Int64("height", ev.Height).Str("tier", string(tier)).Str("background", path).Msg("block card rendered")
	return encodePNG(canvas)
}

// PayoutCard renders the payout card over the configured background at its
// native size.
func (r *Renderer) PayoutCard(ev fetcher.PayoutEvent) ([]byte, error) {
	if r.opts.PayoutBackground == "" {
		return nil, fmt.Errorf("%w: payout background not configured", ErrNoBackground)
	}
	if _, err := os.Stat(r.opts.PayoutBackground); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBackground, r.opts.PayoutBackground)
	}
	bg, err := loadImage(r.opts.PayoutBackground)
	if err != nil {
		return nil, err
	}

	bounds := bg.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), bg, bounds.Min, draw.Src)
	shade(canvas, canvas.Bounds(), payoutOverlayAlpha)

	f, err := r.loadFont()
	if err != nil {
		return nil, err
	}

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x := int(w * 0.05)
	if err := drawText(canvas, f, h/8, x, int(h*0.1), "New Payout Detected!"); err != nil {
		return nil, err
	}
	y := h * 0.35
	for _, line := range PayoutLines(ev, r.opts.Coin) {
		if err := drawText(canvas, f, h/12, x, int(y), line); err != nil {
			return nil, err
		}
		y += h * 0.12
	}
	return encodePNG(canvas)
}

func (r *Renderer) loadFont() (*truetype.Font, error) {
	r.fontOnce.Do(func() {
		r.font, r.fontErr = chart.GetDefaultFont()
	})
	if r.fontErr != nil {
		return nil, fmt.Errorf("load card font: %w", r.fontErr)
	}
	return r.font, nil
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open background %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", path, err)
	}
	return img, nil
}

func shade(dst draw.Image, rect image.Rectangle, alpha uint8) {
	overlay := image.NewUniform(color.NRGBA{A: alpha})
	draw.Draw(dst, rect, overlay, image.Point{}, draw.Over)
}

// drawText places text with its top-left corner at (x, y).
func drawText(dst draw.Image, f *truetype.Font, size float64, x, y int, text string) error {
	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(size)
	c.SetHinting(font.HintingFull)
	c.SetClip(dst.Bounds())
	c.SetDst(dst)
	c.SetSrc(image.NewUniform(textColor))

	baseline := freetype.Pt(x, y+int(size))
	if _, err := c.DrawString(text, baseline); err != nil {
		return fmt.Errorf("draw text: %w", err)
	}
	return nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
