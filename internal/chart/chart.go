package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/model"
)

const (
	DefaultBars = 60

	width        = 900
	height       = 520
	margin       = 20
	volumeHeight = 110
	panelGap     = 12
)

var (
	background = color.RGBA{0x12, 0x16, 0x1c, 0xff}
	grid       = color.RGBA{0x2a, 0x30, 0x3a, 0xff}
	up         = color.RGBA{0x26, 0xa6, 0x9a, 0xff}
	down       = color.RGBA{0xef, 0x53, 0x50, 0xff}
	marker     = color.RGBA{0xff, 0xd5, 0x4f, 0xff}
)

// RenderCandles draws the last lastN bars of series as a candlestick chart with a
// volume panel underneath and returns it as PNG. The latest bar is marked.
func RenderCandles(series *model.EnrichedSeries, lastN int) ([]byte, error) {
	if series == nil || len(series.Bars) == 0 {
		return nil, errors.New("no bars to render")
	}
	if lastN <= 0 {
		lastN = DefaultBars
	}
	bars := make([]model.OHLCV, len(series.Bars))
	for i, b := range series.Bars {
		bars[i] = b.OHLCV
	}
	if len(bars) > lastN {
		bars = bars[len(bars)-lastN:]
	}

	high, low, err := calculator.CalculateRange(bars, lastN)
	if err != nil {
		return nil, fmt.Errorf("price range: %w", err)
	}
	if high == low {
		high, low = high+1, low-1
	}
	maxVol := calculator.CalculateMaxVolume(bars, lastN)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	priceTop := margin
	priceBottom := height - margin - volumeHeight - panelGap
	volTop := priceBottom + panelGap
	volBottom := height - margin

	for i := 0; i <= 4; i++ {
		y := priceTop + (priceBottom-priceTop)*i/4
		hline(img, margin, width-margin, y, grid)
	}
	hline(img, margin, width-margin, volBottom, grid)

	priceY := func(p float64) int {
		return priceBottom - int((p-low)/(high-low)*float64(priceBottom-priceTop))
	}

	slot := float64(width-2*margin) / float64(len(bars))
	bodyW := int(slot * 0.6)
	if bodyW < 1 {
		bodyW = 1
	}

	for i, b := range bars {
		cx := margin + int(slot*float64(i)+slot/2)
		c := up
		if b.Close < b.Open {
			c = down
		}

		vline(img, cx, priceY(b.High), priceY(b.Low), c)
		top, bottom := priceY(b.Open), priceY(b.Close)
		if top > bottom {
			top, bottom = bottom, top
		}
		fill(img, cx-bodyW/2, top, cx-bodyW/2+bodyW, bottom+1, c)

		if maxVol > 0 {
			h := int(b.Volume / maxVol * float64(volBottom-volTop))
			fill(img, cx-bodyW/2, volBottom-h, cx-bodyW/2+bodyW, volBottom, c)
		}

		if i == len(bars)-1 {
			vline(img, cx, priceTop, priceTop+6, marker)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func hline(img *image.RGBA, x0, x1, y int, c color.Color) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.Color) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}

func fill(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	draw.Draw(img, image.Rect(x0, y0, x1, y1), &image.Uniform{c}, image.Point{}, draw.Src)
}
