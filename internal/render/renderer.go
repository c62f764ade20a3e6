// Package render draws game snapshots with gg. It backs the PNG frame
// endpoint and the headless runner's frame dumps; it is a debugging view,
// not the game's art.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/pveneroso/gogoame-2/internal/catalog"
	"github.com/pveneroso/gogoame-2/internal/game"
)

// CatalogSource supplies the active catalog; *game.Engine satisfies it.
type CatalogSource interface {
	Catalog() *catalog.Catalog
}

// Options configures a Renderer.
type Options struct {
	// Scale multiplies the playfield size; 0.5 gives a 360x640 frame for
	// the default world.
	Scale float64

	// Symbols colors balls by type and draws their mandala outline.
	// If nil, balls are shaded by level only.
	Symbols CatalogSource

	// HideHUD skips the score/lives/corruption text.
	HideHUD bool
}

// Renderer draws snapshots. One drawing context is reused, so concurrent
// calls are serialized.
type Renderer struct {
	opts Options

	mu     sync.Mutex
	dc     *gg.Context
	width  float64
	height float64
}

// NewRenderer creates a renderer. The context is allocated on first use,
// sized from the first snapshot.
func NewRenderer(opts Options) *Renderer {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	return &Renderer{opts: opts}
}

// Palette
var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorPool       = color.RGBA{88, 24, 110, 200}
	colorPoolRising = color.RGBA{150, 20, 60, 220}
	colorSlotEmpty  = color.RGBA{255, 255, 255, 50}
	colorSlotFull   = color.RGBA{255, 215, 0, 180}
	colorCurveDraw  = color.RGBA{0, 212, 255, 200}
	colorCurveLive  = color.RGBA{120, 255, 200, 220}
	colorDanger     = color.RGBA{255, 60, 60, 255}
	colorCaptured   = color.RGBA{0, 212, 255, 255}
	colorMetal      = color.RGBA{200, 205, 215, 255}
	colorHUD        = color.RGBA{255, 255, 255, 255}
	colorHUDDim     = color.RGBA{160, 165, 180, 255}

	typeColors = map[catalog.TypeTag]color.RGBA{
		catalog.TypeA:        {235, 87, 87, 255},
		catalog.TypeB:        {86, 156, 240, 255},
		catalog.TypeC:        {90, 200, 120, 255},
		catalog.TypeD:        {240, 200, 80, 255},
		catalog.TypeWildcard: {240, 240, 240, 255},
		catalog.TypeVoid:     {20, 20, 20, 255},
		catalog.TypeLife:     {255, 130, 200, 255},
		catalog.TypeLotus:    {255, 215, 0, 255},
	}
)

// context returns a cleared drawing context sized for snap. Caller holds r.mu.
func (r *Renderer) context(snap *game.GameSnapshot) *gg.Context {
	w, h := snap.Width, snap.Height
	if w <= 0 || h <= 0 {
		w, h = 720, 1280
	}
	if r.dc == nil || r.width != w || r.height != h {
		r.dc = gg.NewContext(int(math.Ceil(w*r.opts.Scale)), int(math.Ceil(h*r.opts.Scale)))
		r.width, r.height = w, h
	}

	dc := r.dc
	dc.Identity()
	dc.SetColor(colorBackground)
	dc.Clear()
	dc.Scale(r.opts.Scale, r.opts.Scale)
	return dc
}

// Draw renders snap and calls fn with the finished image while the context
// is still locked. The image must not be retained after fn returns.
func (r *Renderer) Draw(snap *game.GameSnapshot, fn func(image.Image) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := r.context(snap)

	var cat *catalog.Catalog
	if r.opts.Symbols != nil {
		cat = r.opts.Symbols.Catalog()
	}

	r.drawPool(dc, snap)
	r.drawSlots(dc, snap.Slots, snap.Width)
	r.drawTrails(dc, snap.Balls, cat)
	if snap.Curve != nil {
		r.drawCurve(dc, snap.Curve)
	}
	for i := range snap.Balls {
		r.drawBall(dc, &snap.Balls[i], cat)
	}
	if !r.opts.HideHUD {
		dc.Identity()
		r.drawHUD(dc, snap)
	}

	return fn(dc.Image())
}

// EncodePNG renders snap as PNG into w.
func (r *Renderer) EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	return r.Draw(snap, func(image.Image) error {
		return r.dc.EncodePNG(w)
	})
}

// SavePNG renders snap to a PNG file.
func (r *Renderer) SavePNG(path string, snap *game.GameSnapshot) error {
	return r.Draw(snap, func(image.Image) error {
		return r.dc.SavePNG(path)
	})
}

func (r *Renderer) drawPool(dc *gg.Context, snap *game.GameSnapshot) {
	if snap.Pool.SurfaceY >= snap.Height {
		return
	}
	c := colorPool
	if snap.Pool.Rising {
		c = colorPoolRising
	}
	dc.SetColor(c)
	dc.DrawRectangle(0, snap.Pool.SurfaceY, snap.Width, snap.Height-snap.Pool.SurfaceY)
	dc.Fill()
}

func (r *Renderer) drawSlots(dc *gg.Context, slots []game.SlotSnapshot, width float64) {
	radius := width * 0.04
	dc.SetLineWidth(2)
	for _, s := range slots {
		if s.Occupied {
			dc.SetColor(colorSlotFull)
		} else {
			dc.SetColor(colorSlotEmpty)
		}
		dc.DrawCircle(s.X, s.Y, radius)
		dc.Stroke()
	}
}

// drawTrails draws each ball's recent path, fading towards the oldest point.
func (r *Renderer) drawTrails(dc *gg.Context, balls []game.BallSnapshot, cat *catalog.Catalog) {
	for i := range balls {
		b := &balls[i]
		n := len(b.Trail)
		if n < 2 {
			continue
		}

		c := ballColor(b, cat)
		for j := 0; j < n-1; j++ {
			p1, p2 := b.Trail[j], b.Trail[j+1]
			c.A = uint8(120 * float64(j+1) / float64(n))
			dc.SetColor(c)
			dc.SetLineWidth(math.Max(1, b.Radius*0.4*float64(j+1)/float64(n)))
			dc.DrawLine(p1.X, p1.Y, p2.X, p2.Y)
			dc.Stroke()
		}
	}
}

func (r *Renderer) drawCurve(dc *gg.Context, curve *game.CurveSnapshot) {
	if len(curve.Points) < 2 {
		return
	}
	if curve.Phase == "drawing" {
		dc.SetColor(colorCurveDraw)
	} else {
		dc.SetColor(colorCurveLive)
	}
	dc.SetLineWidth(4)
	dc.SetLineCapRound()
	dc.MoveTo(curve.Points[0].X, curve.Points[0].Y)
	for _, p := range curve.Points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()

	end := curve.Points[len(curve.Points)-1]
	dc.DrawCircle(end.X, end.Y, 6)
	dc.Fill()
}

func (r *Renderer) drawBall(dc *gg.Context, b *game.BallSnapshot, cat *catalog.Catalog) {
	c := ballColor(b, cat)
	dc.SetColor(c)
	dc.DrawCircle(b.X, b.Y, b.Radius)
	dc.Fill()

	// Mandala: a star with one point per numPoints, inscribed in the ball
	points := b.Level + 2
	metallic := b.Metallic
	if cat != nil {
		if m, ok := cat.Mandala(b.SymbolID); ok {
			points = m.NumPoints
		}
	}
	if points >= 3 && b.Radius >= 4 {
		dc.SetColor(color.RGBA{0, 0, 0, 90})
		dc.SetLineWidth(1)
		drawStar(dc, b.X, b.Y, b.Radius*0.75, b.Radius*0.35, points)
		dc.Stroke()
	}

	switch {
	case b.Dangerous:
		dc.SetColor(colorDanger)
		dc.SetLineWidth(3)
	case b.Captured:
		dc.SetColor(colorCaptured)
		dc.SetLineWidth(2)
	case metallic:
		dc.SetColor(colorMetal)
		dc.SetLineWidth(2)
	default:
		return
	}
	dc.DrawCircle(b.X, b.Y, b.Radius+1.5)
	dc.Stroke()
}

// drawStar traces a closed star path with n outer points.
func drawStar(dc *gg.Context, x, y, outer, inner float64, n int) {
	step := math.Pi / float64(n)
	for i := 0; i < 2*n; i++ {
		rad := outer
		if i%2 == 1 {
			rad = inner
		}
		a := float64(i)*step - math.Pi/2
		px, py := x+rad*math.Cos(a), y+rad*math.Sin(a)
		if i == 0 {
			dc.MoveTo(px, py)
		} else {
			dc.LineTo(px, py)
		}
	}
	dc.ClosePath()
}

// ballColor picks the type color, darkened for low levels so merges read
// as brighter.
func ballColor(b *game.BallSnapshot, cat *catalog.Catalog) color.RGBA {
	base := color.RGBA{180, 180, 190, 255}
	if cat != nil {
		if def, ok := cat.Lookup(b.SymbolID); ok {
			if c, ok := typeColors[def.Type]; ok {
				base = c
			}
			if !def.Type.IsNormal() {
				return base
			}
		}
	}

	shade := 0.55 + 0.45*math.Min(1, float64(b.Level)/10)
	return color.RGBA{
		R: uint8(float64(base.R) * shade),
		G: uint8(float64(base.G) * shade),
		B: uint8(float64(base.B) * shade),
		A: 255,
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.GameSnapshot) {
	dc.SetFontFace(basicfont.Face7x13)

	w := float64(dc.Width())
	h := float64(dc.Height())
	margin := 10.0

	dc.SetColor(color.RGBA{0, 0, 0, 140})
	dc.DrawRectangle(0, 0, w, 46)
	dc.Fill()

	dc.SetColor(colorHUD)
	dc.DrawString(fmt.Sprintf("SCORE %d", snap.Score), margin, 18)
	dc.DrawStringAnchored(fmt.Sprintf("LIVES %d", snap.Lives), w-margin, 18, 1, 0)

	dc.SetColor(colorHUDDim)
	dc.DrawString(fmt.Sprintf("LV %d  BALLS %d", snap.HighestLevel, snap.BallCount), margin, 36)
	if snap.Pool.Max > 0 {
		dc.DrawStringAnchored(fmt.Sprintf("CORRUPTION %.0f%%", 100*snap.Pool.Level/snap.Pool.Max), w-margin, 36, 1, 0)
	}

	switch {
	case snap.GameOver:
		banner(dc, w, h, "GAME OVER", snap.Reason)
	case snap.Paused:
		banner(dc, w, h, "PAUSED", "")
	case snap.Lotus == "playing":
		banner(dc, w, h, "LOTUS", "")
	}
}

func banner(dc *gg.Context, w, h float64, title, sub string) {
	dc.SetColor(color.RGBA{18, 18, 24, 220})
	dc.DrawRoundedRectangle(w*0.15, h/2-30, w*0.7, 60, 6)
	dc.Fill()

	dc.SetColor(colorHUD)
	dc.DrawStringAnchored(title, w/2, h/2-6, 0.5, 0.5)
	if sub != "" {
		dc.SetColor(colorHUDDim)
		dc.DrawStringAnchored(sub, w/2, h/2+12, 0.5, 0.5)
	}
}
