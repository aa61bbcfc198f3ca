// Package interactive runs the fullscreen 3D placeholder scene with termloop.
// A Scene implements tea.ExecCommand so the chat TUI can hand the terminal over to it.
package interactive

import (
	"io"
	"math"

	tl "github.com/JoelOtter/termloop"
	"go.uber.org/zap"
)

// Title is shown at the top of the scene
const Title = "3D Interactive Mode"

// Scene manages the termloop game instance
type Scene struct {
	fps    float64
	logger *zap.Logger
}

// NewScene creates a scene. It does nothing until Run.
func NewScene(logger *zap.Logger) *Scene {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scene{fps: 30, logger: logger.Named("interactive")}
}

// Run takes over the terminal until ESC is pressed
func (s *Scene) Run() error {
	game := tl.NewGame()
	game.Screen().SetFps(s.fps)
	game.SetEndKey(tl.KeyEsc)

	level := tl.NewBaseLevel(tl.Cell{
		Bg: tl.ColorBlack,
		Fg: tl.ColorWhite,
		Ch: ' ',
	})
	level.AddEntity(NewHeader())
	level.AddEntity(NewWireframe())
	game.Screen().SetLevel(level)

	s.logger.Debug("scene started")
	game.Start()
	s.logger.Debug("scene ended")
	return nil
}

// termloop talks to the terminal directly, so the streams tea.Exec hands over are unused.

func (s *Scene) SetStdin(io.Reader)  {}
func (s *Scene) SetStdout(io.Writer) {}
func (s *Scene) SetStderr(io.Writer) {}

// Header draws the title bar and the exit hint
type Header struct{}

// NewHeader creates the title bar entity
func NewHeader() *Header {
	return &Header{}
}

// Draw draws the title centered on the first row
func (h *Header) Draw(screen *tl.Screen) {
	width, height := screen.Size()
	renderText(screen, (width-len(Title))/2, 0, Title, tl.ColorWhite|tl.AttrBold)
	hint := "ESC to return to chat"
	renderText(screen, (width-len(hint))/2, height-1, hint, tl.ColorYellow)
}

// Tick does nothing for the header
func (h *Header) Tick(event tl.Event) {}

// Wireframe is a slowly rotating cube standing in for real 3D content
type Wireframe struct {
	angle float64
	speed float64 // radians per second
}

// NewWireframe creates the placeholder cube
func NewWireframe() *Wireframe {
	return &Wireframe{speed: 0.8}
}

// Draw projects the cube into the area below the header
func (wf *Wireframe) Draw(screen *tl.Screen) {
	wf.angle += wf.speed * screen.TimeDelta()

	width, height := screen.Size()
	for _, p := range CubePoints(wf.angle, width, height-2) {
		screen.RenderCell(p.X, p.Y+1, &tl.Cell{Fg: tl.ColorCyan, Ch: '•'})
	}
}

// Tick handles input. Arrow keys change the rotation speed.
func (wf *Wireframe) Tick(event tl.Event) {
	if event.Type != tl.EventKey {
		return
	}
	switch event.Key {
	case tl.KeyArrowRight:
		wf.speed += 0.2
	case tl.KeyArrowLeft:
		wf.speed -= 0.2
	}
}

func renderText(screen *tl.Screen, x, y int, text string, fg tl.Attr) {
	for i, ch := range text {
		screen.RenderCell(x+i, y, &tl.Cell{Fg: fg, Ch: ch})
	}
}

// Point is a terminal cell
type Point struct {
	X, Y int
}

var cubeVertices = [8][3]float64{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

var cubeEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// CubePoints returns the cells covered by a unit cube rotated by angle around the Y and X
// axes and projected into a width x height area. Terminal cells are about twice as tall as
// they are wide, so x is stretched.
func CubePoints(angle float64, width, height int) []Point {
	if width <= 0 || height <= 0 {
		return nil
	}

	scale := math.Min(float64(width)/4, float64(height)/2) * 0.8
	cx, cy := float64(width)/2, float64(height)/2

	var projected [8]Point
	sinY, cosY := math.Sincos(angle)
	sinX, cosX := math.Sincos(angle * 0.6)
	for i, v := range cubeVertices {
		x := v[0]*cosY + v[2]*sinY
		z := -v[0]*sinY + v[2]*cosY
		y := v[1]*cosX - z*sinX
		z = v[1]*sinX + z*cosX

		perspective := 3 / (z + 4)
		projected[i] = Point{
			X: int(math.Round(cx + x*perspective*scale*2)),
			Y: int(math.Round(cy + y*perspective*scale)),
		}
	}

	seen := make(map[Point]struct{})
	var points []Point
	for _, e := range cubeEdges {
		for _, p := range line(projected[e[0]], projected[e[1]]) {
			if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			points = append(points, p)
		}
	}
	return points
}

// line rasterizes the segment from a to b (Bresenham)
func line(a, b Point) []Point {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	points := []Point{}
	err := dx + dy
	for {
		points = append(points, a)
		if a == b {
			return points
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			a.X += sx
		}
		if e2 <= dx {
			err += dx
			a.Y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
