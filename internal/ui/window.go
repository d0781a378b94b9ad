package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

// KeyEscape is returned by WaitKey for the escape key
const KeyEscape = 27

var (
	textColor    = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	outlineColor = color.RGBA{R: 255, G: 200, B: 0, A: 255}
)

// Window shows rendered frames during playback
type Window struct {
	window     *gocv.Window
	name       string
	lastFrame  time.Time
	frameCount int
	fps        float64
}

// NewWindow creates a new preview window sized for the video
func NewWindow(name string, width, height int) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(width, height)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		lastFrame: time.Now(),
	}
}

// Show displays a copy of frame with the face outline and a status line
func (w *Window) Show(frame gocv.Mat, outline []image.Point, status string) {
	w.frameCount++
	now := time.Now()

	// Calculate FPS every second
	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}

	view := frame.Clone()
	defer view.Close()

	if len(outline) > 2 {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{outline})
		gocv.Polylines(&view, pv, true, outlineColor, 1)
		pv.Close()
	}

	text := fmt.Sprintf("FPS: %.1f  %s", w.fps, status)
	gocv.PutText(&view, text, image.Pt(10, 30),
		gocv.FontHersheyPlain, 1.5, textColor, 2)

	w.window.IMShow(view)
}

// WaitKey waits for key press, returns key code or -1
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}
