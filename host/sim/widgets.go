package sim

import (
	"fmt"

	"github.com/prodzpod/Hacknet-Pathfinder/host"
)

// Widgets is a headless widget toolkit. It records what each frame drew,
// and answers clicks queued with Click.
type Widgets struct {
	frame  []string
	clicks map[string]int
}

// NewWidgets returns a toolkit with no queued clicks.
func NewWidgets() *Widgets {
	return &Widgets{clicks: make(map[string]int)}
}

// Click queues a click on the next button or checkbox with the label.
func (w *Widgets) Click(label string) {
	w.clicks[label]++
}

// Frame returns the widgets drawn since the last Reset, one line each.
func (w *Widgets) Frame() []string {
	return w.frame
}

// Reset starts a new frame.
func (w *Widgets) Reset() {
	w.frame = nil
}

func (w *Widgets) take(label string) bool {
	if w.clicks[label] == 0 {
		return false
	}
	w.clicks[label]--
	return true
}

// Button implements host.Widgets.
func (w *Widgets) Button(id int, r host.Rect, label string) bool {
	w.frame = append(w.frame, fmt.Sprintf("button %d %q", id, label))
	return w.take(label)
}

// Checkbox implements host.Widgets.
func (w *Widgets) Checkbox(id int, r host.Rect, label string, value bool) bool {
	if w.take(label) {
		value = !value
	}
	w.frame = append(w.frame, fmt.Sprintf("checkbox %d %q %v", id, label, value))
	return value
}

// Label implements host.Widgets.
func (w *Widgets) Label(r host.Rect, text string) {
	w.frame = append(w.frame, fmt.Sprintf("label %q", text))
}

// ---------------------------------------------------------------------------
// Menus
// ---------------------------------------------------------------------------

// Screen is the menu the host shows.
type Screen int

const (
	ScreenMainMenu Screen = iota
	ScreenOptions
	ScreenSession
)

// OptionsMenu is the receiver of OptionsMenu.draw.
type OptionsMenu struct{}

func (OptionsMenu) Field(string) (any, bool) { return nil, false }

func (m OptionsMenu) Send(h *Host, selector string, _ []any) (any, error) {
	if selector == "drawOptions" {
		w := h.Widgets
		w.Label(host.Rect{X: 20, Y: 20, Width: 400, Height: 30}, "Options")
		w.Checkbox(100, host.Rect{X: 20, Y: 80, Width: 20, Height: 20}, "Fullscreen", false)
		if w.Button(101, host.Rect{X: 20, Y: 400, Width: 220, Height: 30}, "Back") {
			h.screen = ScreenMainMenu
		}
		return nil, nil
	}
	return nil, notUnderstood(m, selector)
}

// MainMenu is the receiver of MainMenu.draw.
type MainMenu struct{}

func (MainMenu) Field(string) (any, bool) { return nil, false }

func (m MainMenu) Send(h *Host, selector string, _ []any) (any, error) {
	if selector == "drawButtons" {
		w := h.Widgets
		if w.Button(1, host.Rect{X: 180, Y: 200, Width: 450, Height: 50}, "New Session") {
			h.screen = ScreenSession
		}
		if w.Button(2, host.Rect{X: 180, Y: 260, Width: 450, Height: 50}, "Settings") {
			h.screen = ScreenOptions
		}
		if w.Button(3, host.Rect{X: 180, Y: 320, Width: 450, Height: 50}, "Exit") {
			h.Exit()
		}
		return nil, nil
	}
	return nil, notUnderstood(m, selector)
}
