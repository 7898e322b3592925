// Package options adds an extension options menu to the host's options
// screen. Plugins own tabs of options; values persist in the [options.<tab>]
// tables of pathfinder.toml.
package options

import (
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/plugin"
)

// Option is one setting on a tab.
type Option interface {
	// Key names the value in the tab's config table.
	Key() string
	Height() int
	Draw(w host.Widgets, id, x, y int)
	Value() any
	// Load restores a persisted value. Values of the wrong type are
	// ignored.
	Load(v any)
}

// Checkbox is a boolean option.
type Checkbox struct {
	Label   string
	Name    string
	Checked bool
}

// NewCheckbox returns a checkbox stored under key.
func NewCheckbox(key, label string, checked bool) *Checkbox {
	return &Checkbox{Name: key, Label: label, Checked: checked}
}

func (c *Checkbox) Key() string {
	if c.Name == "" {
		return c.Label
	}
	return c.Name
}

func (c *Checkbox) Height() int { return 20 }

func (c *Checkbox) Draw(w host.Widgets, id, x, y int) {
	c.Checked = w.Checkbox(id, host.Rect{X: x, Y: y, Width: 20, Height: 20}, c.Label, c.Checked)
}

func (c *Checkbox) Value() any { return c.Checked }

func (c *Checkbox) Load(v any) {
	if b, ok := v.(bool); ok {
		c.Checked = b
	}
}

// Tab is a page of options owned by one plugin.
type Tab struct {
	Name  string
	Owner plugin.Handle

	menu     *Menu
	buttonID int
	options  []Option
	ids      []int
	onDraw   DrawFunc
}

// DrawFunc draws custom content of a tab. x and y are the position below
// the tab's last option.
type DrawFunc func(w host.Widgets, x, y int)

// Add appends options to the tab and restores their persisted values.
func (t *Tab) Add(opts ...Option) *Tab {
	for _, o := range opts {
		if v, ok := t.menu.cfg.Option(t.Name, o.Key()); ok {
			o.Load(v)
		}
		t.options = append(t.options, o)
		t.ids = append(t.ids, t.menu.newID())
	}
	return t
}

// OnDraw sets fn to run each frame the tab is shown, after its options.
func (t *Tab) OnDraw(fn DrawFunc) *Tab {
	t.onDraw = fn
	return t
}

// Options returns the tab's options in order.
func (t *Tab) Options() []Option {
	return t.options
}

func (t *Tab) draw(w host.Widgets) {
	x, y := 80, 110
	for i, o := range t.options {
		o.Draw(w, t.ids[i], x, y)
		y += 10 + o.Height()
	}
	if t.onDraw != nil {
		t.onDraw(w, x, y)
	}
}
