package options

import (
	"slices"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/config"
	"github.com/prodzpod/Hacknet-Pathfinder/event"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/patch"
	"github.com/prodzpod/Hacknet-Pathfinder/plugin"
)

// RoutineDraw is the host routine that draws the options screen.
const RoutineDraw = "OptionsMenu.draw"

// Button labels.
const (
	LabelEnter = "Pathfinder Options"
	LabelBack  = "Back to Options"
)

const (
	enterButtonID = 9000
	backButtonID  = 9001
	firstWidgetID = 9100
)

// Menu is the extension options menu. It is used from the host control
// goroutine only.
type Menu struct {
	log     commonlog.Logger
	cfg     *config.Config
	events  *event.Catalog
	widgets host.Widgets

	// persist writes the config file on save. Off for configs that were
	// never loaded from disk.
	persist bool

	tabs    []*Tab
	open    bool
	current string
	nextID  int
	handler event.HandlerID
}

// NewMenu creates the menu. It draws with widgets and keeps option values
// in cfg; a nil cfg keeps them in memory only.
func NewMenu(events *event.Catalog, widgets host.Widgets, cfg *config.Config) *Menu {
	m := &Menu{
		log:     logging.Get("options"),
		cfg:     cfg,
		events:  events,
		widgets: widgets,
		persist: cfg != nil && cfg.Dir != "",
		nextID:  firstWidgetID,
	}
	if m.cfg == nil {
		m.cfg = config.Default()
	}
	m.handler = events.OptionsDraw.AddHandler(plugin.Handle{}, 0, m.draw)
	return m
}

func (m *Menu) newID() int {
	id := m.nextID
	m.nextID++
	return id
}

// GetOrRegisterTab returns the tab with the name, creating it for owner if
// it does not exist.
func (m *Menu) GetOrRegisterTab(owner plugin.Handle, name string) *Tab {
	if t := m.Tab(name); t != nil {
		return t
	}
	t := &Tab{Name: name, Owner: owner, menu: m, buttonID: m.newID()}
	m.tabs = append(m.tabs, t)
	return t
}

// Tab returns the tab with the name, or nil.
func (m *Menu) Tab(name string) *Tab {
	for _, t := range m.tabs {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Tabs returns every tab in registration order.
func (m *Menu) Tabs() []*Tab {
	return m.tabs
}

// RemoveTab removes the tab with the name.
func (m *Menu) RemoveTab(name string) bool {
	n := len(m.tabs)
	m.tabs = slices.DeleteFunc(m.tabs, func(t *Tab) bool { return t.Name == name })
	if m.current == name {
		m.current = ""
	}
	return len(m.tabs) != n
}

// RemoveOwner removes the tabs of owner and returns how many were removed.
func (m *Menu) RemoveOwner(owner plugin.Handle) int {
	n := 0
	m.tabs = slices.DeleteFunc(m.tabs, func(t *Tab) bool {
		if t.Owner != owner {
			return false
		}
		if m.current == t.Name {
			m.current = ""
		}
		n++
		return true
	})
	return n
}

// IsOpen reports whether the extension menu replaces the host's options
// screen.
func (m *Menu) IsOpen() bool {
	return m.open
}

// Open switches the options screen to the extension menu.
func (m *Menu) Open() {
	m.open = true
}

// Current returns the name of the selected tab.
func (m *Menu) Current() string {
	return m.current
}

// Close leaves the menu, stores every option value and publishes
// OptionsSave.
func (m *Menu) Close() error {
	m.open = false
	m.current = ""
	for _, t := range m.tabs {
		for _, o := range t.options {
			m.cfg.SetOption(t.Name, o.Key(), o.Value())
		}
	}
	m.events.OptionsSave.Publish(&event.OptionsSave{})
	if !m.persist {
		return nil
	}
	return m.cfg.Save()
}

// Detach removes the menu's draw handler.
func (m *Menu) Detach() {
	m.events.OptionsDraw.RemoveHandler(m.handler)
}

func (m *Menu) draw(ev *event.OptionsDraw) {
	if !m.open || ev.Handled {
		return
	}
	ev.Handled = true
	ev.StopPropagation()
	w := ev.Widgets

	if w.Button(backButtonID, host.Rect{X: 10, Y: 10, Width: 220, Height: 54}, LabelBack) {
		if err := m.Close(); err != nil {
			m.log.Error("cannot save options", "error", err)
		}
		return
	}

	x := 10
	for _, t := range m.tabs {
		if m.current == "" {
			m.current = t.Name
		}
		if w.Button(t.buttonID, host.Rect{X: x, Y: 70, Width: 128, Height: 20}, t.Name) {
			m.current = t.Name
			break
		}
		x += 128 + 10
		if m.current == t.Name {
			t.draw(w)
		}
	}
}

// ---------------------------------------------------------------------------
// Sites
// ---------------------------------------------------------------------------

// Sites returns the injection sites of the options screen: a prefix that
// hands drawing to OptionsDraw handlers and skips the host body when one
// of them drew, and the button that opens the menu.
func (m *Menu) Sites() []patch.Site {
	return []patch.Site{
		{
			ID:          "options.override",
			Routine:     RoutineDraw,
			Policy:      patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "optionsDraw", Argc: 1, Results: 1, Fn: m.optionsDraw}},
			Apply:       overrideSite,
		},
		{
			ID:          "options.enter",
			Routine:     RoutineDraw,
			Policy:      patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "optionsButton", Argc: 1, Fn: m.optionsButton}},
			Apply:       enterSite,
		},
	}
}

func overrideSite(c *patch.Cursor) error {
	if err := c.Goto(0, patch.AfterLabel); err != nil {
		return err
	}
	body := c.Next()
	c.EmitLoadSelf()
	c.EmitTrampoline("optionsDraw", 1, 1)
	c.EmitBranch(bytecode.OpJumpFalse, body)
	c.Emit(bytecode.OpReturnSelf)
	return nil
}

func enterSite(c *patch.Cursor) error {
	if err := c.GotoNext(patch.AfterLabel, patch.MatchGlobal("GuiData"), patch.MatchSend("endDraw")); err != nil {
		return err
	}
	c.EmitLoadSelf()
	c.EmitTrampoline("optionsButton", 1, 0)
	return nil
}

func (m *Menu) optionsDraw([]any) ([]any, error) {
	ev := m.events.OptionsDraw.Publish(&event.OptionsDraw{Widgets: m.widgets})
	return []any{ev.Handled}, nil
}

func (m *Menu) optionsButton([]any) ([]any, error) {
	if m.widgets.Button(enterButtonID, host.Rect{X: 240, Y: 10, Width: 220, Height: 54}, LabelEnter) {
		m.Open()
	}
	return nil, nil
}
