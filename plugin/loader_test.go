package plugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/prodzpod/Hacknet-Pathfinder/patch"
)

type fakeApplier struct {
	modules []string
	fail    error
}

func (a *fakeApplier) Apply(module string, sites []patch.Site) error {
	if a.fail != nil {
		return a.fail
	}
	a.modules = append(a.modules, module)
	return nil
}

type testPlugin struct {
	info     Info
	loadErr  error
	panics   bool
	sites    []patch.Site
	events   *[]string
	unloaded int
}

func (p *testPlugin) Info() Info { return p.info }

func (p *testPlugin) Load(ctx *Context) error {
	if p.panics {
		panic("boom")
	}
	if p.events != nil {
		guid := p.info.GUID
		ctx.OnUnload(func() { *p.events = append(*p.events, "sweep1 "+guid) })
		ctx.OnUnload(func() { *p.events = append(*p.events, "sweep2 "+guid) })
		*p.events = append(*p.events, "load "+guid)
	}
	ctx.AddSites(p.sites...)
	return p.loadErr
}

func (p *testPlugin) Unload(ctx *Context) error {
	p.unloaded++
	if p.events != nil {
		*p.events = append(*p.events, "unload "+p.info.GUID)
	}
	return nil
}

func newPlugin(guid string, deps ...Dependency) *testPlugin {
	return &testPlugin{info: Info{GUID: guid, Name: guid, Version: "1.0.0", Dependencies: deps}}
}

func guids(ps []Plugin) []string {
	var out []string
	for _, p := range ps {
		out = append(out, p.Info().GUID)
	}
	return out
}

func TestOrder(t *testing.T) {
	l := NewLoader(nil, nil)
	a := newPlugin("a", Dependency{GUID: "b"})
	b := newPlugin("b", Dependency{GUID: "c", Soft: true})
	c := newPlugin("c")
	d := newPlugin("d", Dependency{GUID: "external"})

	order, err := l.Order([]Plugin{a, b, c, d})
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if diff := cmp.Diff([]string{"c", "b", "a", "d"}, guids(order)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderErrors(t *testing.T) {
	tests := []struct {
		name    string
		plugins []Plugin
		want    error
	}{
		{"cycle", []Plugin{newPlugin("a", Dependency{GUID: "b"}), newPlugin("b", Dependency{GUID: "a"})}, ErrDependencyCycle},
		{"duplicate", []Plugin{newPlugin("a"), newPlugin("a")}, ErrDuplicatePlugin},
		{"no guid", []Plugin{newPlugin("")}, ErrInvalidPlugin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(nil, nil).Order(tt.plugins)
			if !errors.Is(err, tt.want) {
				t.Errorf("Order() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadAllSkipsDependentsOfFailures(t *testing.T) {
	apply := &fakeApplier{}
	l := NewLoader(apply, nil)
	base := newPlugin("base")
	base.loadErr = errors.New("no assets")
	child := newPlugin("child", Dependency{GUID: "base"})
	soft := newPlugin("soft", Dependency{GUID: "base", Soft: true})
	other := newPlugin("other")
	other.sites = []patch.Site{{ID: "x", Routine: "OS.update"}}

	err := l.LoadAll(base, child, soft, other)
	if err == nil {
		t.Fatal("LoadAll() error = nil")
	}
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("LoadAll() error = %v, want ErrMissingDependency joined", err)
	}
	if !strings.Contains(err.Error(), "no assets") {
		t.Errorf("LoadAll() error = %v, want the load failure joined", err)
	}

	var loaded []string
	for _, h := range l.Loaded() {
		loaded = append(loaded, h.GUID)
	}
	if diff := cmp.Diff([]string{"soft", "other"}, loaded); diff != "" {
		t.Errorf("loaded mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"other"}, apply.modules); diff != "" {
		t.Errorf("applied modules mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedLoadSweeps(t *testing.T) {
	var events []string
	l := NewLoader(nil, nil)
	var hooked []Handle
	l.OnUnload(func(h Handle) { hooked = append(hooked, h) })

	p := newPlugin("bad")
	p.events = &events
	p.loadErr = errors.New("fail")
	if _, err := l.Load(p); err == nil {
		t.Fatal("Load() error = nil")
	}

	want := []string{"load bad", "sweep2 bad", "sweep1 bad"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if len(hooked) != 1 || hooked[0].GUID != "bad" {
		t.Errorf("hooked = %v, want [bad#1]", hooked)
	}
	if p.unloaded != 0 {
		t.Errorf("Unload called %d times for a plugin that never loaded", p.unloaded)
	}
	if _, ok := l.Handle("bad"); ok {
		t.Error("failed plugin is registered as loaded")
	}
}

func TestLoadRecoversPanic(t *testing.T) {
	l := NewLoader(nil, nil)
	p := newPlugin("panicky")
	p.panics = true
	_, err := l.Load(p)
	if err == nil || !strings.Contains(err.Error(), "panic: boom") {
		t.Errorf("Load() error = %v, want recovered panic", err)
	}
}

func TestSiteFailureTearsDown(t *testing.T) {
	var events []string
	l := NewLoader(&fakeApplier{fail: patch.ErrPatternNotFound}, nil)
	p := newPlugin("patcher")
	p.events = &events
	p.sites = []patch.Site{{ID: "x", Routine: "OS.update"}}

	_, err := l.Load(p)
	if !errors.Is(err, patch.ErrPatternNotFound) {
		t.Fatalf("Load() error = %v, want ErrPatternNotFound", err)
	}
	want := []string{"load patcher", "unload patcher", "sweep2 patcher", "sweep1 patcher"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestUnload(t *testing.T) {
	var events []string
	l := NewLoader(nil, nil)
	var hooked []string
	l.OnUnload(func(h Handle) { hooked = append(hooked, h.String()) })

	p := newPlugin("mod")
	p.events = &events
	h, err := l.Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Gen != 1 {
		t.Errorf("gen = %d, want 1", h.Gen)
	}
	if err := l.Unload(h); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if diff := cmp.Diff([]string{"load mod", "unload mod", "sweep2 mod", "sweep1 mod"}, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"mod#1"}, hooked); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}
	if err := l.Unload(h); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("second Unload() error = %v, want ErrNotLoaded", err)
	}

	h2, err := l.Load(p)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if h2.Gen != 2 {
		t.Errorf("reload gen = %d, want 2", h2.Gen)
	}
	if err := l.Unload(h); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Unload(stale) error = %v, want ErrNotLoaded", err)
	}
	if got, _ := l.Handle("mod"); got != h2 {
		t.Errorf("Handle(mod) = %v, want %v", got, h2)
	}
}

func TestLoadDuplicate(t *testing.T) {
	l := NewLoader(nil, nil)
	if _, err := l.Load(newPlugin("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(newPlugin("a")); !errors.Is(err, ErrDuplicatePlugin) {
		t.Errorf("Load() error = %v, want ErrDuplicatePlugin", err)
	}
}

func TestUnloadAllReverseOrder(t *testing.T) {
	var events []string
	l := NewLoader(nil, nil)
	a, b := newPlugin("a"), newPlugin("b", Dependency{GUID: "a"})
	a.events, b.events = &events, &events
	if err := l.LoadAll(a, b); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	events = nil
	l.UnloadAll()

	want := []string{"unload b", "sweep2 b", "sweep1 b", "unload a", "sweep2 a", "sweep1 a"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if len(l.Loaded()) != 0 {
		t.Errorf("loaded = %v, want none", l.Loaded())
	}
}

func TestHandleString(t *testing.T) {
	if got := (Handle{}).String(); got != "<host>" {
		t.Errorf("zero handle = %q, want <host>", got)
	}
	if got := (Handle{GUID: "x", Gen: 3}).String(); got != "x#3" {
		t.Errorf("handle = %q, want x#3", got)
	}
}
