package updater

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/prodzpod/Hacknet-Pathfinder/config"
	"github.com/prodzpod/Hacknet-Pathfinder/event"
	"github.com/prodzpod/Hacknet-Pathfinder/host/sim"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/options"
	"github.com/prodzpod/Hacknet-Pathfinder/plugin"
	"github.com/prodzpod/Hacknet-Pathfinder/tick"
)

func TestLatest(t *testing.T) {
	feed := []Release{
		{TagName: "nightly"},
		{TagName: "v6.0.0-beta.1"},
		{TagName: "v5.4.0", Prerelease: true},
		{TagName: "v5.3.1"},
		{TagName: "v5.3.0"},
	}
	tests := []struct {
		pre  bool
		want string
	}{
		{false, "5.3.1"},
		{true, "6.0.0-beta.1"},
	}
	for _, tt := range tests {
		r, err := Latest(feed, tt.pre)
		if err != nil {
			t.Fatalf("Latest(%v): %v", tt.pre, err)
		}
		if r.Version() != tt.want {
			t.Errorf("Latest(%v) = %s, want %s", tt.pre, r.Version(), tt.want)
		}
	}

	if _, err := Latest(feed[:3], false); !errors.Is(err, ErrNoRelease) {
		t.Errorf("Latest(prereleases only) = %v, want ErrNoRelease", err)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		current, accepted, latest string
		want                      Action
	}{
		{"5.3.0", "", "5.3.0", UpToDate},
		{"5.4.0", "", "5.3.0", UpToDate},
		{"5.2.0", "", "5.3.0", Prompt},
		{"5.2.0", "5.2.5", "5.3.0", Prompt},
		{"5.2.0", "5.3.0", "v5.3.0", Install},
		{"", "", "5.3.0", Prompt},
		{"5.2.0", "", "garbage", UpToDate},
	}
	for _, tt := range tests {
		if got := Decide(tt.current, tt.accepted, tt.latest); got != tt.want {
			t.Errorf("Decide(%q, %q, %q) = %v, want %v", tt.current, tt.accepted, tt.latest, got, tt.want)
		}
	}
}

func TestMajorChanged(t *testing.T) {
	if !MajorChanged("5.2.0", "6.0.0") {
		t.Error("5 -> 6 not reported")
	}
	if MajorChanged("5.2.0", "5.9.0") {
		t.Error("5.2 -> 5.9 reported")
	}
	if MajorChanged("", "6.0.0") {
		t.Error("unknown current version reported")
	}
}

func TestReleaseAsset(t *testing.T) {
	r := Release{TagName: "v5.3.0", Assets: []Asset{{Name: "Pathfinder.Release.zip", URL: "http://x/zip"}}}
	a, err := r.Asset("Pathfinder.Release.zip")
	if err != nil || a.URL != "http://x/zip" {
		t.Errorf("Asset = %+v, %v", a, err)
	}
	if _, err := r.Asset("other.zip"); !errors.Is(err, ErrNoAsset) {
		t.Errorf("Asset(other.zip) = %v, want ErrNoAsset", err)
	}
}

func feedServer(t *testing.T, releases []Release) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "no user agent", http.StatusForbidden)
			return
		}
		_ = json.NewEncoder(w).Encode(releases)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchReleases(t *testing.T) {
	srv, _ := feedServer(t, []Release{{TagName: "v5.3.0", Assets: []Asset{{Name: "a.zip", URL: "u"}}}})
	got, err := FetchReleases(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	want := []Release{{TagName: "v5.3.0", Assets: []Asset{{Name: "a.zip", URL: "u"}}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("releases mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchReleasesStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, err := FetchReleases(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("FetchReleases on 404 succeeded")
	}
}

type fakeInstaller struct {
	got []string
	err error
}

func (f *fakeInstaller) Install(_ context.Context, r Release) error {
	f.got = append(f.got, r.TagName)
	return f.err
}

type fixture struct {
	u      *Updater
	cfg    *config.Config
	events *event.Catalog
	menu   *options.Menu
	queue  *tick.Queue
	exits  int
}

func newFixture(t *testing.T, url, version string) *fixture {
	t.Helper()
	f := &fixture{cfg: config.Default(), queue: &tick.Queue{}}
	f.cfg.Updater.ReleasesURL = url
	f.events = event.NewCatalog(event.NewBus(nil))
	f.menu = options.NewMenu(f.events, sim.NewWidgets(), f.cfg)
	f.u = &Updater{
		Version: version,
		Events:  f.events,
		Menu:    f.menu,
		Queue:   f.queue,
		Exit:    func() { f.exits++ },
	}
	return f
}

// load runs the plugin's Load and hands the check result to the control
// goroutine.
func (f *fixture) load(t *testing.T) {
	t.Helper()
	ctx := &plugin.Context{
		Handle: plugin.Handle{GUID: GUID, Gen: 1},
		Log:    logging.Get("updater"),
		Config: f.cfg,
	}
	if err := f.u.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	f.u.Wait()
	f.queue.Drain()
}

func (f *fixture) drawMenu(w *sim.Widgets) []string {
	w.Reset()
	f.events.MainMenuDraw.Publish(&event.MainMenuDraw{Widgets: w})
	return w.Frame()
}

var feed = []Release{
	{TagName: "v6.0.0-rc.1", Prerelease: true},
	{TagName: "v5.3.0"},
}

func TestPromptForNewVersion(t *testing.T) {
	srv, _ := feedServer(t, feed)
	f := newFixture(t, srv.URL, "5.2.0")
	f.load(t)

	if f.u.Pending() != "5.3.0" {
		t.Fatalf("Pending = %q, want 5.3.0", f.u.Pending())
	}
	w := sim.NewWidgets()
	want := []string{
		`label "New Pathfinder Version 5.3.0"`,
		`label "Do you want to update? Yes will close the game."`,
		`button 8000 "Yes"`,
		`button 8001 "No"`,
		`button 8002 "Skip"`,
	}
	if diff := cmp.Diff(want, f.drawMenu(w)); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestPromptButtons(t *testing.T) {
	tests := []struct {
		click                      string
		exits                      int
		accepted, current, pending string
	}{
		{LabelYes, 1, "5.3.0", "", ""},
		{LabelNo, 0, "", "", ""},
		{LabelSkip, 0, "", "5.3.0", ""},
	}
	for _, tt := range tests {
		t.Run(tt.click, func(t *testing.T) {
			srv, _ := feedServer(t, feed)
			f := newFixture(t, srv.URL, "5.2.0")
			f.load(t)

			w := sim.NewWidgets()
			w.Click(tt.click)
			f.drawMenu(w)

			if f.exits != tt.exits {
				t.Errorf("exits = %d, want %d", f.exits, tt.exits)
			}
			if got := f.cfg.Updater.LatestAcceptedUpdate; got != tt.accepted {
				t.Errorf("LatestAcceptedUpdate = %q, want %q", got, tt.accepted)
			}
			if got := f.cfg.Updater.CurrentVersion; got != tt.current {
				t.Errorf("CurrentVersion = %q, want %q", got, tt.current)
			}
			if f.u.Pending() != tt.pending {
				t.Errorf("Pending = %q, want %q", f.u.Pending(), tt.pending)
			}
			if n := f.events.MainMenuDraw.Len(); n != 0 {
				t.Errorf("MainMenuDraw handlers = %d, want 0 after answering", n)
			}
			if got := f.drawMenu(w); len(got) != 0 {
				t.Errorf("prompt still drawn: %v", got)
			}
		})
	}
}

func TestAcceptedVersionInstalls(t *testing.T) {
	srv, _ := feedServer(t, feed)
	f := newFixture(t, srv.URL, "5.2.0")
	f.cfg.Updater.LatestAcceptedUpdate = "5.3.0"
	inst := &fakeInstaller{}
	f.u.Installer = inst
	f.load(t)

	f.u.Wait()
	f.queue.Drain()
	if diff := cmp.Diff([]string{"v5.3.0"}, inst.got); diff != "" {
		t.Errorf("installed mismatch (-want +got):\n%s", diff)
	}
	if f.cfg.Updater.CurrentVersion != "5.3.0" {
		t.Errorf("CurrentVersion = %q, want 5.3.0", f.cfg.Updater.CurrentVersion)
	}
	if f.u.Pending() != "" {
		t.Error("accepted version prompted again")
	}
}

func TestFailedInstallKeepsVersion(t *testing.T) {
	srv, _ := feedServer(t, feed)
	f := newFixture(t, srv.URL, "5.2.0")
	f.cfg.Updater.LatestAcceptedUpdate = "5.3.0"
	f.u.Installer = &fakeInstaller{err: errors.New("disk full")}
	f.load(t)

	f.u.Wait()
	f.queue.Drain()
	if f.cfg.Updater.CurrentVersion != "" {
		t.Errorf("CurrentVersion = %q, want unchanged", f.cfg.Updater.CurrentVersion)
	}
}

func TestUpToDate(t *testing.T) {
	srv, hits := feedServer(t, feed)
	f := newFixture(t, srv.URL, "5.3.0")
	f.load(t)
	if hits.Load() != 1 {
		t.Errorf("feed hits = %d, want 1", hits.Load())
	}
	if f.u.Pending() != "" || f.events.MainMenuDraw.Len() != 0 {
		t.Error("prompt shown for the running version")
	}
}

func TestDisabled(t *testing.T) {
	srv, hits := feedServer(t, feed)
	f := newFixture(t, srv.URL, "5.2.0")
	f.cfg.Updater.Enabled = false
	f.load(t)
	if hits.Load() != 0 {
		t.Errorf("feed hits = %d, want 0", hits.Load())
	}
	if f.queue.Len() != 0 || f.u.Pending() != "" {
		t.Error("disabled updater did work")
	}
}

func TestOptionsTab(t *testing.T) {
	srv, _ := feedServer(t, feed)
	f := newFixture(t, srv.URL, "5.3.0")
	f.cfg.SetOption(TabName, "include_prereleases", true)
	f.load(t)

	tab := f.menu.Tab(TabName)
	if tab == nil {
		t.Fatal("no Updater tab")
	}
	var keys []string
	for _, o := range tab.Options() {
		keys = append(keys, o.Key())
	}
	if diff := cmp.Diff([]string{"enabled", "include_prereleases"}, keys); diff != "" {
		t.Errorf("option keys mismatch (-want +got):\n%s", diff)
	}
	if !f.cfg.Updater.IncludePrereleases {
		t.Error("persisted tab value not applied to the updater config")
	}

	// With prereleases included the feed's release candidate is newer.
	if f.u.Pending() != "6.0.0-rc.1" {
		t.Errorf("Pending = %q, want 6.0.0-rc.1", f.u.Pending())
	}
}

func TestUnloadDismissesPrompt(t *testing.T) {
	srv, _ := feedServer(t, feed)
	f := newFixture(t, srv.URL, "5.2.0")
	f.load(t)
	f.u.stop()
	if f.u.Pending() != "" || f.events.MainMenuDraw.Len() != 0 {
		t.Error("prompt survived unload")
	}
}
