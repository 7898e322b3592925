// Package updater checks the release feed for a newer core version and
// asks on the main menu whether to install it.
//
// The feed is fetched on a background goroutine. Its outcome is posted to
// the tick queue and handled on the host control goroutine, which is the
// only place the config and the event bus are touched.
package updater

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/config"
	"github.com/prodzpod/Hacknet-Pathfinder/event"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/options"
	"github.com/prodzpod/Hacknet-Pathfinder/plugin"
	"github.com/prodzpod/Hacknet-Pathfinder/tick"
)

// GUID identifies the updater plugin.
const GUID = "com.Pathfinder.Updater"

// TabName is the options tab of the updater.
const TabName = "Updater"

// Prompt button labels.
const (
	LabelYes  = "Yes"
	LabelNo   = "No"
	LabelSkip = "Skip"
)

const (
	yesButtonID  = 8000
	noButtonID   = 8001
	skipButtonID = 8002
)

// Installer replaces the installed core with a release.
type Installer interface {
	Install(ctx context.Context, r Release) error
}

// Updater is the update check plugin.
type Updater struct {
	// Version is the running core version, used while the config records
	// none.
	Version string

	Events    *event.Catalog
	Menu      *options.Menu
	Queue     *tick.Queue
	Client    *http.Client
	Installer Installer

	// Exit asks the host to shut down so an accepted update can be
	// installed on the next start.
	Exit func()

	log     commonlog.Logger
	cfg     *config.Config
	owner   plugin.Handle
	enabled *options.Checkbox
	pre     *options.Checkbox

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending string
	prompt  event.HandlerID
}

func (u *Updater) Info() plugin.Info {
	return plugin.Info{GUID: GUID, Name: "Pathfinder Updater", Version: u.Version}
}

// Load registers the options tab and, when enabled, starts the check.
func (u *Updater) Load(ctx *plugin.Context) error {
	if u.Events == nil || u.Queue == nil {
		return fmt.Errorf("%w: updater needs events and a tick queue", plugin.ErrInvalidPlugin)
	}
	u.log = ctx.Log
	u.owner = ctx.Handle
	u.cfg = ctx.Config
	if u.cfg == nil {
		u.cfg = config.Default()
	}
	if u.Client == nil {
		u.Client = &http.Client{Timeout: 30 * time.Second}
	}

	u.enabled = options.NewCheckbox("enabled", "Enabled", u.cfg.Updater.Enabled)
	u.pre = options.NewCheckbox("include_prereleases", "Include Pre-Releases", u.cfg.Updater.IncludePrereleases)
	if u.Menu != nil {
		u.Menu.GetOrRegisterTab(ctx.Handle, TabName).Add(u.enabled, u.pre)
		u.cfg.Updater.Enabled = u.enabled.Checked
		u.cfg.Updater.IncludePrereleases = u.pre.Checked
	}
	u.Events.OptionsSave.AddHandler(ctx.Handle, 0, func(*event.OptionsSave) {
		u.cfg.Updater.Enabled = u.enabled.Checked
		u.cfg.Updater.IncludePrereleases = u.pre.Checked
	})

	if !u.cfg.Updater.Enabled {
		u.log.Info("update check disabled")
		return nil
	}

	bg, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	ctx.OnUnload(u.stop)

	url := u.cfg.Updater.ReleasesURL
	includePre := u.cfg.Updater.IncludePrereleases
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		r, err := u.check(bg, url, includePre)
		u.Queue.Post(func() { u.handle(bg, r, err) })
	}()
	return nil
}

// Wait blocks until background work started by the updater has finished.
func (u *Updater) Wait() {
	u.wg.Wait()
}

// Pending returns the version the prompt asks about, or "".
func (u *Updater) Pending() string {
	return u.pending
}

func (u *Updater) stop() {
	if u.cancel != nil {
		u.cancel()
	}
	u.dismiss()
}

func (u *Updater) check(ctx context.Context, url string, includePre bool) (Release, error) {
	releases, err := FetchReleases(ctx, u.Client, url)
	if err != nil {
		return Release{}, err
	}
	return Latest(releases, includePre)
}

func (u *Updater) current() string {
	if u.cfg.Updater.CurrentVersion != "" {
		return u.cfg.Updater.CurrentVersion
	}
	return u.Version
}

// handle runs on the control goroutine.
func (u *Updater) handle(ctx context.Context, r Release, err error) {
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		u.log.Warning("update check failed", "error", err)
		return
	}

	latest := r.Version()
	current := u.current()
	if MajorChanged(current, latest) {
		u.log.Warning("new major version available, it may break installed mods", "current", current, "latest", latest)
	}

	switch Decide(current, u.cfg.Updater.LatestAcceptedUpdate, latest) {
	case UpToDate:
		u.log.Info("up to date", "version", current)

	case Prompt:
		u.log.Notice("new version available", "version", latest)
		u.pending = latest
		u.prompt = u.Events.MainMenuDraw.AddHandler(u.owner, 0, u.drawPrompt)

	case Install:
		if u.Installer == nil {
			u.log.Warning("accepted update not installed, no installer", "version", latest)
			return
		}
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			err := u.Installer.Install(ctx, r)
			u.Queue.Post(func() { u.installed(latest, err) })
		}()
	}
}

func (u *Updater) installed(version string, err error) {
	if err != nil {
		u.log.Error("update failed", "version", version, "error", err)
		return
	}
	u.log.Notice("updated", "version", version)
	u.cfg.Updater.CurrentVersion = version
	u.save()
}

func (u *Updater) save() {
	if u.cfg.Dir == "" {
		return
	}
	if err := u.cfg.Save(); err != nil {
		u.log.Error("cannot save config", "error", err)
	}
}

func (u *Updater) dismiss() {
	u.pending = ""
	if u.prompt != 0 {
		u.Events.MainMenuDraw.RemoveHandler(u.prompt)
		u.prompt = 0
	}
}

func (u *Updater) drawPrompt(ev *event.MainMenuDraw) {
	if u.pending == "" {
		return
	}
	w := ev.Widgets
	w.Label(host.Rect{X: 650, Y: 240, Width: 340, Height: 30}, "New Pathfinder Version "+u.pending)
	w.Label(host.Rect{X: 650, Y: 280, Width: 340, Height: 30}, "Do you want to update? Yes will close the game.")

	switch {
	case w.Button(yesButtonID, host.Rect{X: 650, Y: 330, Width: 100, Height: 30}, LabelYes):
		u.cfg.Updater.LatestAcceptedUpdate = u.pending
		u.save()
		u.dismiss()
		if u.Exit != nil {
			u.Exit()
		}
	case w.Button(noButtonID, host.Rect{X: 760, Y: 330, Width: 100, Height: 30}, LabelNo):
		u.dismiss()
	case w.Button(skipButtonID, host.Rect{X: 870, Y: 330, Width: 100, Height: 30}, LabelSkip):
		u.cfg.Updater.CurrentVersion = u.pending
		u.save()
		u.dismiss()
	}
}
