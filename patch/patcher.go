package patch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/metrics"
)

var (
	ErrAlreadyPatched = errors.New("site already applied")
	ErrInvalidSite    = errors.New("invalid site")
)

// Policy decides what happens when a site has already been applied to its
// routine in this process.
type Policy int

const (
	// SkipIfApplied treats a repeated site as a no-op.
	SkipIfApplied Policy = iota
	// FailIfApplied fails the whole module instead.
	FailIfApplied
)

// String implements the Stringer interface.
func (p Policy) String() string {
	switch p {
	case SkipIfApplied:
		return "SkipIfApplied"
	case FailIfApplied:
		return "FailIfApplied"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Site is a declarative edit of one host routine. Apply receives a cursor at
// the start of the routine's current body; it locates its anchors and
// edits. Trampolines are bound when the site's module commits.
//
// A routine that already calls every trampoline of a site carries the site
// from an earlier patcher on the same runtime. The site is then adopted:
// its trampolines are rebound and Apply is not run.
type Site struct {
	ID          string
	Routine     string
	Policy      Policy
	Trampolines []host.Trampoline
	Apply       func(c *Cursor) error
}

type siteKey struct {
	id      string
	routine string
}

// staged is a routine rewritten in memory but not yet installed. next is
// nil when every site was adopted.
type staged struct {
	routine string
	orig    *bytecode.Method
	next    *bytecode.Method
	before  [32]byte
	after   [32]byte
	sites   []*Site
	adopted []*Site
}

// Patcher applies sites to a host runtime. Sites are applied at most once
// per (site, routine) for the lifetime of the patcher, and never rolled
// back once committed.
type Patcher struct {
	rt      host.Runtime
	log     commonlog.Logger
	metrics metrics.Metrics
	journal *Journal
	applied map[siteKey]bool
}

// Option configures a Patcher.
type Option func(*Patcher)

// WithMetrics reports site outcomes to m.
func WithMetrics(m metrics.Metrics) Option {
	return func(p *Patcher) { p.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l commonlog.Logger) Option {
	return func(p *Patcher) { p.log = l }
}

// NewPatcher creates a patcher for rt.
func NewPatcher(rt host.Runtime, opts ...Option) *Patcher {
	p := &Patcher{
		rt:      rt,
		log:     logging.Get("patch"),
		metrics: metrics.Noop{},
		journal: &Journal{},
		applied: make(map[siteKey]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Journal returns the record of committed sites.
func (p *Patcher) Journal() *Journal {
	return p.journal
}

// Applied reports whether the site has been committed to routine.
func (p *Patcher) Applied(id, routine string) bool {
	return p.applied[siteKey{id, routine}]
}

// Apply commits every site of one module, or none of them. Sites targeting
// the same routine are applied in order to one decoded body; each rewritten
// body must pass the stack verifier before anything is installed.
func (p *Patcher) Apply(module string, sites []Site) error {
	pending, err := p.filter(module, sites)
	if err != nil {
		p.metrics.IncPatchSite("failed")
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	stage, err := p.stage(module, pending)
	if err != nil {
		p.metrics.IncPatchSite("failed")
		p.log.Error("module patch rejected", "module", module, "error", err)
		return err
	}

	if err := p.commit(module, stage); err != nil {
		p.metrics.IncPatchSite("failed")
		p.log.Error("module patch commit failed", "module", module, "error", err)
		return err
	}
	return nil
}

// filter drops sites that were already applied and enforces their policy.
func (p *Patcher) filter(module string, sites []Site) ([]*Site, error) {
	var pending []*Site
	batch := make(map[siteKey]bool)
	for i := range sites {
		s := &sites[i]
		if s.ID == "" || s.Routine == "" || s.Apply == nil {
			return nil, fmt.Errorf("%s: %w: site %d needs an ID, a routine and Apply", module, ErrInvalidSite, i)
		}
		key := siteKey{s.ID, s.Routine}
		if p.applied[key] || batch[key] {
			if s.Policy == FailIfApplied {
				return nil, fmt.Errorf("%s: site %s on %s: %w", module, s.ID, s.Routine, ErrAlreadyPatched)
			}
			p.log.Debug("site already applied", "module", module, "site", s.ID, "routine", s.Routine)
			p.metrics.IncPatchSite("skipped")
			continue
		}
		batch[key] = true
		pending = append(pending, s)
	}
	return pending, nil
}

// stage rewrites every affected routine in memory.
func (p *Patcher) stage(module string, sites []*Site) ([]*staged, error) {
	var order []string
	byRoutine := make(map[string][]*Site)
	for _, s := range sites {
		if _, ok := byRoutine[s.Routine]; !ok {
			order = append(order, s.Routine)
		}
		byRoutine[s.Routine] = append(byRoutine[s.Routine], s)
	}

	var out []*staged
	for _, name := range order {
		orig, ok := p.rt.Routine(name)
		if !ok {
			return nil, fmt.Errorf("%s: %s: %w", module, name, host.ErrNoRoutine)
		}
		body, err := bytecode.Decode(orig)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", module, err)
		}
		st := &staged{routine: name, orig: orig}
		for _, s := range byRoutine[name] {
			if resident(body, s) {
				st.adopted = append(st.adopted, s)
			} else {
				st.sites = append(st.sites, s)
			}
		}
		for _, s := range st.sites {
			if err := s.Apply(NewCursor(body)); err != nil {
				return nil, fmt.Errorf("%s: site %s: %w", module, s.ID, err)
			}
		}
		if st.before, err = HashMethod(orig); err != nil {
			return nil, err
		}
		st.after = st.before
		if len(st.sites) > 0 {
			if _, err := bytecode.VerifyStack(body); err != nil {
				return nil, fmt.Errorf("%s: %w", module, err)
			}
			if st.next, err = body.Encode(); err != nil {
				return nil, fmt.Errorf("%s: %w", module, err)
			}
			if st.after, err = HashMethod(st.next); err != nil {
				return nil, err
			}
		}
		out = append(out, st)
	}

	if err := checkTrampolines(sites); err != nil {
		return nil, fmt.Errorf("%s: %w", module, err)
	}
	return out, nil
}

// resident reports whether body already calls every trampoline of s.
func resident(body *bytecode.Body, s *Site) bool {
	if len(s.Trampolines) == 0 {
		return false
	}
	for _, t := range s.Trampolines {
		if _, err := NewCursor(body).Find(0, Forward, MatchTrampoline(t.Name)); err != nil {
			return false
		}
	}
	return true
}

func checkTrampolines(sites []*Site) error {
	seen := make(map[string]host.Trampoline)
	for _, s := range sites {
		for _, t := range s.Trampolines {
			if prev, ok := seen[t.Name]; ok && (prev.Argc != t.Argc || prev.Results != t.Results) {
				return fmt.Errorf("%s: %w", t.Name, host.ErrTrampolineConflict)
			}
			seen[t.Name] = t
		}
	}
	return nil
}

// commit binds trampolines and installs the staged routines. A failed
// install restores the routines already replaced.
func (p *Patcher) commit(module string, stage []*staged) error {
	for _, st := range stage {
		for _, s := range append(slices.Clone(st.adopted), st.sites...) {
			for _, t := range s.Trampolines {
				if err := p.rt.BindTrampoline(t); err != nil {
					return fmt.Errorf("%s: site %s: %w", module, s.ID, err)
				}
			}
		}
	}

	for i, st := range stage {
		if st.next == nil {
			continue
		}
		if err := p.rt.ReplaceRoutine(st.next); err != nil {
			for _, done := range stage[:i] {
				if done.next == nil {
					continue
				}
				if rerr := p.rt.ReplaceRoutine(done.orig); rerr != nil {
					p.log.Critical("routine restore failed", "routine", done.routine, "error", rerr)
				}
			}
			return fmt.Errorf("%s: install %s: %w", module, st.routine, err)
		}
	}

	for _, st := range stage {
		for _, s := range st.adopted {
			p.applied[siteKey{s.ID, s.Routine}] = true
			p.journal.append(Entry{Module: module, Site: s.ID, Routine: st.routine, Before: st.before, After: st.before})
			p.metrics.IncPatchSite("adopted")
			p.log.Info("adopted resident site", "module", module, "site", s.ID, "routine", st.routine)
		}
		for _, s := range st.sites {
			p.applied[siteKey{s.ID, s.Routine}] = true
			p.journal.append(Entry{Module: module, Site: s.ID, Routine: st.routine, Before: st.before, After: st.after})
			p.metrics.IncPatchSite("applied")
			p.log.Info("applied site", "module", module, "site", s.ID, "routine", st.routine)
		}
	}
	return nil
}
