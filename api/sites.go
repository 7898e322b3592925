package api

import (
	"fmt"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/event"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/patch"
)

// Host routines patched by the core.
const (
	RoutineOSUpdate     = "OS.update"
	RoutineOSDraw       = "OS.draw"
	RoutineMainMenuDraw = "MainMenu.draw"
)

func (a *API) coreSites(w host.Widgets) []patch.Site {
	return []patch.Site{
		{
			ID:          "core.osUpdate",
			Routine:     RoutineOSUpdate,
			Policy:      patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "osUpdate", Argc: 2, Fn: a.osUpdate}},
			Apply:       prefix("osUpdate"),
		},
		{
			ID:          "core.osDraw",
			Routine:     RoutineOSDraw,
			Policy:      patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "osDraw", Argc: 2, Fn: a.osDraw}},
			Apply:       postfix("osDraw"),
		},
		{
			ID:      "core.mainMenuDraw",
			Routine: RoutineMainMenuDraw,
			Policy:  patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "mainMenuDraw", Argc: 2, Fn: func(args []any) ([]any, error) {
				return a.mainMenuDraw(w, args)
			}}},
			Apply: postfix("mainMenuDraw"),
		},
	}
}

// prefix calls the trampoline with the receiver and the first argument at
// the start of the routine.
func prefix(trampoline string) func(c *patch.Cursor) error {
	return func(c *patch.Cursor) error {
		if err := c.Goto(0, patch.AfterLabel); err != nil {
			return err
		}
		c.EmitLoadSelf()
		c.EmitLoadTemp(0)
		c.EmitTrampoline(trampoline, 2, 0)
		return nil
	}
}

// postfix calls the trampoline with the receiver and the first argument in
// front of the routine's last return. Branches to that return go through
// the call too.
func postfix(trampoline string) func(c *patch.Cursor) error {
	return func(c *patch.Cursor) error {
		if err := c.Goto(c.Len(), patch.Before); err != nil {
			return err
		}
		if err := c.GotoPrev(patch.AfterLabel, patch.MatchOp(bytecode.OpReturnSelf)); err != nil {
			return err
		}
		c.EmitLoadSelf()
		c.EmitLoadTemp(0)
		c.EmitTrampoline(trampoline, 2, 0)
		return nil
	}
}

func (a *API) osUpdate(args []any) ([]any, error) {
	os, ok := args[0].(host.OS)
	if !ok {
		return nil, fmt.Errorf("osUpdate: receiver %T is not a session", args[0])
	}
	a.Events.OSUpdate.Publish(&event.OSUpdate{OS: os, DT: seconds(args[1])})
	a.Tick.Drain()
	return nil, nil
}

func (a *API) osDraw(args []any) ([]any, error) {
	os, ok := args[0].(host.OS)
	if !ok {
		return nil, fmt.Errorf("osDraw: receiver %T is not a session", args[0])
	}
	a.Events.OSDraw.Publish(&event.OSDraw{OS: os, DT: seconds(args[1])})
	return nil, nil
}

func (a *API) mainMenuDraw(w host.Widgets, args []any) ([]any, error) {
	a.Tick.Drain()
	a.Events.MainMenuDraw.Publish(&event.MainMenuDraw{Widgets: w, DT: seconds(args[1])})
	return nil, nil
}

func seconds(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
