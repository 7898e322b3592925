package executable

import (
	"fmt"
	"strings"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/event"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/patch"
)

// Host routines patched by the manager.
const (
	RoutineProgramsExecute = "Programs.execute"
	RoutineOSUpdate        = "OS.update"
	RoutineLaunch          = "OS.launchExecutable"
	RoutineLoadFile        = "ComputerLoader.loadFile"
)

// Sites returns the injection sites that route host behaviour through the
// manager. They are applied once, by the core, at startup.
func (m *Manager) Sites() []patch.Site {
	return []patch.Site{
		{
			ID:          "executable.list",
			Routine:     RoutineProgramsExecute,
			Policy:      patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "printCommands", Argc: 2, Fn: m.printCommands}},
			Apply:       listSite,
		},
		{
			ID:          "executable.completed",
			Routine:     RoutineOSUpdate,
			Policy:      patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "exeCompleted", Argc: 2, Fn: m.exeCompleted}},
			Apply:       completedSite,
		},
		{
			ID:          "executable.execute",
			Routine:     RoutineLaunch,
			Policy:      patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "executeRequest", Argc: 4, Results: 1, Fn: m.executeRequest}},
			Apply:       executeSite,
		},
		{
			ID:          "executable.textReplace",
			Routine:     RoutineLoadFile,
			Policy:      patch.FailIfApplied,
			Trampolines: []host.Trampoline{{Name: "textReplace", Argc: 1, Results: 1, Fn: m.textReplace}},
			Apply:       textReplaceSite,
		},
	}
}

// listSite makes the exe command read the folder named bin instead of the
// third root folder, and replaces its built-in listing loop with
// printCommands(os, folder).
func listSite(c *patch.Cursor) error {
	err := c.GotoNext(patch.After,
		patch.MatchPushTemp(1),
		patch.MatchField("thisComputer"),
		patch.MatchField("files"),
		patch.MatchField("root"),
	)
	if err != nil {
		return err
	}
	// folders[2]
	if err := c.RemoveRange(3); err != nil {
		return err
	}
	c.EmitLiteral("bin")
	c.EmitSend("searchForFolder:", 1)

	if err := c.GotoNext(patch.Before, patch.MatchInt(0), patch.MatchStoreTemp(3)); err != nil {
		return err
	}
	start := c.Index()
	if err := c.GotoNext(patch.Before, patch.MatchPushTemp(1), patch.MatchLiteral(" ")); err != nil {
		return err
	}
	end := c.Index()
	if err := c.Goto(start, patch.Before); err != nil {
		return err
	}
	if err := c.RemoveRange(end - start); err != nil {
		return err
	}
	c.EmitLoadTemp(1, 2)
	c.EmitTrampoline("printCommands", 2, 0)
	return nil
}

// completedSite calls exeCompleted(os, i) just before the update loop
// removes exes[i].
func completedSite(c *patch.Cursor) error {
	err := c.GotoNext(patch.Before,
		patch.MatchOp(bytecode.OpNOP),
		patch.MatchOp(bytecode.OpPushSelf),
		patch.MatchField("exes"),
		patch.MatchPushTemp(1),
		patch.MatchSend("removeAt:"),
	)
	if err != nil {
		return err
	}
	c.EmitLoadSelf()
	c.EmitLoadTemp(1)
	c.EmitTrampoline("exeCompleted", 2, 0)
	return nil
}

// executeSite offers every launch that found no built-in program to the
// execute event before the host reports it missing. A claimed launch
// returns true.
func executeSite(c *patch.Cursor) error {
	err := c.GotoNext(patch.AfterLabel,
		patch.MatchOp(bytecode.OpPushSelf),
		patch.MatchLiteral("Program not found"),
	)
	if err != nil {
		return err
	}
	notFound := c.Next()
	c.EmitLoadSelf()
	c.EmitLoadTemp(0, 3, 1)
	c.EmitTrampoline("executeRequest", 4, 1)
	c.EmitBranch(bytecode.OpJumpFalse, notFound)
	c.Emit(bytecode.OpPushTrue)
	c.Emit(bytecode.OpReturnTop)
	return nil
}

// textReplaceSite filters the data argument of the loader through
// textReplace before it is stored.
func textReplaceSite(c *patch.Cursor) error {
	err := c.GotoNext(patch.After,
		patch.MatchPushTemp(0),
		patch.MatchPushTemp(1),
		patch.MatchPushTemp(2),
	)
	if err != nil {
		return err
	}
	c.EmitTrampoline("textReplace", 1, 1)
	return nil
}

// ---------------------------------------------------------------------------
// Trampolines
// ---------------------------------------------------------------------------

func (m *Manager) printCommands(args []any) ([]any, error) {
	os, ok := args[0].(host.OS)
	if !ok {
		return nil, fmt.Errorf("printCommands: session is %T", args[0])
	}
	folder, ok := args[1].(host.Folder)
	if !ok {
		// no bin folder
		return nil, nil
	}
	for _, f := range folder.Files() {
		if m.isProgramData(f.Data()) {
			os.Write(strings.ReplaceAll(f.Name(), ".exe", ""))
		}
	}
	return nil, nil
}

func (m *Manager) isProgramData(data string) bool {
	if m.programs != nil {
		if _, ok := m.programs.BuiltinExecutable(data); ok {
			return true
		}
	}
	return m.IsCustomData(data)
}

func (m *Manager) exeCompleted(args []any) ([]any, error) {
	os, ok := args[0].(host.OS)
	if !ok {
		return nil, fmt.Errorf("exeCompleted: session is %T", args[0])
	}
	i, ok := args[1].(int)
	exes := os.Exes()
	if !ok || i < 0 || i >= len(exes) {
		return nil, fmt.Errorf("exeCompleted: index %v of %d", args[1], len(exes))
	}
	ev := &event.ExecutableCompleted{OS: os, Exe: exes[i]}
	if e, ok := exes[i].(Executable); ok {
		e.Completed()
		ev.ID = e.InstanceID()
		m.log.Debug("executable completed", "id", e.Identifier(), "instance", ev.ID.String())
	}
	m.events.ExecutableCompleted.Publish(ev)
	return nil, nil
}

func (m *Manager) executeRequest(args []any) ([]any, error) {
	os, ok := args[0].(host.OS)
	if !ok {
		return nil, fmt.Errorf("executeRequest: session is %T", args[0])
	}
	name, _ := args[1].(string)
	data, _ := args[2].(string)
	var argv []string
	if l, ok := args[3].(host.StringList); ok {
		argv = l.Strings()
	}
	ev := m.events.ExecutableExecute.Publish(&event.ExecutableExecute{
		OS:             os,
		ExecutableName: name,
		ExecutableData: data,
		Arguments:      argv,
	})
	return []any{ev.Result != event.NotHandled}, nil
}

func (m *Manager) textReplace(args []any) ([]any, error) {
	s, ok := args[0].(string)
	if !ok {
		return []any{args[0]}, nil
	}
	ev := m.events.TextReplace.Publish(&event.TextReplace{Original: s, Replacement: s})
	return []any{ev.Replacement}, nil
}
