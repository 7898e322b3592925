package sim

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
)

func bin(h *Host) *Folder {
	return h.Session().ThisComputer.Files.Root.Folder("bin")
}

func installBuiltin(t *testing.T, h *Host, name string) Builtin {
	t.Helper()
	b, ok := h.Programs().ByName(name)
	if !ok {
		t.Fatalf("no builtin %s", name)
	}
	bin(h).AddFile(name+".exe", b.Data)
	return b
}

func TestStockRoutinesVerify(t *testing.T) {
	h := New()
	want := []string{
		"ComputerLoader.loadFile",
		"MainMenu.draw",
		"OS.draw",
		"OS.launchExecutable",
		"OS.update",
		"OptionsMenu.draw",
		"Programs.execute",
	}
	if diff := cmp.Diff(want, h.Routines()); diff != "" {
		t.Errorf("routines mismatch (-want +got):\n%s", diff)
	}
}

func TestLaunchBuiltin(t *testing.T) {
	h := New(WithRAM(1000))
	b := installBuiltin(t, h, "SSHcrack")

	if err := h.Command("SSHcrack 22"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	exes := h.Session().Exes()
	if len(exes) != 1 || exes[0].Identifier() != "SSHcrack" {
		t.Fatalf("exes = %v, want [SSHcrack]", exes)
	}
	if got := h.Session().RAMAvailable(); got != 1000-b.RAMCost {
		t.Errorf("RAMAvailable = %d, want %d", got, 1000-b.RAMCost)
	}
}

func TestLaunchInsufficientMemory(t *testing.T) {
	h := New(WithRAM(100))
	installBuiltin(t, h, "PortHack")

	if err := h.Command("PortHack"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	if len(h.Session().Exes()) != 0 {
		t.Error("program started without memory")
	}
	if diff := cmp.Diff([]string{"Insufficient Memory"}, h.Session().Output()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if h.Session().MemoryWarnings() != 1 {
		t.Errorf("memory warnings = %d, want 1", h.Session().MemoryWarnings())
	}
}

func TestLaunchNotFound(t *testing.T) {
	h := New()
	bin(h).AddFile("Custom.exe", "0101")

	for _, line := range []string{"Missing", "Custom"} {
		h.Session().ClearOutput()
		if err := h.Command(line); err != nil {
			t.Fatalf("Command(%q): %v", line, err)
		}
		if diff := cmp.Diff([]string{"Program not found"}, h.Session().Output()); diff != "" {
			t.Errorf("Command(%q) output mismatch (-want +got):\n%s", line, diff)
		}
	}
}

func TestProgramsExecuteListsBuiltins(t *testing.T) {
	h := New()
	installBuiltin(t, h, "SSHcrack")
	bin(h).AddFile("notes.txt", "hello")
	installBuiltin(t, h, "FTPBounce")

	if err := h.Command("exe"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	want := []string{"Available Executables:\n", "SSHcrack", "FTPBounce", " "}
	if diff := cmp.Diff(want, h.Session().Output()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateRemovesExitingPrograms(t *testing.T) {
	h := New(WithRAM(1000))
	installBuiltin(t, h, "Tutorial")
	installBuiltin(t, h, "SSHcrack")
	if err := h.Command("Tutorial"); err != nil {
		t.Fatal(err)
	}
	if err := h.Command("SSHcrack"); err != nil {
		t.Fatal(err)
	}

	if err := h.Update(1.5); err != nil {
		t.Fatalf("Update: %v", err)
	}
	exes := h.Session().Exes()
	if len(exes) != 1 || exes[0].Identifier() != "SSHcrack" {
		t.Errorf("exes after update = %v, want [SSHcrack]", exes)
	}
	if err := h.Draw(0.016); err != nil {
		t.Errorf("Draw: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	h := New()
	home := h.Session().ThisComputer.Files.Root.Folder("home")
	if err := h.LoadFile(home, "readme.txt", "hi"); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if f := home.File("readme.txt"); f == nil || f.Data() != "hi" {
		t.Errorf("readme.txt = %v", f)
	}
}

func TestMenus(t *testing.T) {
	h := New()
	h.Widgets.Click("Settings")
	if err := h.Frame(0.016); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if h.Screen() != ScreenOptions {
		t.Fatalf("screen = %v, want options", h.Screen())
	}

	h.Widgets.Click("Back")
	if err := h.Frame(0.016); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if h.Screen() != ScreenMainMenu {
		t.Errorf("screen = %v, want main menu", h.Screen())
	}
	if h.Gui().Depth != 0 || h.Gui().Batches != 2 {
		t.Errorf("gui = %+v, want balanced batches", h.Gui())
	}

	h.Widgets.Click("Exit")
	if err := h.Frame(0.016); err != nil {
		t.Fatal(err)
	}
	if !h.ExitRequested() {
		t.Error("Exit button did not request exit")
	}
}

// withPrefix returns OS.update with a trampoline call at its start.
func withPrefix(t *testing.T, h *Host, argc, results int) *bytecode.Method {
	t.Helper()
	orig, _ := h.Routine("OS.update")
	body, err := bytecode.Decode(orig)
	if err != nil {
		t.Fatal(err)
	}
	head := []*bytecode.Instruction{
		bytecode.New(bytecode.OpPushSelf, 0),
		bytecode.New(bytecode.OpPushTemp, 0),
		bytecode.NewTrampoline(body.AddLiteral("tick"), argc, results),
	}
	body.Instrs = append(head, body.Instrs...)
	m, err := body.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestReplaceRoutineAndTrampoline(t *testing.T) {
	h := New()
	var got []any
	tick := host.Trampoline{Name: "tick", Argc: 2, Fn: func(args []any) ([]any, error) {
		got = args
		return nil, nil
	}}

	m := withPrefix(t, h, 2, 0)
	if err := h.ReplaceRoutine(m); !errors.Is(err, ErrUnboundTrampoline) {
		t.Errorf("ReplaceRoutine before bind = %v, want ErrUnboundTrampoline", err)
	}
	if err := h.BindTrampoline(tick); err != nil {
		t.Fatalf("BindTrampoline: %v", err)
	}
	if err := h.ReplaceRoutine(m); err != nil {
		t.Fatalf("ReplaceRoutine: %v", err)
	}
	if err := h.Update(0.5); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got) != 2 || got[0] != any(h.Session()) || got[1] != any(0.5) {
		t.Errorf("trampoline args = %v", got)
	}

	if err := h.ReplaceRoutine(withPrefix(t, h, 2, 1)); !errors.Is(err, bytecode.ErrStackImbalance) {
		t.Errorf("unbalanced ReplaceRoutine = %v, want ErrStackImbalance", err)
	}
	tick.Results = 1
	if err := h.BindTrampoline(tick); !errors.Is(err, host.ErrTrampolineConflict) {
		t.Errorf("rebind with new signature = %v, want ErrTrampolineConflict", err)
	}
}

func TestReplaceUnknownRoutine(t *testing.T) {
	h := New()
	m := &bytecode.Method{Name: "Nope.run", Code: []byte{byte(bytecode.OpReturnSelf)}}
	if err := h.ReplaceRoutine(m); !errors.Is(err, host.ErrNoRoutine) {
		t.Errorf("ReplaceRoutine = %v, want ErrNoRoutine", err)
	}
	if _, err := h.Run("Nope.run", nil); !errors.Is(err, host.ErrNoRoutine) {
		t.Errorf("Run = %v, want ErrNoRoutine", err)
	}
}

func TestTrampolineResultCount(t *testing.T) {
	h := New()
	if err := h.BindTrampoline(host.Trampoline{Name: "tick", Argc: 2, Fn: func([]any) ([]any, error) {
		return []any{true}, nil
	}}); err != nil {
		t.Fatal(err)
	}
	if err := h.ReplaceRoutine(withPrefix(t, h, 2, 0)); err != nil {
		t.Fatal(err)
	}
	if err := h.Update(0.1); !errors.Is(err, ErrTrampolineResults) {
		t.Errorf("Update = %v, want ErrTrampolineResults", err)
	}
}

func TestInterpreterPrimitives(t *testing.T) {
	tests := []struct {
		name string
		emit func(b *bytecode.Builder, m *bytecode.Method)
		want any
	}{
		{"plus", func(b *bytecode.Builder, _ *bytecode.Method) {
			b.EmitInt8(bytecode.OpPushInt8, 2)
			b.EmitInt32(bytecode.OpPushInt32, 40000)
			b.Emit(bytecode.OpSendPlus)
		}, 40002},
		{"string concat", func(b *bytecode.Builder, m *bytecode.Method) {
			b.EmitUint16(bytecode.OpPushLiteral, uint16(m.AddLiteral("Port")))
			b.EmitUint16(bytecode.OpPushLiteral, uint16(m.AddLiteral("Hack")))
			b.Emit(bytecode.OpSendPlus)
		}, "PortHack"},
		{"int64 literal equals int", func(b *bytecode.Builder, m *bytecode.Method) {
			b.EmitUint16(bytecode.OpPushLiteral, uint16(m.AddLiteral(int64(7))))
			b.EmitInt8(bytecode.OpPushInt8, 7)
			b.Emit(bytecode.OpSendEQ)
		}, true},
		{"ge", func(b *bytecode.Builder, _ *bytecode.Method) {
			b.EmitInt8(bytecode.OpPushInt8, 3)
			b.EmitInt8(bytecode.OpPushInt8, 5)
			b.Emit(bytecode.OpSendGE)
		}, false},
		{"string size", func(b *bytecode.Builder, m *bytecode.Method) {
			b.EmitUint16(bytecode.OpPushLiteral, uint16(m.AddLiteral("abc")))
			b.Emit(bytecode.OpSendSize)
		}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			m := &bytecode.Method{Name: "test"}
			b := bytecode.NewBuilder()
			tt.emit(b, m)
			b.Emit(bytecode.OpReturnTop)
			m.Code = b.Bytes()
			got, err := h.execute(m, nil, nil)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if got != tt.want {
				t.Errorf("result = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestInterpreterErrors(t *testing.T) {
	h := New()
	m := &bytecode.Method{Name: "bad"}
	b := bytecode.NewBuilder()
	b.Emit(bytecode.OpPushNil)
	b.EmitUint16(bytecode.OpPushField, uint16(m.AddLiteral("exes")))
	b.Emit(bytecode.OpReturnTop)
	m.Code = b.Bytes()
	if _, err := h.execute(m, nil, nil); !errors.Is(err, ErrNoField) {
		t.Errorf("field of nil = %v, want ErrNoField", err)
	}

	m = &bytecode.Method{Name: "bad"}
	b = bytecode.NewBuilder()
	b.Emit(bytecode.OpPushTrue)
	b.EmitSend(uint16(m.AddLiteral("frobnicate")), 0)
	b.Emit(bytecode.OpReturnTop)
	m.Code = b.Bytes()
	if _, err := h.execute(m, nil, nil); !errors.Is(err, ErrNoSelector) {
		t.Errorf("send to bool = %v, want ErrNoSelector", err)
	}
}
