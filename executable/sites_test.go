package executable

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/event"
	"github.com/prodzpod/Hacknet-Pathfinder/host/sim"
	"github.com/prodzpod/Hacknet-Pathfinder/patch"
)

func patchedHost(t *testing.T, ram int) (*sim.Host, *Manager) {
	t.Helper()
	h := sim.New(sim.WithRAM(ram))
	m := NewManager(event.NewCatalog(event.NewBus(nil)), WithPrograms(h.Programs()))
	if err := patch.NewPatcher(h).Apply("core", m.Sites()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := m.Register(mod, "tool.scan", "mod.scan.ScanExe", func() (Executable, error) {
		return &scanExe{}, nil
	}, Cost(500)); err != nil {
		t.Fatal(err)
	}
	return h, m
}

func binFolder(h *sim.Host) *sim.Folder {
	return h.Session().ThisComputer.Files.Root.Folder("bin")
}

func TestLoadFileReplacesIdentifier(t *testing.T) {
	h, m := patchedHost(t, 1000)
	bin := binFolder(h)
	if err := h.LoadFile(bin, "scan.exe", "tool.scan"); err != nil {
		t.Fatal(err)
	}
	if err := h.LoadFile(bin, "notes.txt", "tool.scan is great"); err != nil {
		t.Fatal(err)
	}
	want, _ := m.Data("tool.scan")
	if got := bin.File("scan.exe").Data(); got != want {
		t.Errorf("scan.exe data = %q, want the encoded identifier", got)
	}
	if got := bin.File("notes.txt").Data(); got != "tool.scan is great" {
		t.Errorf("notes.txt data = %q, want it untouched", got)
	}
}

func TestExeListsCustomPrograms(t *testing.T) {
	h, _ := patchedHost(t, 1000)
	bin := binFolder(h)
	ssh, _ := h.Programs().ByName("SSHcrack")
	bin.AddFile("SSHcrack.exe", ssh.Data)
	if err := h.LoadFile(bin, "scan.exe", "tool.scan"); err != nil {
		t.Fatal(err)
	}
	bin.AddFile("notes.txt", "hello")

	if err := h.Command("exe"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	want := []string{"Available Executables:\n", "SSHcrack", "scan", " "}
	if diff := cmp.Diff(want, h.Session().Output()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestLaunchCustomProgram(t *testing.T) {
	h, _ := patchedHost(t, 1000)
	if err := h.LoadFile(binFolder(h), "scan.exe", "tool.scan"); err != nil {
		t.Fatal(err)
	}

	if err := h.Command("scan 10.0.0.1"); err != nil {
		t.Fatalf("Command: %v", err)
	}
	exes := h.Session().Exes()
	if len(exes) != 1 || exes[0].Identifier() != "tool.scan" {
		t.Fatalf("exes = %v, want one tool.scan", exes)
	}
	if got := h.Session().RAMAvailable(); got != 500 {
		t.Errorf("RAMAvailable = %d, want 500", got)
	}
	e := exes[0].(*scanExe)
	if diff := cmp.Diff([]string{"10.0.0.1"}, e.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if len(h.Session().Output()) != 0 {
		t.Errorf("output = %v, want none", h.Session().Output())
	}
}

func TestLaunchCustomProgramWithoutMemory(t *testing.T) {
	h, _ := patchedHost(t, 300)
	if err := h.LoadFile(binFolder(h), "scan.exe", "tool.scan"); err != nil {
		t.Fatal(err)
	}
	if err := h.Command("scan"); err != nil {
		t.Fatal(err)
	}
	if len(h.Session().Exes()) != 0 {
		t.Error("program started without memory")
	}
	if diff := cmp.Diff([]string{MsgInsufficientMemory}, h.Session().Output()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestLaunchUnknownStillNotFound(t *testing.T) {
	h, _ := patchedHost(t, 1000)
	binFolder(h).AddFile("junk.exe", "0110")
	for _, line := range []string{"junk", "missing"} {
		h.Session().ClearOutput()
		if err := h.Command(line); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"Program not found"}, h.Session().Output()); diff != "" {
			t.Errorf("%s: output mismatch (-want +got):\n%s", line, diff)
		}
	}
}

func TestCompletedBeforeRemoval(t *testing.T) {
	h, m := patchedHost(t, 1000)
	if err := h.LoadFile(binFolder(h), "scan.exe", "tool.scan"); err != nil {
		t.Fatal(err)
	}
	if err := h.Command("scan"); err != nil {
		t.Fatal(err)
	}
	var completed []string
	var ids []uuid.UUID
	m.events.ExecutableCompleted.AddHandler(mod, 0, func(ev *event.ExecutableCompleted) {
		completed = append(completed, ev.Exe.Identifier())
		ids = append(ids, ev.ID)
	})

	e := h.Session().Exes()[0].(*scanExe)
	if err := h.Update(0.1); err != nil {
		t.Fatal(err)
	}
	if len(h.Session().Exes()) != 1 || len(completed) != 0 {
		t.Fatal("running program was removed")
	}

	e.Exit()
	if err := h.Update(0.1); err != nil {
		t.Fatal(err)
	}
	if len(h.Session().Exes()) != 0 {
		t.Error("exited program still live")
	}
	if diff := cmp.Diff([]string{"init", "completed"}, e.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tool.scan"}, completed); diff != "" {
		t.Errorf("completed mismatch (-want +got):\n%s", diff)
	}
	if e.ID == uuid.Nil || len(ids) != 1 || ids[0] != e.ID {
		t.Errorf("completed IDs = %v, want [%v]", ids, e.ID)
	}
}

func TestSitesFailWithoutAnchor(t *testing.T) {
	h := sim.New()
	stub := &bytecode.Method{Name: RoutineLaunch, Arity: 2, NumTemps: 2, Code: []byte{byte(bytecode.OpReturnSelf)}}
	if err := h.ReplaceRoutine(stub); err != nil {
		t.Fatal(err)
	}
	before := make(map[string]*bytecode.Method)
	for _, name := range h.Routines() {
		before[name], _ = h.Routine(name)
	}

	m := NewManager(event.NewCatalog(event.NewBus(nil)))
	err := patch.NewPatcher(h).Apply("core", m.Sites())
	if !errors.Is(err, patch.ErrPatternNotFound) {
		t.Fatalf("Apply = %v, want ErrPatternNotFound", err)
	}
	for _, name := range h.Routines() {
		if got, _ := h.Routine(name); got != before[name] {
			t.Errorf("%s was replaced by a failed module", name)
		}
	}
}
