package sim

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/prodzpod/Hacknet-Pathfinder/host"
)

// Object is a host object reachable from routines through PUSH_FIELD and
// SEND.
type Object interface {
	Field(name string) (any, bool)
	Send(h *Host, selector string, args []any) (any, error)
}

func notUnderstood(rcvr any, selector string) error {
	return fmt.Errorf("%w: %s sent to %T", ErrNoSelector, selector, rcvr)
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// List is the host's growable array.
type List struct {
	Items []any
}

// NewList returns a list holding items.
func NewList(items ...any) *List {
	return &List{Items: items}
}

// Strings implements host.StringList.
func (l *List) Strings() []string { return stringsOf(l) }

func (l *List) Field(string) (any, bool) { return nil, false }

func (l *List) Send(_ *Host, selector string, args []any) (any, error) {
	switch selector {
	case "add:":
		l.Items = append(l.Items, args[0])
		return l, nil
	case "removeAt:":
		i, ok := asInt(args[0])
		if !ok || i < 0 || i >= len(l.Items) {
			return nil, fmt.Errorf("%w: removeAt: %v of %d", ErrIndexOutOfBounds, args[0], len(l.Items))
		}
		l.Items = slices.Delete(l.Items, i, i+1)
		return l, nil
	case "size":
		return len(l.Items), nil
	}
	return nil, notUnderstood(l, selector)
}

// ---------------------------------------------------------------------------
// File system
// ---------------------------------------------------------------------------

// FileEntry is a file in a host folder.
type FileEntry struct {
	name string
	data string
}

// NewFile returns a file entry.
func NewFile(name, data string) *FileEntry {
	return &FileEntry{name: name, data: data}
}

func (f *FileEntry) Name() string { return f.name }
func (f *FileEntry) Data() string { return f.data }

func (f *FileEntry) Field(name string) (any, bool) {
	switch name {
	case "name":
		return f.name, true
	case "data":
		return f.data, true
	}
	return nil, false
}

func (f *FileEntry) Send(_ *Host, selector string, _ []any) (any, error) {
	return nil, notUnderstood(f, selector)
}

// Folder is a directory of a computer's file system.
type Folder struct {
	name    string
	folders *List
	files   *List
}

// NewFolder returns an empty folder.
func NewFolder(name string) *Folder {
	return &Folder{name: name, folders: NewList(), files: NewList()}
}

func (f *Folder) Name() string { return f.name }

// Files implements host.Folder.
func (f *Folder) Files() []host.File {
	out := make([]host.File, 0, len(f.files.Items))
	for _, it := range f.files.Items {
		out = append(out, it.(*FileEntry))
	}
	return out
}

// Folder returns the direct subfolder with the name, or nil.
func (f *Folder) Folder(name string) *Folder {
	for _, it := range f.folders.Items {
		if sub := it.(*Folder); sub.name == name {
			return sub
		}
	}
	return nil
}

// File returns the file with the name, or nil.
func (f *Folder) File(name string) *FileEntry {
	for _, it := range f.files.Items {
		if file := it.(*FileEntry); file.name == name {
			return file
		}
	}
	return nil
}

// AddFolder appends a subfolder and returns it.
func (f *Folder) AddFolder(name string) *Folder {
	sub := NewFolder(name)
	f.folders.Items = append(f.folders.Items, sub)
	return sub
}

// AddFile appends a file, replacing a file of the same name.
func (f *Folder) AddFile(name, data string) *FileEntry {
	if existing := f.File(name); existing != nil {
		existing.data = data
		return existing
	}
	file := NewFile(name, data)
	f.files.Items = append(f.files.Items, file)
	return file
}

func (f *Folder) Field(name string) (any, bool) {
	switch name {
	case "name":
		return f.name, true
	case "folders":
		return f.folders, true
	case "files":
		return f.files, true
	}
	return nil, false
}

func (f *Folder) Send(_ *Host, selector string, args []any) (any, error) {
	switch selector {
	case "searchForFolder:", "searchForFile:", "addFile:data:":
		name, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a name", ErrTypeMismatch, selector)
		}
		switch selector {
		case "searchForFolder:":
			if sub := f.Folder(name); sub != nil {
				return sub, nil
			}
		case "searchForFile:":
			if file := f.File(name); file != nil {
				return file, nil
			}
		default:
			data, ok := args[1].(string)
			if !ok {
				return nil, fmt.Errorf("%w: addFile:data: expects text data", ErrTypeMismatch)
			}
			f.AddFile(name, data)
			return f, nil
		}
		return nil, nil
	}
	return nil, notUnderstood(f, selector)
}

// FileSystem is the file tree of a computer.
type FileSystem struct {
	Root *Folder
}

func (fs *FileSystem) Field(name string) (any, bool) {
	if name == "root" {
		return fs.Root, true
	}
	return nil, false
}

func (fs *FileSystem) Send(_ *Host, selector string, _ []any) (any, error) {
	return nil, notUnderstood(fs, selector)
}

// Computer is a node of the host's network.
type Computer struct {
	Name        string
	IP          string
	Files       *FileSystem
	ProxyActive bool
}

// NewComputer returns a computer with the host's standard folder layout:
// home, log, bin, sys.
func NewComputer(name, ip string) *Computer {
	root := NewFolder("")
	for _, dir := range []string{"home", "log", "bin", "sys"} {
		root.AddFolder(dir)
	}
	return &Computer{Name: name, IP: ip, Files: &FileSystem{Root: root}}
}

func (c *Computer) Field(name string) (any, bool) {
	switch name {
	case "name":
		return c.Name, true
	case "ip":
		return c.IP, true
	case "files":
		return c.Files, true
	case "proxyActive":
		return c.ProxyActive, true
	}
	return nil, false
}

func (c *Computer) Send(_ *Host, selector string, _ []any) (any, error) {
	return nil, notUnderstood(c, selector)
}

// ---------------------------------------------------------------------------
// Programs: built-in program table
// ---------------------------------------------------------------------------

// Builtin is a program shipped with the host.
type Builtin struct {
	Name    string
	Data    string
	RAMCost int
	Runtime float64
}

// Programs is the table of built-in programs. It is the Programs global of
// routines.
type Programs struct {
	byData map[string]Builtin
	order  []string
}

// builtinData derives a program data blob in the shape the host uses: the
// binary expansion of a tag.
func builtinData(name string) string {
	var out []byte
	for _, b := range []byte("HacknetExe:" + name) {
		out = strconv.AppendUint(out, uint64(b), 2)
	}
	return string(out)
}

// NewPrograms returns the stock table.
func NewPrograms() *Programs {
	p := &Programs{byData: make(map[string]Builtin)}
	for _, b := range []Builtin{
		{Name: "SSHcrack", RAMCost: 240, Runtime: 3},
		{Name: "FTPBounce", RAMCost: 210, Runtime: 3},
		{Name: "PortHack", RAMCost: 400, Runtime: 6},
		{Name: "Tutorial", RAMCost: 80, Runtime: 1},
	} {
		b.Data = builtinData(b.Name)
		p.Add(b)
	}
	return p
}

// Add registers a built-in program.
func (p *Programs) Add(b Builtin) {
	if _, ok := p.byData[b.Data]; !ok {
		p.order = append(p.order, b.Data)
	}
	p.byData[b.Data] = b
}

// Lookup returns the built-in program with the data blob.
func (p *Programs) Lookup(data string) (Builtin, bool) {
	b, ok := p.byData[data]
	return b, ok
}

// ByName returns the built-in program with the name.
func (p *Programs) ByName(name string) (Builtin, bool) {
	for _, d := range p.order {
		if b := p.byData[d]; b.Name == name {
			return b, true
		}
	}
	return Builtin{}, false
}

// BuiltinExecutable implements host.Programs.
func (p *Programs) BuiltinExecutable(data string) (string, bool) {
	b, ok := p.byData[data]
	return b.Name, ok
}

func (p *Programs) Field(string) (any, bool) { return nil, false }

func (p *Programs) Send(_ *Host, selector string, args []any) (any, error) {
	if selector == "isBuiltinData:" {
		data, _ := args[0].(string)
		_, ok := p.byData[data]
		return ok, nil
	}
	return nil, notUnderstood(p, selector)
}

// builtinExe is a live instance of a built-in program. It exits after its
// runtime elapses.
type builtinExe struct {
	b       Builtin
	args    []string
	elapsed float64
}

func (e *builtinExe) Identifier() string { return e.b.Name }
func (e *builtinExe) RAMCost() int       { return e.b.RAMCost }
func (e *builtinExe) Update(dt float64)  { e.elapsed += dt }
func (e *builtinExe) Draw(float64)       {}
func (e *builtinExe) IsExiting() bool    { return e.elapsed >= e.b.Runtime }

// ---------------------------------------------------------------------------
// Gui: draw batch bookkeeping
// ---------------------------------------------------------------------------

// Gui is the GuiData global. It counts draw batches so tests can see that
// code ran inside one.
type Gui struct {
	Depth   int
	Batches int
}

func (g *Gui) Field(string) (any, bool) { return nil, false }

func (g *Gui) Send(_ *Host, selector string, _ []any) (any, error) {
	switch selector {
	case "startDraw":
		g.Depth++
		return nil, nil
	case "endDraw":
		if g.Depth == 0 {
			return nil, fmt.Errorf("endDraw without startDraw")
		}
		g.Depth--
		g.Batches++
		return nil, nil
	}
	return nil, notUnderstood(g, selector)
}

// ComputerLoader is the receiver of ComputerLoader.loadFile.
type ComputerLoader struct{}

func (ComputerLoader) Field(string) (any, bool) { return nil, false }

func (l ComputerLoader) Send(_ *Host, selector string, _ []any) (any, error) {
	return nil, notUnderstood(l, selector)
}
