package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/prodzpod/Hacknet-Pathfinder/api"
	"github.com/prodzpod/Hacknet-Pathfinder/host/sim"
)

var errQuit = errors.New("quit")

// console drives the host with terminal commands and ':' commands for the
// host's own loop.
type console struct {
	h   *sim.Host
	a   *api.API
	out io.Writer
}

func newConsole(h *sim.Host, a *api.API, out io.Writer) *console {
	return &console{h: h, a: a, out: out}
}

func (c *console) repl(in io.Reader) {
	fmt.Fprintln(c.out, "Pathfinder console (type 'exit' to quit, ':help' for commands)")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, ">> ")
		if !scanner.Scan() {
			break
		}
		err := c.run(scanner.Text())
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

// runScript runs every line of r and stops at the first error.
func (c *console) runScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		err := c.run(scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return scanner.Err()
}

func (c *console) run(line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "" || strings.HasPrefix(line, "#"):
		return nil
	case line == "exit" || line == "quit":
		return errQuit
	case strings.HasPrefix(line, ":"):
		return c.command(strings.Fields(line[1:]))
	}

	s := c.h.Session()
	s.ClearOutput()
	if err := c.h.Command(line); err != nil {
		return err
	}
	for _, text := range s.Output() {
		fmt.Fprintln(c.out, strings.TrimRight(text, "\n"))
	}
	return nil
}

func (c *console) command(args []string) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "help":
		fmt.Fprintln(c.out, "Commands:")
		fmt.Fprintln(c.out, "  <program> [args]   launch a program from the session's bin folder")
		fmt.Fprintln(c.out, "  exe                list programs")
		fmt.Fprintln(c.out, "  :update [dt]       run one session update")
		fmt.Fprintln(c.out, "  :frame [dt]        run one frame of the current screen and show it")
		fmt.Fprintln(c.out, "  :screen <name>     switch to main, options or session")
		fmt.Fprintln(c.out, "  :click <label>     click a widget on the next frame")
		fmt.Fprintln(c.out, "  :load <name> <data>  store a content file in bin")
		fmt.Fprintln(c.out, "  :ps                list live programs")
		fmt.Fprintln(c.out, "  :types             list registered executables")
		fmt.Fprintln(c.out, "  :plugins           list loaded plugins")

	case "update":
		dt, err := seconds(args[1:])
		if err != nil {
			return err
		}
		return c.h.Update(dt)

	case "frame":
		dt, err := seconds(args[1:])
		if err != nil {
			return err
		}
		if err := c.h.Frame(dt); err != nil {
			return err
		}
		for _, w := range c.h.Widgets.Frame() {
			fmt.Fprintln(c.out, w)
		}
		if c.h.ExitRequested() {
			return errQuit
		}

	case "screen":
		if len(args) != 2 {
			return fmt.Errorf("usage: :screen main|options|session")
		}
		switch args[1] {
		case "main":
			c.h.SetScreen(sim.ScreenMainMenu)
		case "options":
			c.h.SetScreen(sim.ScreenOptions)
		case "session":
			c.h.SetScreen(sim.ScreenSession)
		default:
			return fmt.Errorf("unknown screen %q", args[1])
		}

	case "click":
		if len(args) < 2 {
			return fmt.Errorf("usage: :click <label>")
		}
		c.h.Widgets.Click(strings.Join(args[1:], " "))

	case "load":
		if len(args) < 3 {
			return fmt.Errorf("usage: :load <name> <data>")
		}
		bin := c.h.Session().ThisComputer.Files.Root.Folder("bin")
		return c.h.LoadFile(bin, args[1], strings.Join(args[2:], " "))

	case "ps":
		s := c.h.Session()
		for _, e := range s.Exes() {
			fmt.Fprintf(c.out, "%s\t%d\n", e.Identifier(), e.RAMCost())
		}
		fmt.Fprintf(c.out, "free\t%d\n", s.RAMAvailable())

	case "types":
		for _, d := range c.a.Executables.Types() {
			fmt.Fprintf(c.out, "%s\t%s\t%d\t%s\n", d.LogicalID, d.TypeName, d.Cost, d.Owner)
		}

	case "plugins":
		for _, h := range c.a.Plugins.Loaded() {
			fmt.Fprintln(c.out, h)
		}

	default:
		return fmt.Errorf("unknown command :%s", args[0])
	}
	return nil
}

func seconds(args []string) (float64, error) {
	if len(args) == 0 {
		return 0.016, nil
	}
	dt, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q: %w", args[0], err)
	}
	return dt, nil
}
