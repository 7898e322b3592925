// Pathfinder CLI - boots the reference host with the extension core
// installed and drives it from a script or an interactive console.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prodzpod/Hacknet-Pathfinder/api"
	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/config"
	"github.com/prodzpod/Hacknet-Pathfinder/examples/examplemod"
	"github.com/prodzpod/Hacknet-Pathfinder/host/sim"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/metrics"
	"github.com/prodzpod/Hacknet-Pathfinder/patch"
)

func main() {
	configDir := flag.String("config", ".", "Directory to search upwards for pathfinder.toml")
	verbose := flag.Int("v", 0, "Extra log verbosity on top of the config")
	ram := flag.Int("ram", 0, "Session memory (overrides [host] ram)")
	script := flag.String("script", "", "Run console commands from a file instead of stdin")
	disasm := flag.String("disasm", "", "Print the patched bytecode of a routine (\"all\" for every routine) and exit")
	journal := flag.String("journal", "", "Write the patch journal (CBOR) to this file")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides [metrics] address)")
	noUpdate := flag.Bool("no-update", false, "Skip the release check")
	noExample := flag.Bool("no-example", false, "Do not load the example extension")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pathfinder [options]\n\n")
		fmt.Fprintf(os.Stderr, "Starts the reference host with the extension core and runs console commands.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pathfinder                          # Interactive console\n")
		fmt.Fprintf(os.Stderr, "  pathfinder -script demo.txt         # Run a command script\n")
		fmt.Fprintf(os.Stderr, "  pathfinder -disasm OS.update        # Show a patched routine\n")
		fmt.Fprintf(os.Stderr, "  pathfinder -metrics-addr :9090      # Export counters\n")
	}
	flag.Parse()

	cfg, err := config.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	logging.Configure(cfg.Logging.Verbosity+*verbose, cfg.Logging.File)
	if *ram > 0 {
		cfg.Host.RAM = *ram
	}
	if *metricsAddr != "" {
		cfg.Metrics.Address = *metricsAddr
	}

	var m metrics.Metrics = metrics.Noop{}
	if cfg.Metrics.Address != "" {
		m = metrics.NewProm(cfg.Metrics.Namespace, nil)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "Metrics server error: %v\n", err)
			}
		}()
	}

	h := sim.New(sim.WithRAM(cfg.Host.RAM))
	opts := []api.Option{
		api.WithConfig(cfg),
		api.WithMetrics(m),
		api.WithPrograms(h.Programs()),
		api.WithExit(h.Exit),
	}
	if !*noUpdate {
		opts = append(opts, api.WithUpdater(nil))
	}
	a, err := api.Init(h, h.Widgets, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer api.Shutdown()

	if !*noExample {
		if err := a.LoadPlugins(examplemod.New(a)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	if *journal != "" {
		if err := writeJournal(a.Patcher.Journal(), *journal); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *disasm != "" {
		if err := printRoutines(h, *disasm); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	c := newConsole(h, a, os.Stdout)
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := c.runScript(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	c.repl(os.Stdin)
}

func writeJournal(j *patch.Journal, path string) error {
	data, err := patch.MarshalJournal(j)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printRoutines(h *sim.Host, name string) error {
	names := []string{name}
	if name == "all" {
		names = h.Routines()
	}
	for _, n := range names {
		m, ok := h.Routine(n)
		if !ok {
			return fmt.Errorf("no routine %q (have %s)", n, strings.Join(h.Routines(), ", "))
		}
		fmt.Print(bytecode.DisassembleMethod(m))
		fmt.Println()
	}
	return nil
}
