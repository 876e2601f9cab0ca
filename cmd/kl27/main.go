// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/ezrec/kl27/config"
	"github.com/ezrec/kl27/cpu"
	"github.com/ezrec/kl27/emulator"
	"github.com/ezrec/kl27/image"
)

func main() {
	var compile string
	var exe string
	var output string
	var conf string
	var maxCycles uint64
	var verbose bool
	var trace bool

	flag.StringVar(&compile, "c", "", ".klt file to compile")
	flag.StringVar(&exe, "x", "", ".k27 image to execute")
	flag.StringVar(&output, "o", "", "Write compiled image, do not execute")
	flag.StringVar(&conf, "config", config.DEFAULT_FILE, "Configuration file")
	flag.Uint64Var(&maxCycles, "n", 0, "Maximum cycles to run (0 for configured)")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.BoolVar(&trace, "t", false, "Print CPU state and history after the run")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	cfg, err := config.Load(conf)
	if err != nil {
		log.Fatal(err)
	}
	cfg.Run.Verbose = cfg.Run.Verbose || verbose
	cfg.Run.Trace = cfg.Run.Trace || trace
	if maxCycles != 0 {
		cfg.Run.MaxCycles = maxCycles
	}

	var prog cpu.Program

	switch {
	case len(compile) != 0 && len(exe) != 0:
		log.Fatalf("%v: -c and -x are exclusive", os.Args[0])
	case len(compile) != 0:
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		p, err := cfg.Assembler().Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		if len(output) != 0 {
			err = p.Save(output)
			if err != nil {
				log.Fatalf("%v: %v", output, err)
			}
			return
		}
		prog = p
	case len(exe) != 0:
		img, err := image.Load(exe)
		if err != nil {
			log.Fatal(err)
		}
		prog = img
	default:
		log.Fatalf("%v: one of -c or -x is required", os.Args[0])
	}

	emu, err := emulator.NewEmulator(prog)
	if err != nil {
		log.Fatal(err)
	}
	emu.Verbose = cfg.Run.Verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cycles, err := emu.Run(ctx, cfg.Run.MaxCycles)

	if cfg.Run.Trace {
		dump(os.Stdout, emu.Snapshot(), term.IsTerminal(int(os.Stdout.Fd())))
	}

	switch {
	case errors.Is(err, emulator.ErrBudget):
		log.Printf("stopped after %d cycles", cycles)
	case err != nil:
		stop()
		log.Fatalf("cycle %d: %v", cycles, err)
	}
}

// dump writes the CPU state and recent history, highlighting faults when
// the output is a terminal.
func dump(w io.Writer, snap emulator.Snapshot, color bool) {
	state := snap.State.String()
	if color && snap.State == cpu.STATE_ERRORED {
		state = "\033[1;31m" + state + "\033[0m"
	}

	fmt.Fprintf(w, " state: %v\n", state)
	fmt.Fprintf(w, "cycles: %d\n", snap.Cycles)
	fmt.Fprintf(w, "    pc: %05x\n", snap.Pc)
	for n, val := range snap.Registers {
		fmt.Fprintf(w, "    r%d: %04X\n", n, val)
	}
	fmt.Fprintf(w, " stack: %d\n", len(snap.Stack))
	if len(snap.LastError) != 0 {
		fmt.Fprintf(w, " error: %v\n", snap.LastError)
	}

	fmt.Fprintf(w, "recent:\n")
	for _, ins := range snap.Recent {
		fmt.Fprintf(w, "  %v\n", ins)
	}

	fmt.Fprintf(w, " jumps:\n")
	for _, jump := range snap.Jumps {
		fmt.Fprintf(w, "  %05x -> %05x\n", jump.From, jump.To)
	}
}
