// Package config handles kl27.toml run configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ezrec/kl27/asm"
)

const (
	DEFAULT_FILE       = "kl27.toml"
	DEFAULT_MAX_CYCLES = 1_000_000
)

// Config is a kl27.toml configuration.
type Config struct {
	Run      Run      `toml:"run"`
	Assemble Assemble `toml:"assemble"`
}

// Run configures execution.
type Run struct {
	MaxCycles uint64 `toml:"max_cycles"`
	Verbose   bool   `toml:"verbose"`
	Trace     bool   `toml:"trace"`
}

// Assemble configures the assembler.
type Assemble struct {
	Entry           string            `toml:"entry"`
	Compress        bool              `toml:"compress"`
	NoAutomaticMain bool              `toml:"no_automatic_main"`
	Define          map[string]string `toml:"define"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Run: Run{
			MaxCycles: DEFAULT_MAX_CYCLES,
		},
		Assemble: Assemble{
			Entry: asm.DEFAULT_ENTRY,
		},
	}
}

// Load parses a configuration file over the defaults.
// A missing file yields the defaults.
func Load(path string) (cfg *Config, err error) {
	cfg = Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
		return
	}
	if err != nil {
		return
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
		cfg = nil
		return
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		err = fmt.Errorf("%v: unknown key %v", path, undecoded[0])
		cfg = nil
		return
	}

	return
}

// Assembler returns an assembler configured from the [assemble] table.
func (cfg *Config) Assembler() (as *asm.Assembler) {
	as = &asm.Assembler{
		Verbose:         cfg.Run.Verbose,
		NoAutomaticMain: cfg.Assemble.NoAutomaticMain,
		Entry:           cfg.Assemble.Entry,
		Compress:        cfg.Assemble.Compress,
	}

	for key, value := range cfg.Assemble.Define {
		as.Predefine(key, value)
	}

	return
}
