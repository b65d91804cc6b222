package emu

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

// collectROMImages recursively collects .gb/.gbc files under dir.
func collectROMImages(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".gb", ".gbc":
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// runSerialTestROM runs a Blargg-style hardware test ROM to completion,
// watching its serial port output for the conventional "Passed"/"Failed"
// banner rather than a CPU-level hook.
func runSerialTestROM(t *testing.T, romPath string, maxFrames int) {
	t.Helper()
	m := New(Config{})

	var serial bytes.Buffer
	if err := m.LoadROMFromFile(romPath); err != nil {
		t.Fatalf("load ROM: %v", err)
	}
	// LoadROMFromFile rebuilds the Bus, so the writer must attach after.
	m.SetSerialWriter(&serial)

	for i := 0; i < maxFrames; i++ {
		m.StepFrameNoRender()
		out := serial.String()
		if strings.Contains(out, "Passed") || strings.Contains(out, "passed") {
			return
		}
		if strings.Contains(out, "Failed") || strings.Contains(out, "failed") {
			t.Fatalf("%s reported failure via serial:\n%s", filepath.Base(romPath), out)
		}
	}
	t.Fatalf("timeout waiting for serial 'Passed' in %s; last output:\n%s", filepath.Base(romPath), serial.String())
}

// moduleRoot walks up from this source file to the nearest go.mod.
func moduleRoot() string {
	if _, file, _, ok := runtime.Caller(0); ok {
		dir := filepath.Dir(file)
		for {
			if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// TestBlarggSuiteOptIn scans testroms/blargg (or BLARGG_DIR) and runs every
// .gb/.gbc ROM found there. Skipped by default; set RUN_BLARGG=1 to opt in.
func TestBlarggSuiteOptIn(t *testing.T) {
	if os.Getenv("RUN_BLARGG") == "" {
		t.Skip("set RUN_BLARGG=1 and place ROMs under testroms/blargg or set BLARGG_DIR to run")
	}

	base := os.Getenv("BLARGG_DIR")
	if base == "" {
		base = filepath.Join(moduleRoot(), "testroms", "blargg")
	}
	if _, err := os.Stat(base); err != nil {
		t.Skipf("blargg ROM dir missing: %s", base)
	}

	roms, err := collectROMImages(base)
	if err != nil {
		t.Fatalf("scan ROMs: %v", err)
	}
	if len(roms) == 0 {
		t.Skipf("no ROMs found in %s", base)
	}

	maxFrames := 1800
	if v := os.Getenv("BLARGG_MAX_FRAMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxFrames = n
		}
	}

	for _, rom := range roms {
		rom := rom
		name := strings.TrimSuffix(filepath.Base(rom), filepath.Ext(rom))
		t.Run(name, func(t *testing.T) { runSerialTestROM(t, rom, maxFrames) })
	}
}
