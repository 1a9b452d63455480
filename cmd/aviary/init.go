package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aviarysim/aviary/internal/defaults"
)

// runInit seeds a working directory with a starter config and example
// profile rosters. Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Aviary workspace in %s\n", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	// The config can carry API keys, so it gets restricted permissions.
	if err := writeIfMissing(w, filepath.Join(dir, "aviary.yaml"), defaults.ConfigYAML, 0o600); err != nil {
		return err
	}
	if err := writeIfMissing(w, filepath.Join(dir, "profiles.example.csv"), defaults.ProfilesCSV, 0o644); err != nil {
		return err
	}
	if err := writeIfMissing(w, filepath.Join(dir, "profiles.example.json"), defaults.ProfilesJSON, 0o644); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit aviary.yaml to point at your model server and roster.")
	fmt.Fprintln(w, "Then start a run with: aviary run -config aviary.yaml")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never overwrites user customizations.
func writeIfMissing(w io.Writer, path string, content []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		if os.IsExist(err) {
			fmt.Fprintf(w, "  - %s exists, skipping\n", path)
			return nil
		}
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", path)
	return nil
}
