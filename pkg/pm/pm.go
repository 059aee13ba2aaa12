// Package pm figures out which package manager a project uses (by the lock
// file it leaves behind) and runs its install command after a migration.
package pm

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/depshift/depshift/internal/utils"
)

type Manager string

const (
	Npm  Manager = "npm"
	Yarn Manager = "yarn"
	Pnpm Manager = "pnpm"
	Bun  Manager = "bun"
)

// lockFiles maps lock files to managers, in detection precedence order.
var lockFiles = []struct {
	file    string
	manager Manager
}{
	{"pnpm-lock.yaml", Pnpm},
	{"yarn.lock", Yarn},
	{"bun.lockb", Bun},
}

// Detect returns the package manager for dir, falling back to npm when no
// known lock file is present.
func Detect(dir string) Manager {
	for _, lf := range lockFiles {
		if _, err := os.Stat(filepath.Join(dir, lf.file)); err == nil {
			return lf.manager
		}
	}
	return Npm
}

// Installer runs a dependency reinstall in a project directory.
type Installer interface {
	Install(dir string) error
}

// ExecInstaller shells out to the detected package manager.
type ExecInstaller struct{}

func (ExecInstaller) Install(dir string) error {
	manager := Detect(dir)
	utils.Log.Info("Reinstalling dependencies with ", manager)

	cmd := exec.Command(string(manager), "install")
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s install failed: %w", manager, err)
	}
	return nil
}
