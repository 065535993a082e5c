// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package capture

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"github.com/juju/utils/v4/fs"
)

// Artifact filenames within the staging directory.
const (
	rulesFile        = "ruleset.txt"
	appPoolsFile     = "apppools.xml"
	sitesFile        = "sites.xml"
	serviceInventory = "services.tsv"
)

// StandardTasks returns the fixed capture sequence in execution
// order. The order is part of the tool's contract; do not reorder.
func StandardTasks() []Task {
	return []Task{
		exportRulesTask(),
		exportWebConfigTask(),
		backupWebStateTask(),
		serviceInventoryTask(),
		copyConfigTask(),
	}
}

// exportRulesTask dumps the host's structured rule collection using
// the configured rules tool.
func exportRulesTask() Task {
	const subdir = "rules"
	return Task{
		Name:   "export-rules",
		Subdir: subdir,
		Run: func(ctx context.Context, env *Env, outDir string) ([]string, error) {
			outFile := filepath.Join(outDir, rulesFile)
			command := fmt.Sprintf("%s list ruleset > %s",
				utils.ShQuote(env.Tools.RulesTool), utils.ShQuote(outFile))
			if _, err := env.RunCommand(command); err != nil {
				return nil, errors.Trace(err)
			}
			if err := assertProduced(outFile); err != nil {
				return nil, errors.Trace(err)
			}
			return []string{path.Join(subdir, rulesFile)}, nil
		},
	}
}

// exportWebConfigTask exports the web tier's application pool and site
// definitions as XML.
func exportWebConfigTask() Task {
	const subdir = "webconfig"
	return Task{
		Name:   "export-web-config",
		Subdir: subdir,
		Run: func(ctx context.Context, env *Env, outDir string) ([]string, error) {
			exports := []struct {
				category string
				file     string
			}{
				{"apppools", appPoolsFile},
				{"sites", sitesFile},
			}
			var outputs []string
			for _, export := range exports {
				outFile := filepath.Join(outDir, export.file)
				command := fmt.Sprintf("%s list %s --xml > %s",
					utils.ShQuote(env.Tools.WebAdmin), export.category, utils.ShQuote(outFile))
				if _, err := env.RunCommand(command); err != nil {
					return nil, errors.Trace(err)
				}
				if err := assertProduced(outFile); err != nil {
					return nil, errors.Trace(err)
				}
				outputs = append(outputs, path.Join(subdir, export.file))
			}
			return outputs, nil
		},
	}
}

// backupWebStateTask asks the web tier for a full state backup named
// after the run, then copies the produced tree into staging.
func backupWebStateTask() Task {
	const subdir = "webstate"
	return Task{
		Name:   "backup-web-state",
		Subdir: subdir,
		Run: func(ctx context.Context, env *Env, outDir string) ([]string, error) {
			command := fmt.Sprintf("%s add backup %s",
				utils.ShQuote(env.Tools.WebAdmin), utils.ShQuote(env.RunID))
			if _, err := env.RunCommand(command); err != nil {
				return nil, errors.Trace(err)
			}
			source := filepath.Join(env.Tools.WebBackupRoot, env.RunID)
			target := filepath.Join(outDir, env.RunID)
			if err := fs.Copy(source, target); err != nil {
				return nil, errors.Annotatef(err, "copying web state backup %q", env.RunID)
			}
			return []string{path.Join(subdir, env.RunID)}, nil
		},
	}
}

// serviceInventoryTask tabulates every service unit on the host.
func serviceInventoryTask() Task {
	const subdir = "services"
	return Task{
		Name:   "service-inventory",
		Subdir: subdir,
		Run: func(ctx context.Context, env *Env, outDir string) ([]string, error) {
			services, err := ListServices(ctx)
			if err != nil {
				return nil, errors.Trace(err)
			}
			outFile := filepath.Join(outDir, serviceInventory)
			file, err := os.Create(outFile)
			if err != nil {
				return nil, errors.Trace(err)
			}
			defer file.Close()
			if err := WriteInventory(file, services); err != nil {
				return nil, errors.Trace(err)
			}
			return []string{path.Join(subdir, serviceInventory)}, nil
		},
	}
}

// copyConfigTask captures the designated configuration file verbatim.
func copyConfigTask() Task {
	const subdir = "config"
	return Task{
		Name:   "copy-config",
		Subdir: subdir,
		Run: func(ctx context.Context, env *Env, outDir string) ([]string, error) {
			name := filepath.Base(env.Tools.SourceConfig)
			target := filepath.Join(outDir, name)
			if err := fs.Copy(env.Tools.SourceConfig, target); err != nil {
				return nil, errors.Annotatef(err, "copying %q", env.Tools.SourceConfig)
			}
			return []string{path.Join(subdir, name)}, nil
		},
	}
}

// assertProduced guards against tools that exit zero without writing
// their output file.
func assertProduced(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Trace(err)
	}
	if info.Size() == 0 {
		return errors.Errorf("%q is empty", path)
	}
	return nil
}
