package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/paths"
	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
)

// defaultDataDirName is the data_dir written into a new config.yaml. It is
// relative, so the database lives beside the config.
const defaultDataDirName = "data"

type initResult struct {
	ConfigDir     string `json:"config_dir"`
	DataDir       string `json:"data_dir"`
	ConfigWritten bool   `json:"config_written"`
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a veilmarket workspace",
		Long:  "Create the configuration directory and config.yaml, then create the database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit()
		},
	}
}

func (a *app) runInit() error {
	dataValue := a.settings.DataDir
	if dataValue == "" && a.flags.dataDir == "" {
		dataValue = defaultDataDirName
	}
	written, err := writeConfigIfMissing(a.configDir, defaultConfigFile(dataValue))
	if err != nil {
		return err
	}
	if written {
		// Re-read so the new file's data_dir takes effect.
		if err := a.load(); err != nil {
			return err
		}
	}
	if err := a.withBackend(func(*sqlite.Backend) error { return nil }); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	a.logger.Info("workspace initialized",
		"event", "workspace_initialized",
		"module", "cli",
		"config_dir", a.configDir,
		"data_dir", a.dataDir,
	)

	res := initResult{ConfigDir: a.configDir, DataDir: a.dataDir, ConfigWritten: written}
	return a.emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "Initialized veilmarket workspace\nconfig: %s\ndata:   %s\n",
			paths.ConfigFile(a.configDir), a.dataDir)
	})
}
