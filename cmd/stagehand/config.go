// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/config"
	"github.com/stagehand-cli/stagehand/internal/selfupdate"
)

// newConfigCommand creates the `stagehand config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage stagehand configuration",
		Long: `Manage stagehand configuration.

Configuration is stored in:
  - Linux: ~/.config/stagehand/config.cue
  - macOS: ~/Library/Application Support/stagehand/config.cue
  - Windows: %APPDATA%\stagehand\config.cue

Every key can be overridden with an environment variable named
STAGEHAND_<SECTION>_<KEY>, e.g. STAGEHAND_UPDATE_RETRIES=5.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := showConfig(cmd.Context(), cmd.OutOrStdout(), app.flags.configPath); err != nil {
				app.reportError(err)
				return &ExitError{Code: classifyUpdateExitCode(err), Err: err}
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.OutOrStdout())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration and data paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd.OutOrStdout())
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, w io.Writer, configPath string) error {
	cfg, source, err := config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: configPath})
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if source != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	dataDir := cfg.Update.DataDir
	if dataDir == "" {
		if resolved, dirErr := config.DataDir(); dirErr == nil {
			dataDir = resolved + " " + SubtitleStyle.Render("(default)")
		}
	}

	fmt.Fprintf(w, "%s:\n", keyStyle.Render("update"))
	fmt.Fprintf(w, "  repository: %s\n", valueStyle.Render(cfg.Update.Repository))
	fmt.Fprintf(w, "  data_dir: %s\n", valueStyle.Render(dataDir))
	fmt.Fprintf(w, "  allow_unverified: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Update.AllowUnverified)))
	fmt.Fprintf(w, "  retries: %s\n", valueStyle.Render(fmt.Sprintf("%d", cfg.Update.Retries)))
	fmt.Fprintf(w, "  retention_days: %s\n", valueStyle.Render(fmt.Sprintf("%d", cfg.Update.RetentionDays)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	if dir, dirErr := config.ResolveDataDir(cfg); dirErr == nil {
		if receipt, receiptErr := selfupdate.ReadReceipt(dir); receiptErr == nil {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%s: %s (installed %s)\n", keyStyle.Render("Installed version"),
				valueStyle.Render(receipt.Version), receipt.InstalledAt.Format("2006-01-02"))
		}
	}

	return nil
}

func initConfig(w io.Writer) error {
	path, err := config.CreateDefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Fprintf(w, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(w io.Writer) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(w, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))

	if dataDir, dirErr := config.DataDir(); dirErr == nil {
		fmt.Fprintf(w, "Data directory: %s\n", dataDir)
	}

	return nil
}
