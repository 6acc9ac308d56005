package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfgames/mfgames-doap/pkg/install"
	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

func (a *app) createInstallCommand() *cobra.Command {
	var manifestPath, root, archive, prefixDir, mode string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the package scripts",
		Long: `Install the scripts declared by the package metadata into <prefix>/bin.

Installs from the project directory (--root), or from a source distribution
(--archive). The prefix defaults to MFGAMES_DOAP_PREFIX, then ~/.local.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fileMode, err := install.ParseMode(mode)
			if err != nil {
				return err
			}
			in := &install.Installer{Prefix: prefixDir, Mode: fileMode, Logger: a.logger}

			var receipt *install.Receipt
			if archive != "" {
				if manifestPath != "" {
					return fmt.Errorf("--manifest and --archive cannot be combined")
				}
				receipt, err = in.InstallArchive(cmd.Context(), archive)
			} else {
				var md *manifest.Metadata
				md, err = loadManifest(manifestPath)
				if err != nil {
					return err
				}
				receipt, err = in.Install(cmd.Context(), md, root)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range receipt.Files {
				fmt.Fprintln(out, f.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to a JSON or YAML manifest (default: built-in)")
	cmd.Flags().StringVarP(&root, "root", "r", ".", "Project directory script paths are relative to")
	cmd.Flags().StringVarP(&archive, "archive", "a", "", "Install from a source distribution instead of --root")
	cmd.Flags().StringVarP(&prefixDir, "prefix", "p", "", "Installation prefix")
	cmd.Flags().StringVar(&mode, "mode", "0755", "Octal permissions for installed scripts")
	return cmd
}

func (a *app) createUninstallCommand() *cobra.Command {
	var prefixDir string

	cmd := &cobra.Command{
		Use:   "uninstall [NAME]",
		Short: "Remove installed scripts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := packageName(args)
			in := &install.Installer{Prefix: prefixDir, Logger: a.logger}

			removed, err := in.Uninstall(name)
			if err != nil {
				return err
			}
			for _, p := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&prefixDir, "prefix", "p", "", "Installation prefix")
	return cmd
}

func (a *app) createStatusCommand() *cobra.Command {
	var prefixDir string

	cmd := &cobra.Command{
		Use:   "status [NAME]",
		Short: "Show what is installed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := packageName(args)
			in := &install.Installer{Prefix: prefixDir, Logger: a.logger}

			receipt, err := in.Installed(name)
			if err != nil {
				return err
			}

			state := "current"
			if !in.IsCurrent(receipt.Name, receipt.Version) {
				state = "modified"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", receipt.Name, receipt.Version, state)
			fmt.Fprintf(out, "  installed: %s\n", receipt.Timestamp.Format("2006-01-02T15:04:05Z"))
			for _, f := range receipt.Files {
				fmt.Fprintf(out, "  %s\n", f.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&prefixDir, "prefix", "p", "", "Installation prefix")
	return cmd
}

func packageName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return manifest.Default().Name
}
