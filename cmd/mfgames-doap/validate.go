package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

// createValidateCommand creates the validate subcommand
func (a *app) createValidateCommand() *cobra.Command {
	var manifestPath, root string
	var checkVCS bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the package metadata",
		Long: `Check the package metadata without building anything.

Every field must be a non-empty string, the version must be a semantic
version, and every script must exist as a regular file under --root. With
--vcs, scripts must also be tracked by the git repository containing --root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}

			a.logger.Info("validating manifest", "name", md.Name, "root", root)
			if err := md.Validate(root); err != nil {
				return err
			}

			if checkVCS {
				untracked, err := manifest.CheckTracked(root, md.Scripts)
				if err != nil {
					return err
				}
				if len(untracked) > 0 {
					return fmt.Errorf("%w: scripts not tracked by git: %s",
						manifest.ErrInvalidManifest, strings.Join(untracked, ", "))
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s is valid\n", md.Name, md.Version)
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to a JSON or YAML manifest (default: built-in)")
	cmd.Flags().StringVarP(&root, "root", "r", ".", "Project directory script paths are relative to")
	cmd.Flags().BoolVar(&checkVCS, "vcs", false, "Also require scripts to be tracked by git")
	return cmd
}
