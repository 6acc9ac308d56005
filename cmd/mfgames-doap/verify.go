package main

import (
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/spf13/cobra"

	"github.com/mfgames/mfgames-doap/pkg/dist"
)

func (a *app) createVerifyCommand() *cobra.Command {
	var keyringPath string

	cmd := &cobra.Command{
		Use:   "verify ARCHIVE",
		Short: "Verify a source distribution",
		Long: `Verify a source distribution built by sdist.

Checks the checksum file next to the archive when present, the embedded
manifest and PKG-INFO, and that every declared script is packaged. With
--keyring the detached .asc signature must also verify.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var keyring openpgp.KeyRing
			if keyringPath != "" {
				entities, err := dist.LoadKeyRing(keyringPath)
				if err != nil {
					return err
				}
				keyring = entities
			}

			report, err := dist.Verify(args[0], keyring, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s %s\n", report.Metadata.Name, report.Metadata.Version)
			if report.Checksum != "" {
				fmt.Fprintf(out, "  checksum: %s\n", report.Checksum)
			}
			if report.Signer != "" {
				fmt.Fprintf(out, "  signed by: %s\n", report.Signer)
			}
			fmt.Fprintf(out, "  entries: %d\n", len(report.Entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&keyringPath, "keyring", "", "Armored OpenPGP public key ring to check the signature against")
	return cmd
}
