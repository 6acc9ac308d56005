package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mfgames/mfgames-doap/pkg/checksum"
	"github.com/mfgames/mfgames-doap/pkg/dist"
	"github.com/mfgames/mfgames-doap/pkg/dist/codec"
)

// EnvSignPassphrase holds the passphrase for a protected --sign-key.
const EnvSignPassphrase = "MFGAMES_DOAP_SIGN_PASSPHRASE"

func (a *app) createSdistCommand() *cobra.Command {
	var (
		manifestPath string
		root         string
		distDir      string
		algorithm    string
		signKey      string
		showProgress bool
	)
	formats := newFormatsValue(codec.Gzip)

	cmd := &cobra.Command{
		Use:   "sdist",
		Short: "Build source distributions",
		Long: `Build source distributions from the package metadata.

Each archive holds <name>-<version>/ with PKG-INFO, the manifest and every
script. A checksum file is written next to each archive, and an armored
detached signature when --sign-key is given. Set SOURCE_DATE_EPOCH for
reproducible timestamps.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}

			algo, err := checksum.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}

			opts := dist.Options{
				Root:     root,
				OutDir:   distDir,
				Codecs:   formats.codecs,
				Checksum: algo,
				Logger:   a.logger,
			}

			if signKey != "" {
				signer, err := dist.LoadSigningKey(signKey, []byte(os.Getenv(EnvSignPassphrase)))
				if err != nil {
					return err
				}
				opts.Signer = signer
			}

			if showProgress {
				contents, err := dist.Contents(md, root)
				if err != nil {
					return err
				}
				bar := progressbar.NewOptions(len(contents)*len(formats.codecs),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("packaging"),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionThrottle(100*time.Millisecond),
				)
				opts.Progress = func(name string) {
					bar.Describe(name)
					bar.Add(1)
				}
				defer bar.Finish()
			}

			results, err := dist.Build(cmd.Context(), md, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%s  %s\n", r.Checksum, r.Path)
				if r.Signature != "" {
					fmt.Fprintf(out, "signature  %s\n", r.Signature)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to a JSON or YAML manifest (default: built-in)")
	cmd.Flags().StringVarP(&root, "root", "r", ".", "Project directory script paths are relative to")
	cmd.Flags().StringVarP(&distDir, "dist-dir", "d", "dist", "Directory to write archives into")
	cmd.Flags().Var(formats, "formats", "Comma-separated archive formats: "+strings.Join(codec.Names(), ", "))
	cmd.Flags().StringVar(&algorithm, "checksum", "sha256", "Checksum algorithm: sha256, sha512, blake2b or adler32")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "Armored OpenPGP private key to sign archives with")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress bar")
	return cmd
}
