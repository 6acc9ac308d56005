package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/mfgames/mfgames-doap/pkg/logging"
	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

const version = "0.0.0"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	logLevel    string
	versionFlag bool
	logger      hclog.Logger
	closeLog    func() error
}

// buildStamp reports the VCS revision and commit time the toolchain recorded.
// Without a commit time the executable's modification time stands in.
func buildStamp() (revision, built string) {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				revision = s.Value
				if len(revision) > 12 {
					revision = revision[:12]
				}
			case "vcs.time":
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					built = t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	if built != "" {
		return revision, built
	}
	built = time.Now().UTC().Format(time.RFC3339)
	if exe, err := os.Executable(); err == nil {
		if fi, err := os.Stat(exe); err == nil {
			built = fi.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return revision, built
}

func newApp() *app {
	return &app{closeLog: func() error { return nil }}
}

// close releases the log output. Cobra skips post-run hooks when a command
// fails, so this runs after Execute returns instead.
func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}
	err := a.closeLog()
	a.closeLog = nil
	return err
}

// execute runs the command line in args and always closes the log output.
func (a *app) execute(ctx context.Context, args []string) error {
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing log output: %w", cerr)
	}
	return err
}

func newRootCommand() *cobra.Command {
	return newApp().rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mfgames-doap",
		Short: "Package, verify and install mfgames-doap",
		Long: `Package, verify and install mfgames-doap.

Reads the package-metadata record (the built-in one, or a JSON/YAML manifest
given with --manifest), checks it, builds source distributions from it, and
installs the scripts it declares.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, source := logging.ResolveLevel(a.logLevel)
			output, closeLog := logging.OpenOutput()
			if output == os.Stderr {
				output = cmd.ErrOrStderr()
			}
			a.closeLog = closeLog
			a.logger = logging.NewLogger("mfgames-doap", level, output)
			a.logger.Debug("log level", "level", level, "source", source)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.versionFlag {
				printVersion(cmd)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error; prefix with json: for JSON)")
	rootCmd.Flags().BoolVarP(&a.versionFlag, "version", "V", false, "Show version information")

	rootCmd.AddCommand(
		a.createInfoCommand(),
		a.createValidateCommand(),
		a.createSdistCommand(),
		a.createVerifyCommand(),
		a.createInstallCommand(),
		a.createUninstallCommand(),
		a.createStatusCommand(),
	)
	return rootCmd
}

func printVersion(cmd *cobra.Command) {
	revision, built := buildStamp()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mfgames-doap %s\n", version)
	if revision != "" {
		fmt.Fprintf(out, "Revision: %s\n", revision)
	}
	fmt.Fprintf(out, "Built: %s\n", built)
}

// loadManifest returns the manifest at path, or the built-in record when
// path is empty.
func loadManifest(path string) (*manifest.Metadata, error) {
	if path == "" {
		return manifest.Default(), nil
	}
	return manifest.Load(path)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().execute(ctx, os.Args[1:]); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
