package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

func (a *app) createInfoCommand() *cobra.Command {
	var manifestPath, format string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the package metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				printText(out, md)
				return nil
			case "json", "yaml":
				data, err := manifest.Encode(md, manifest.Format(format))
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to a JSON or YAML manifest (default: built-in)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")
	return cmd
}

func printText(out io.Writer, md *manifest.Metadata) {
	fmt.Fprintf(out, "Name:        %s\n", md.Name)
	fmt.Fprintf(out, "Version:     %s\n", md.Version)
	fmt.Fprintf(out, "Description: %s\n", md.Description)
	fmt.Fprintf(out, "Author:      %s\n", md.Author)
	fmt.Fprintf(out, "URL:         %s\n", md.URL)
	fmt.Fprintf(out, "Scripts:\n")
	for _, s := range md.Scripts {
		fmt.Fprintf(out, "  - %s\n", s)
	}
}
