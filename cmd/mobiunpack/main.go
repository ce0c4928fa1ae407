// Command mobiunpack decodes a Mobipocket/KF8 container file into a
// publishable directory tree.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mobiunpack/mobiunpack"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts mobiunpack.Options

	cmd := &cobra.Command{
		Use:   "mobiunpack <infile> [outdir]",
		Short: "Unpack a Mobipocket/KF8 container into EPUB or legacy HTML+NCX",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			infile := args[0]
			outdir := strings.TrimSuffix(filepath.Base(infile), filepath.Ext(infile))
			if len(args) == 2 {
				outdir = args[1]
			}

			data, err := os.ReadFile(infile)
			if err != nil {
				return fmt.Errorf("mobiunpack: %w", err)
			}

			result, err := mobiunpack.Unpack(data, opts)
			if err != nil {
				return fmt.Errorf("mobiunpack: %w", err)
			}

			for _, w := range result.Logger.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}

			if err := result.Write(outdir, opts); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "unpacked %s -> %s\n", infile, outdir)
			if opts.HDImages && !result.Book.HasImages() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: --hd-images requested but the book has no image resources")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Dump, "dump", "d", false, "dump intermediate decoding diagnostics")
	cmd.Flags().BoolVarP(&opts.Raw, "raw", "r", false, "also write the raw decompressed rawML alongside the output tree")
	cmd.Flags().BoolVarP(&opts.Split, "split", "s", false, "split a combined Mobi6+KF8 container into its two standalone files")
	cmd.Flags().BoolVarP(&opts.HDImages, "hd-images", "i", false, "prefer embedded HD (CRES) images over their low-resolution counterparts")
	cmd.Flags().BoolVarP(&opts.APNX, "apnx", "p", false, "generate the legacy APNX page-number sidecar")
	cmd.Flags().StringVar(&opts.EPUBVersion, "epub-version", "", "override the generated EPUB version (default: inferred)")

	return cmd
}
