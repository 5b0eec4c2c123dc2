package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shuakami/backupwatch/walker"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		filter    string
		recursive bool
		dirAttrs  string
		fileAttrs string
		withHash  bool
	)

	cmd := &cobra.Command{
		Use:   "scan ROOT",
		Short: "List files under ROOT that pass the filter and attribute masks",
		Long: `List files under ROOT that pass the filter and attribute masks.

Examples:
  # All photos, skipping Office lock files
  backupwatch scan --filter '*.jpg,*.png,!~*' /srv/photos

  # Skip hidden and system directories, print fingerprints
  backupwatch scan --dir-attrs hidden,system --hash /srv/docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.cfg.WalkOptions()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("filter") {
				opts.Filter = filter
			}
			if cmd.Flags().Changed("recursive") {
				opts.Recursive = recursive
			}
			if cmd.Flags().Changed("dir-attrs") {
				if opts.DirMask, err = walker.ParseAttr(dirAttrs); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("file-attrs") {
				if opts.FileMask, err = walker.ParseAttr(fileAttrs); err != nil {
					return err
				}
			}

			fp, err := a.fingerprinter()
			if err != nil {
				return err
			}

			w := walker.New(walker.WithLogger(a.logger))
			files, err := w.Enumerate(args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, path := range files {
				md, err := fp.Stat(path)
				if err != nil {
					a.logger.Warn("cannot stat file", zap.String("path", path), zap.Error(err))
				}
				size := humanize.IBytes(uint64(md.Size))

				if !withHash {
					fmt.Fprintf(out, "%10s  %s\n", size, path)
					continue
				}
				sum, err := fp.Path(path)
				if err != nil {
					a.logger.Warn("cannot fingerprint file", zap.String("path", path), zap.Error(err))
					sum = "-"
				}
				fmt.Fprintf(out, "%-32s  %10s  %s\n", sum, size, path)
			}

			a.logger.Info("scan finished", zap.String("root", args[0]), zap.Int("files", len(files)))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "include/exclude patterns, e.g. '*.txt,*.doc,!~*'")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "descend into subdirectories")
	cmd.Flags().StringVar(&dirAttrs, "dir-attrs", "", "skip directories with any of these attributes (e.g. hidden,system)")
	cmd.Flags().StringVar(&fileAttrs, "file-attrs", "", "skip files with any of these attributes")
	cmd.Flags().BoolVar(&withHash, "hash", false, "print the sampled fingerprint of each file")

	return cmd
}
