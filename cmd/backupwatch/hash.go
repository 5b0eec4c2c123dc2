package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHashCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE...",
		Short: "Print the sampled fingerprint of each file",
		Long: `Print the sampled fingerprint of each file.

Files smaller than the three blocks combined are hashed whole. Empty files
print "(empty)" and all-zero content is marked "(zero)".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := a.fingerprinter()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				sum, err := fp.Path(path)
				switch {
				case err != nil:
					failed++
					a.logger.Error("cannot fingerprint file", zap.String("path", path), zap.Error(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				case sum == "":
					fmt.Fprintf(out, "%-32s  %s\n", "(empty)", path)
				case fp.IsZero(sum):
					fmt.Fprintf(out, "%s  %s (zero)\n", sum, path)
				default:
					fmt.Fprintf(out, "%s  %s\n", sum, path)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be fingerprinted", failed, len(args))
			}
			return nil
		},
	}
}
