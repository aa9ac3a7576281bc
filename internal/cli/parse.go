package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"l10nsched/internal/fanout"
	"l10nsched/internal/locales"
)

func parseCmd() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a locale list file and print the result",
		Long: `Parse an all-locales / shipped-locales style file and print the
locale -> platform-restriction mapping. Use "-" to read stdin.

With --platform, locales that would be filtered out for that platform
are marked as skipped (the base locale en-US is always skipped).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			list, err := locales.Parse(string(data))
			if err != nil {
				return err
			}

			norm := ""
			if platform != "" {
				if !locales.SupportedPlatform(platform) {
					return fmt.Errorf("unsupported platform %q (recognized: %s)",
						platform, strings.Join(locales.SupportedPlatforms(), ", "))
				}
				norm = locales.NormalizePlatform(platform)
			}

			out := cmd.OutOrStdout()
			for _, id := range list.Locales() {
				rs := list.Restrictions(id)
				line := id
				if rs.Len() > 0 {
					line += " " + strings.Join(rs.Sorted(), " ")
				}
				if norm != "" {
					switch {
					case id == fanout.BaseLocale:
						line += "   [skipped: base locale]"
					case rs.Len() > 0 && !rs.Has(norm):
						line += "   [skipped: not built on " + norm + "]"
					}
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "%d locale(s)\n", list.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "show which locales survive filtering for this platform")
	return cmd
}
