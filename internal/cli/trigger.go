package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"l10nsched/internal/app"
	"l10nsched/internal/builddb"
	"l10nsched/internal/properties"
)

func triggerCmd(cfgPath *string) *cobra.Command {
	var (
		revision string
		propArgs []string
	)

	cmd := &cobra.Command{
		Use:   "trigger NAME",
		Short: "Fire one registered scheduler by hand",
		Long: `Fire one scheduler from the config file as if its upstream en-US
build had just completed, then print the enqueued buildsets.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra, err := parseProps(propArgs)
			if err != nil {
				return err
			}

			a, err := app.New(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Stop(context.Background()) }()

			t, ok := a.Triggers().Get(args[0])
			if !ok {
				return fmt.Errorf("no scheduler named %q (configured: %s)",
					args[0], strings.Join(a.Triggers().Names(), ", "))
			}

			results, err := t.Trigger(cmd.Context(), builddb.SourceStamp{Revision: revision}, extra)
			if err != nil {
				return err
			}
			printResults(cmd, results)
			return nil
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "upstream revision used to resolve the locale list")
	cmd.Flags().StringArrayVar(&propArgs, "prop", nil, "extra build property, key=value (repeatable)")
	return cmd
}

func parseProps(args []string) (*properties.Set, error) {
	if len(args) == 0 {
		return nil, nil
	}
	set := properties.New()
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q, expected key=value", arg)
		}
		set.Set(k, v, "CommandLine")
	}
	return set, nil
}

func printResults(cmd *cobra.Command, results []builddb.EnqueueResult) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "buildset %d (sourcestamp %d, %d build request(s))\n",
			r.BuildSetID, r.SourceStampID, len(r.BuildRequestIDs))
	}
	fmt.Fprintf(out, "%d buildset(s) enqueued\n", len(results))
}
