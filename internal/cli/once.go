package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"l10nsched/internal/builddb"
	"l10nsched/internal/fanout"
	"l10nsched/internal/fetch"
	"l10nsched/internal/trigger"
	"l10nsched/pkg/logx"
)

func onceCmd() *cobra.Command {
	var (
		dbPath      string
		platform    string
		branch      string
		baseTag     string
		repo        string
		localesFile string
		localesURL  string
		builders    []string
		revision    string
		reason      string
		timeout     time.Duration
		logLevel    string
		propArgs    []string
	)

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single fan-out without a config file or daemon",
		Long: `Fetch a locale list, enqueue one localized build per locale into the
build database, and print what was enqueued. Everything comes from
flags; nothing stays running afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			extra, err := parseProps(propArgs)
			if err != nil {
				return err
			}

			log := logx.NewConsole(logLevel)
			db, err := builddb.Open(builddb.Config{Path: dbPath}, log.With(logx.String("component", "builddb")))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			t, err := trigger.NewTriggerable("once", builders, fanout.Config{
				Platform:     platform,
				Branch:       branch,
				BaseTag:      baseTag,
				Repo:         repo,
				LocalesFile:  localesFile,
				LocalesURL:   localesURL,
				FetchTimeout: timeout,
			}, fanout.Deps{
				Fetcher: fetch.NewClient(fetch.Config{Timeout: timeout}),
				DB:      db,
				Log:     log,
			})
			if err != nil {
				return err
			}

			ctrl := t.Controller()
			results, err := ctrl.FanOut(cmd.Context(), revision, reason, extra)
			if err != nil {
				return err
			}
			printResults(cmd, results)
			return printRecent(cmd.Context(), cmd, db, len(results))
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "l10nsched.db", "build database path")
	cmd.Flags().StringVar(&platform, "platform", "", "build platform (required)")
	cmd.Flags().StringVar(&branch, "branch", "", "l10n repository branch, e.g. mozilla-central")
	cmd.Flags().StringVar(&baseTag, "base-tag", "", "revision tag recorded on submissions")
	cmd.Flags().StringVar(&repo, "repo", "", "repository base URL")
	cmd.Flags().StringVar(&localesFile, "locales-file", "", "locale list path inside the repository")
	cmd.Flags().StringVar(&localesURL, "locales-url", "", "explicit locale list URL template, overrides repo/branch")
	cmd.Flags().StringArrayVar(&builders, "builder", nil, "builder name to enqueue for (repeatable, required)")
	cmd.Flags().StringVar(&revision, "revision", "", "revision used to resolve the locale list")
	cmd.Flags().StringVar(&reason, "reason", "manual fan-out", "reason recorded on the buildsets")
	cmd.Flags().DurationVar(&timeout, "timeout", fetch.DefaultTimeout, "locale list fetch timeout")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	cmd.Flags().StringArrayVar(&propArgs, "prop", nil, "extra build property, key=value (repeatable)")
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

// printRecent echoes the persisted rows back so the run can be checked
// against the database, not just the in-memory results.
func printRecent(ctx context.Context, cmd *cobra.Command, db *builddb.DB, limit int) error {
	if limit == 0 {
		return nil
	}
	recent, err := db.RecentBuildSets(ctx, limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, bs := range recent {
		rows, err := db.BuildSetProperties(ctx, bs.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  buildset %d branch=%s requests=%d", bs.ID, bs.Branch, bs.Requests)
		for _, r := range rows {
			if r.Name == "locale" {
				fmt.Fprintf(out, " locale=%s", r.ValueJSON)
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}
