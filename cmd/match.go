package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/futuretree/internal/intake"
	"github.com/sells-group/futuretree/internal/matcher"
	"github.com/sells-group/futuretree/internal/model"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a business profile against the case-study corpus",
	Long:  "Matches a stored profile (--profile) or creates one from an intake JSON file (--file), then stores the ranked matches.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		profileID, _ := cmd.Flags().GetString("profile")
		file, _ := cmd.Flags().GetString("file")
		asJSON, _ := cmd.Flags().GetBool("json")
		if (profileID == "") == (file == "") {
			return eris.New("match: exactly one of --profile or --file is required")
		}

		var payload intake.DiscoverPayload
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return eris.Wrapf(err, "match: read %s", file)
			}
			if err := json.Unmarshal(data, &payload); err != nil {
				return eris.Wrapf(err, "match: parse %s", file)
			}
		}

		env, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		var prof *model.BusinessProfile
		if file != "" {
			if prof, err = intake.ParseDiscover(payload); err != nil {
				return err
			}
			if err := env.Store.CreateProfile(ctx, prof); err != nil {
				return eris.Wrap(err, "match: create profile")
			}
		} else if prof, err = env.Store.GetProfile(ctx, profileID); err != nil {
			return eris.Wrap(err, "match")
		}

		res, err := env.Matcher.MatchAndStore(ctx, env.Store, prof, env.Options, time.Now().UTC())
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"profile": prof,
				"matches": matcher.FormatForAPI(res.Matches),
				"summary": res.Summary,
			})
		}
		fmt.Fprintf(os.Stderr, "Profile %s: %d of %d case studies matched, best strategy %s\n",
			prof.ID, res.Summary.TotalMatches, res.Summary.TotalCandidates, bestOrNone(res.Summary.BestStrategyType))
		formatMatches(os.Stdout, matcher.FormatForAPI(res.Matches))
		return nil
	},
}

func init() {
	matchCmd.Flags().String("profile", "", "ID of a stored profile")
	matchCmd.Flags().String("file", "", "intake form JSON file")
	matchCmd.Flags().Bool("json", false, "print the full result as JSON")
	rootCmd.AddCommand(matchCmd)
}

func bestOrNone(st model.StrategyType) string {
	if st == "" {
		return "none"
	}
	return string(st)
}

// formatMatches writes a ranked match table to out.
func formatMatches(out io.Writer, matches []matcher.APIMatch) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tSCORE\tCOMPANY\tSTRATEGY\tREASON")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------\t--------\t------")
	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\t%s\n",
			m.Rank, m.MatchScore, truncate(m.CompanyName, 30), m.StrategyType, m.MatchReason)
	}
	_ = w.Flush()
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
