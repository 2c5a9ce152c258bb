package main

import (
	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/audit"
)

func newHistoryCmd(a *app) *cobra.Command {
	var filter audit.Filter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show commands received by serve over the REST API and MQTT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, closeDB, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := audit.NewSQLiteRepository(db).List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.render(res, func() *table {
				t := newTable("TIME", "SOURCE", "SUBJECT", "KIND", "TARGET", "RESULT", "ATTEMPTS")
				for _, e := range res.Entries {
					result := e.Result
					if e.Outcome != "" && e.Outcome != "sent" {
						result += " (" + e.Outcome + ")"
					}
					t.add(formatTime(e.CreatedAt), e.Source, e.Subject, e.Kind, e.Target, result, e.Attempts)
				}
				return t
			})
		},
	}
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "only this command kind")
	cmd.Flags().StringVar(&filter.Source, "source", "", "only commands from api or mqtt")
	cmd.Flags().StringVar(&filter.Result, "result", "", "only this result (ok or an error code)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum entries")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "skip this many entries")
	return cmd
}
