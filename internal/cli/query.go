package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/normalize"
	"github.com/punchflow/punchflow/internal/attendance/repository"
	"github.com/punchflow/punchflow/pkg/database"
	"github.com/spf13/cobra"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func newQueryCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the integrated view",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if output != outputTable && output != outputJSON {
				return fmt.Errorf("unknown output %q, expected table or json", output)
			}
			return a.setup(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", outputTable, "output format: table or json")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "dates",
			Short: "List the dates with their weekday and record count",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(cmd.Context(), func(store *repository.Store) error {
					dates, err := store.ListDates(cmd.Context())
					if err != nil {
						return err
					}
					if output == outputJSON {
						return writeJSON(cmd.OutOrStdout(), dates)
					}
					return writeDates(cmd.OutOrStdout(), dates)
				})
			},
		},
		&cobra.Command{
			Use:   "records DATE",
			Short: "List the records of one date, ordered by shift class and employee",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				date, err := a.parseDate(args[0])
				if err != nil {
					return err
				}
				return a.withStore(cmd.Context(), func(store *repository.Store) error {
					records, err := store.ListByDate(cmd.Context(), date)
					if err != nil {
						return err
					}
					return writeRecords(cmd.OutOrStdout(), output, records)
				})
			},
		},
		&cobra.Command{
			Use:   "full",
			Short: "List every account for every day of the punch date range, gaps included",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(cmd.Context(), func(store *repository.Store) error {
					records, err := store.FullRange(cmd.Context())
					if err != nil {
						return err
					}
					return writeRecords(cmd.OutOrStdout(), output, records)
				})
			},
		},
		newNightMealCmd(a, &output),
	)
	return cmd
}

func newNightMealCmd(a *app, output *string) *cobra.Command {
	var threshold string

	cmd := &cobra.Command{
		Use:   "night-meal [DATE]",
		Short: "List the records whose last punch is after the night meal threshold",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var date domain.CalendarDate
			if len(args) == 1 {
				d, err := a.parseDate(args[0])
				if err != nil {
					return err
				}
				date = d
			}

			if threshold == "" {
				threshold = a.cfg.Integration.NightMealThreshold
			}
			cutoff, err := normalize.CanonicalTime(threshold)
			if err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(store *repository.Store) error {
				records, err := store.NightMeal(cmd.Context(), date, cutoff)
				if err != nil {
					return err
				}
				return writeRecords(cmd.OutOrStdout(), *output, records)
			})
		},
	}
	cmd.Flags().StringVar(&threshold, "threshold", "", "HH:MM:SS or HHMM (default integration.night_meal_threshold)")
	return cmd
}

// parseDate accepts the canonical form as well as the export encodings.
func (a *app) parseDate(raw string) (domain.CalendarDate, error) {
	return normalize.CanonicalDate(raw, normalize.DateOptions{AcceptGregorian: a.cfg.Validation.AcceptGregorianDates})
}

func (a *app) withStore(ctx context.Context, fn func(*repository.Store) error) error {
	db, err := database.New(&a.cfg.Database, a.log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	store := repository.NewStore(db, a.log)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(store)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDates(w io.Writer, dates []repository.DateCount) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWEEKDAY\tRECORDS")
	for _, d := range dates {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", d.Date, d.Weekday, d.Records)
	}
	return tw.Flush()
}

func writeRecords(w io.Writer, output string, records []domain.IntegratedDailyRecord) error {
	if output == outputJSON {
		if records == nil {
			records = []domain.IntegratedDailyRecord{}
		}
		return writeJSON(w, records)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSHIFT\tEMP_ID\tACCOUNT\tNAME\tDRIVER\tPUNCHES")
	for _, r := range records {
		shift := "-"
		if r.ShiftClass != nil {
			shift = *r.ShiftClass
		}
		driver := ""
		if r.IsDriver {
			driver = "yes"
		}
		times := make([]string, len(r.PunchTimes))
		for i, t := range r.PunchTimes {
			times[i] = t.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.PunchDate, shift, r.EmployeeID, r.AccountID, r.Name, driver, strings.Join(times, " "))
	}
	return tw.Flush()
}
