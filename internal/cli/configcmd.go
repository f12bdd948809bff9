package cli

import (
	"fmt"

	"github.com/punchflow/punchflow/internal/attendance/domain"
	"github.com/punchflow/punchflow/internal/attendance/service"
	"github.com/punchflow/punchflow/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:         "show",
			Short:       "Print the effective configuration as YAML. Secrets are omitted.",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{skipCheck: ""},
			RunE: func(cmd *cobra.Command, args []string) error {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(a.cfg); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		&cobra.Command{
			Use:         "check",
			Short:       "Validate the configuration and the entity layouts",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{skipCheck: ""},
			RunE: func(cmd *cobra.Command, args []string) error {
				var problems []error
				if err := a.cfg.Check(); err != nil {
					problems = append(problems, err)
				}
				if _, err := service.CompilePlans(a.cfg.Entities, a.cfg.Validation); err != nil {
					problems = append(problems, err)
				}
				if _, err := domain.ParseTimeOfDay(a.cfg.Integration.NightMealThreshold); err != nil {
					problems = append(problems, fmt.Errorf("invalid night_meal_threshold %q", a.cfg.Integration.NightMealThreshold))
				}

				if len(problems) > 0 {
					return errors.Join(problems...)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
				return nil
			},
		},
	)
	return cmd
}
