package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/repository"
	"shiftclock-backend/internal/service"
	"shiftclock-backend/internal/sweeper"
)

var (
	migratePrint bool

	sweepThreshold time.Duration

	policyFile string

	auditBusiness int64
	auditLimit    int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migratePrint {
			_, err := fmt.Fprint(cmd.OutOrStdout(), db.Schema())
			return err
		}
		_, pg, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("schema applied")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one auto-close pass over stale shifts",
	Long: `Closes every shift that has been active longer than the stale threshold,
then closes the attendance periods left without an active shift.

Without --threshold the STALE_SHIFT_THRESHOLD override applies, and when
that is unset each business uses the stale_after of its policy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, pg, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pg.Close()

		svc := service.NewServices(repository.NewStores(pg), service.Options{
			Policies: cfg.Policies,
			Location: cfg.Location,
			Logger:   logger,
		})
		threshold := sweepThreshold
		if threshold <= 0 {
			threshold = cfg.StaleShiftThreshold
		}
		res := sweeper.Sweeper{
			Shifts:          svc.Shifts,
			Periods:         svc.TimeShifts,
			Threshold:       threshold,
			BusinessTimeout: cfg.SweepBusinessTimeout,
			Logger:          logger,
		}.Tick(cmd.Context())

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "closed shifts:  %d\n", len(res.Closed))
		fmt.Fprintf(out, "closed periods: %d\n", len(res.Periods))
		fmt.Fprintf(out, "businesses:     %d\n", res.Businesses)
		if res.Failures > 0 {
			return fmt.Errorf("%d failures during sweep, see log", res.Failures)
		}
		return nil
	},
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect shift policies",
}

var policyDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective shift policies as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := policyFile
		if path == "" {
			path = os.Getenv("SHIFT_POLICY_FILE")
		}
		set, err := config.LoadPolicies(path)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(set); err != nil {
			return err
		}
		return enc.Close()
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent audit records for a business",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditBusiness <= 0 {
			return fmt.Errorf("--business is required")
		}
		_, pg, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pg.Close()

		records, err := repository.AuditLogRepository{DB: pg}.List(cmd.Context(), auditBusiness, auditLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, rec := range records {
			actor := "system"
			if rec.ActorID != nil {
				actor = fmt.Sprint(*rec.ActorID)
			}
			fmt.Fprintf(out, "%s\t%-24s\t%s/%s\tactor=%s\n",
				rec.OccurredAt.Format(time.RFC3339), rec.Action, rec.Entity, rec.EntityID, actor)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "print the schema instead of applying it")

	sweepCmd.Flags().DurationVar(&sweepThreshold, "threshold", 0, "override the stale threshold for every business")

	policyDumpCmd.Flags().StringVar(&policyFile, "file", "", "policy file (default $SHIFT_POLICY_FILE)")
	policyCmd.AddCommand(policyDumpCmd)

	auditCmd.Flags().Int64Var(&auditBusiness, "business", 0, "business id")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum records")

	rootCmd.AddCommand(migrateCmd, sweepCmd, policyCmd, auditCmd)
}
