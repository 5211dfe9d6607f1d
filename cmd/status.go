package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knockmap/knockmap/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the warehouse connection and table row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := quietEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)

		wc := eng.Config.Warehouse
		fmt.Printf("Warehouse: %s", wc.Type)
		if wc.Account != "" {
			fmt.Printf(" (%s/%s)", wc.Account, wc.Database)
		}
		fmt.Println()

		if err := eng.Ping(ctx); err != nil {
			fmt.Printf("  [!!] unreachable: %v\n", err)
			return fmt.Errorf("warehouse unreachable")
		}
		fmt.Println("  [OK] reachable")
		fmt.Println()

		failed := 0
		for _, tc := range eng.TableCounts(ctx) {
			if tc.Err != nil {
				failed++
				fmt.Printf("  [!!] %-14s %s: %v\n", tc.Name, tc.Table, tc.Err)
				continue
			}
			fmt.Printf("  [OK] %-14s %s: %d rows\n", tc.Name, tc.Table, tc.Rows)
		}
		fmt.Println()
		fmt.Printf("Audit: %s\n", eng.Config.Audit.Type)
		events, total, err := eng.AuditLog(ctx, 5)
		switch {
		case errors.Is(err, engine.ErrAuditUnreadable):
		case err != nil:
			fmt.Printf("  [!!] unreadable: %v\n", err)
		default:
			fmt.Printf("  [OK] %d events\n", total)
			for _, e := range events {
				fmt.Printf("       %s  %-6s %s\n", e.Time.Local().Format("2006-01-02 15:04"), e.Entity, e.Message)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d table(s) unreadable", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
