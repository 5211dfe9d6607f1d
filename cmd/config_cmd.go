package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knockmap/knockmap/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Show the effective configuration or write a default config file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  Warehouse:\n")
		fmt.Printf("    Type:           %s\n", cfg.Warehouse.Type)
		fmt.Printf("    Account:        %s\n", cfg.Warehouse.Account)
		fmt.Printf("    User:           %s\n", cfg.Warehouse.User)
		fmt.Printf("    Password:       %s\n", maskSecret(cfg.Warehouse.Password))
		fmt.Printf("    DSN:            %s\n", maskSecret(cfg.Warehouse.DSN))
		fmt.Printf("    Database:       %s\n", cfg.Warehouse.Database)
		fmt.Printf("    Max Conns:      %d\n", cfg.Warehouse.MaxConnections)
		fmt.Println()
		fmt.Printf("  Tables:\n")
		fmt.Printf("    Users:          %s\n", cfg.Tables.Users)
		fmt.Printf("    Targets:        %s\n", cfg.Tables.Targets)
		fmt.Printf("    Markets:        %s\n", cfg.Tables.Markets)
		fmt.Printf("    Opportunities:  %s\n", cfg.Tables.Opportunities)
		fmt.Println()
		fmt.Printf("  Roster roles:     %s\n", strings.Join(cfg.Roster.Roles, ", "))
		fmt.Printf("  Server port:      %d\n", cfg.Server.Port)
		fmt.Printf("  Cache TTL:        %s\n", cfg.Cache.TTL)
		fmt.Printf("  Audit:            %s\n", cfg.Audit.Type)
		if cfg.Audit.Type == "mongodb" {
			fmt.Printf("    Connection:     %s\n", maskSecret(cfg.Audit.ConnectionString))
			fmt.Printf("    Collection:     %s.%s\n", cfg.Audit.Database, cfg.Audit.Collection)
		}
		if cfg.Export.Bucket != "" {
			fmt.Printf("  Export:           s3://%s/%s\n", cfg.Export.Bucket, cfg.Export.Prefix)
		}
		fmt.Printf("  Log level:        %s\n", cfg.Logging.Level)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.ExpandHome(config.DefaultPath)
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg := config.Default()
		cfg.Warehouse.Password = "${ENV:SNOWFLAKE_PASSWORD}"
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		fmt.Println("Fill in warehouse.account, user, role, warehouse and database before running knockmap.")
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
