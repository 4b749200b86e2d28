package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minhducle291/linebot/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a config file interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("linebot setup")
		fmt.Println("Press Enter to accept the value shown in brackets.")
		fmt.Println()

		cfg.LINE.ChannelSecret = prompt(scanner, "LINE channel secret", cfg.LINE.ChannelSecret)
		cfg.LINE.ChannelAccessToken = prompt(scanner, "LINE channel access token", cfg.LINE.ChannelAccessToken)
		cfg.PublicBaseURL = prompt(scanner, "Public base URL", cfg.PublicBaseURL)
		cfg.Data.DemandPath = prompt(scanner, "Demand parquet path", cfg.Data.DemandPath)
		cfg.Data.SalesPath = prompt(scanner, "Sales parquet path", cfg.Data.SalesPath)
		cfg.Data.StoresPath = prompt(scanner, "Stores parquet path", cfg.Data.StoresPath)

		cfg.Storage.Backend = prompt(scanner, "Image storage (local or minio)", cfg.Storage.Backend)
		if cfg.Storage.Backend == "minio" {
			cfg.Storage.MinIO.Endpoint = prompt(scanner, "MinIO endpoint", cfg.Storage.MinIO.Endpoint)
			cfg.Storage.MinIO.AccessKey = prompt(scanner, "MinIO access key", cfg.Storage.MinIO.AccessKey)
			cfg.Storage.MinIO.SecretKey = prompt(scanner, "MinIO secret key", cfg.Storage.MinIO.SecretKey)
			cfg.Storage.MinIO.Bucket = prompt(scanner, "MinIO bucket", cfg.Storage.MinIO.Bucket)
		}

		if err := cfg.Validate(); err != nil {
			fmt.Println("Warning:", err)
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt reads one line, returning def when the input is empty.
func prompt(scanner *bufio.Scanner, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		if input := strings.TrimSpace(scanner.Text()); input != "" {
			return input
		}
	}
	return def
}
