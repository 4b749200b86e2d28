package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/minhducle291/linebot/internal/types"
)

func init() {
	rootCmd.AddCommand(pushCmd)
}

var pushCmd = &cobra.Command{
	Use:   "push <to> <text>...",
	Short: "Push a text message to a user, group or room id",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.LINE.ChannelAccessToken == "" {
			return fmt.Errorf("line.channel_access_token is required")
		}
		text := strings.Join(args[1:], " ")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := newLINEClient(cfg).Push(ctx, args[0], types.Text(text)); err != nil {
			return fmt.Errorf("push: %w", err)
		}
		fmt.Fprintln(os.Stdout, "Sent.")
		return nil
	},
}
