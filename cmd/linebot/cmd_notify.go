package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/minhducle291/linebot/internal/state"
)

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyAddCmd, notifyListCmd, notifyRemoveCmd, notifySendCmd)

	notifyAddCmd.Flags().String("user", "", "LINE user id (required)")
	notifyAddCmd.Flags().String("date", "", "send date, e.g. 2026-10-14 or 14/10/2026 (required)")
	notifyAddCmd.Flags().String("content", "", "message text (required)")
	_ = notifyAddCmd.MarkFlagRequired("user")
	_ = notifyAddCmd.MarkFlagRequired("date")
	_ = notifyAddCmd.MarkFlagRequired("content")
}

func notificationStore() *state.NotificationStore {
	cfg := loadConfig()
	return state.NewNotificationStore(cfg.Scheduler.NotificationsPath)
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage scheduled notifications",
}

var notifyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a notification",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		date, _ := cmd.Flags().GetString("date")
		content, _ := cmd.Flags().GetString("content")

		n := &state.Notification{UserID: user, SendDate: date, Content: content}
		if err := notificationStore().Add(n); err != nil {
			return fmt.Errorf("add notification: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Notification %s scheduled for %s.\n", n.ID, n.SendDate)
		return nil
	},
}

var notifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := notificationStore().List()
		if err != nil {
			return fmt.Errorf("list notifications: %w", err)
		}
		if len(items) == 0 {
			fmt.Println("No notifications scheduled.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tUSER\tCONTENT")
		for _, n := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.SendDate, n.UserID, n.Content)
		}
		return w.Flush()
	},
}

var notifyRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := notificationStore().Remove(args[0]); err != nil {
			return fmt.Errorf("remove notification: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Notification %s removed.\n", args[0])
		return nil
	},
}

var notifySendCmd = &cobra.Command{
	Use:   "send",
	Short: "Push today's notifications now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		if cfg.LINE.ChannelAccessToken == "" {
			return fmt.Errorf("line.channel_access_token is required")
		}
		sched, err := newScheduler(cfg, newLINEClient(cfg))
		if err != nil {
			return err
		}
		sent, failed := sched.SendDue(context.Background())
		fmt.Fprintf(os.Stdout, "Sent %d, failed %d.\n", sent, failed)
		if failed > 0 {
			return fmt.Errorf("%d notifications failed", failed)
		}
		return nil
	},
}
