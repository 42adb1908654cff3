package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/internal/appconfig"
	"pkt.systems/tabkeeper/internal/sessionstore"
	"pkt.systems/tabkeeper/schema"
)

func newSessionsCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and edit saved sessions in the configured store",
		Long:  "Inspect and edit saved sessions in the configured store. Edits go straight to the store; use the HTTP API while serve is running.",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	cmd.AddCommand(newSessionsListCmd(&cfgPath))
	cmd.AddCommand(newSessionsRenameCmd(&cfgPath))
	cmd.AddCommand(newSessionsDeleteCmd(&cfgPath))

	return cmd
}

// withAdapter opens the configured store behind a session adapter for the
// duration of fn.
func withAdapter(ctx context.Context, cfgPath string, fn func(*sessionstore.Adapter) error) error {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return err
	}
	logger := pslog.Ctx(ctx)
	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	adapter := sessionstore.NewAdapter(store, logger, nil)
	defer func() { _ = adapter.Close() }()
	return fn(adapter)
}

func newSessionsListCmd(cfgPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdapter(cmd.Context(), *cfgPath, func(a *sessionstore.Adapter) error {
				c, err := a.View(cmd.Context())
				if err != nil {
					return err
				}
				sessions := c.Sorted()
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(sessions)
				}
				return printSessions(cmd.OutOrStdout(), sessions)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sessions as JSON")
	return cmd
}

func newSessionsRenameCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := schema.SessionID(args[0])
			name, err := schema.NormalizeSessionName(args[1])
			if err != nil {
				return err
			}
			return withAdapter(cmd.Context(), *cfgPath, func(a *sessionstore.Adapter) error {
				err := a.Update(cmd.Context(), func(c *sessionstore.Collection) (bool, error) {
					return true, c.Rename(id, name)
				})
				if err != nil {
					return fmt.Errorf("rename %s: %w", id, err)
				}
				pslog.Ctx(cmd.Context()).Info("sessions rename ok", "session", id, "name", name)
				return nil
			})
		},
	}
}

func newSessionsDeleteCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := schema.SessionID(args[0])
			return withAdapter(cmd.Context(), *cfgPath, func(a *sessionstore.Adapter) error {
				err := a.Update(cmd.Context(), func(c *sessionstore.Collection) (bool, error) {
					_, err := c.Delete(id)
					return err == nil, err
				})
				if err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				pslog.Ctx(cmd.Context()).Info("sessions delete ok", "session", id)
				return nil
			})
		},
	}
}

func printSessions(out io.Writer, sessions []schema.Session) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tTABS\tWINDOW\tSAVED AT")
	for _, s := range sessions {
		name := s.Name
		if name == "" {
			name = "(unsaved)"
		}
		window := "-"
		if s.CurrentID != nil {
			window = fmt.Sprintf("%d", *s.CurrentID)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.ID, name, len(s.Tabs), window, s.Timestamp.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
