package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xeonx/timeago"

	"github.com/pgip-dev/pgip/internal/models"
)

func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage annotation plugins",
	}
	cmd.AddCommand(newPluginsListCmd(), newPluginsShowCmd(), newPluginsRegisterCmd(), newPluginsStatsCmd())
	return cmd
}

func newPluginsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newAPIClient(backendURL())
			summaries, err := client.ListPlugins()
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plugins registered yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tDESCRIPTION\tTAGS\tLAST RUN")
			for _, s := range summaries {
				tags := "-"
				if len(s.Tags) > 0 {
					tags = strings.Join(s.Tags, ", ")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.Name, s.Version, s.Description, tags, timeago.English.Format(s.LatestRunAt))
			}
			return w.Flush()
		},
	}
}

func newPluginsShowCmd() *cobra.Command {
	var version, output string
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show manifest details for a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(backendURL())
			manifest, err := client.GetPlugin(args[0], version)
			if err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, manifest, "", "  "); err != nil {
				return fmt.Errorf("failed to parse manifest: %w", err)
			}

			if output != "" {
				if err := os.WriteFile(output, pretty.Bytes(), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Manifest written to %s\n", output)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "optional plugin version (default: latest)")
	cmd.Flags().StringVar(&output, "output", "", "write manifest JSON to file")
	return cmd
}

func newPluginsRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <manifest.json>",
		Short: "Register or update a plugin manifest from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			// Validate locally before submitting.
			var manifest models.PluginManifest
			if err := json.Unmarshal(raw, &manifest); err != nil {
				return fmt.Errorf("invalid manifest: %w", err)
			}
			if err := manifest.Validate(); err != nil {
				return fmt.Errorf("invalid manifest: %w", err)
			}

			client := newAPIClient(backendURL())
			if err := client.RegisterPlugin(raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered plugin %s v%s\n", manifest.Name, manifest.Version)
			return nil
		},
	}
}

func newPluginsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Display aggregate registry statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newAPIClient(backendURL())
			stats, err := client.GetStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Plugin Registry Stats")
			fmt.Fprintf(out, "Total plugins:  %d\n", stats.TotalPlugins)
			fmt.Fprintf(out, "Unique authors: %d\n", stats.UniqueAuthors)
			fmt.Fprintf(out, "Unique tags:    %d\n", stats.UniqueTags)
			if stats.MostRecentUpdate != nil {
				fmt.Fprintf(out, "Last update:    %s (%s)\n",
					stats.MostRecentUpdate.Format("2006-01-02 15:04"), timeago.English.Format(*stats.MostRecentUpdate))
			}

			if len(stats.TopTags) == 0 {
				fmt.Fprintln(out, "No tag usage data yet.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tUSAGE")
			for _, tag := range stats.TopTags {
				fmt.Fprintf(w, "%s\t%d\n", tag.Tag, tag.UsageCount)
			}
			return w.Flush()
		},
	}
}
