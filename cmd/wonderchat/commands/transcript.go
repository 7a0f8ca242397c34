package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/wonderchat/pkg/cli"
	"github.com/haivivi/wonderchat/pkg/transcript"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Browse and export recorded conversations",
}

func withRecorder(fn func(ctx context.Context, r *transcript.Recorder) error) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(context.Background(), transcript.NewRecorder(db))
}

var transcriptListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, _ := cmd.Flags().GetString("profile")
		return withRecorder(func(ctx context.Context, r *transcript.Recorder) error {
			sessions, err := r.Sessions(ctx, profileID)
			if err != nil {
				return err
			}
			if outputJSON || jqQuery != "" || outputFile != "" {
				return outputResult(sessions)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROFILE\tMODE\tSTARTED\tMESSAGES\tDURATION")
			for _, s := range sessions {
				msgs, err := r.Messages(ctx, s.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", s.ID, s.ProfileID, s.Mode,
					s.CreatedAt.Local().Format("2006-01-02 15:04:05"), len(msgs), cli.FormatDuration(sessionSpan(msgs)))
			}
			return w.Flush()
		})
	},
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show the messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecorder(func(ctx context.Context, r *transcript.Recorder) error {
			msgs, err := r.Messages(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON || jqQuery != "" || outputFile != "" {
				return outputResult(msgs)
			}
			fmt.Print(renderText(msgs, cli.NewStyles(cli.DefaultTheme)))
			return nil
		})
	},
}

var transcriptExportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Archive a session to the context's export destination",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		c, err := getContext()
		if err != nil {
			return err
		}
		archive, err := newArchive(c)
		if err != nil {
			return err
		}
		if archive == nil {
			return fmt.Errorf("context %q has no export destination; set --export-dir or --export-bucket", c.Name)
		}
		return withRecorder(func(ctx context.Context, r *transcript.Recorder) error {
			if _, err := r.Session(ctx, args[0]); err != nil {
				return err
			}
			msgs, err := r.Messages(ctx, args[0])
			if err != nil {
				return err
			}
			data, err := encodeTranscript(msgs, format)
			if err != nil {
				return err
			}
			path, err := archive.SaveTranscript(ctx, args[0], "."+format, data)
			if err != nil {
				return err
			}
			cli.PrintSuccess("Exported %d messages (%s) to %s", len(msgs), cli.FormatBytes(int64(len(data))), path)
			return nil
		})
	},
}

// sessionSpan is the time between the first and last message.
func sessionSpan(msgs []*transcript.Message) time.Duration {
	if len(msgs) < 2 {
		return 0
	}
	return msgs[len(msgs)-1].CreatedAt.Sub(msgs[0].CreatedAt)
}

func encodeTranscript(msgs []*transcript.Message, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(msgs, "", "  ")
	case "txt":
		return []byte(renderText(msgs, cli.Styles{})), nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// renderText formats messages as "[15:04:05] You: ..." lines. A zero Styles
// renders plain text.
func renderText(msgs []*transcript.Message, styles cli.Styles) string {
	var b strings.Builder
	for _, m := range msgs {
		who := styles.User.Render("You")
		if m.Role == transcript.RoleAssistant {
			who = styles.Assistant.Render("WonderChat")
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), who, m.Content)
	}
	return b.String()
}

func init() {
	transcriptListCmd.Flags().String("profile", "", "only sessions of this profile")
	transcriptExportCmd.Flags().String("format", "json", "export format (json, txt)")

	transcriptCmd.AddCommand(transcriptListCmd)
	transcriptCmd.AddCommand(transcriptShowCmd)
	transcriptCmd.AddCommand(transcriptExportCmd)
}
