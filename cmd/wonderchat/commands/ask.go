package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/wonderchat/pkg/cli"
	"github.com/haivivi/wonderchat/pkg/profile"
	"github.com/haivivi/wonderchat/pkg/textchat"
	"github.com/haivivi/wonderchat/pkg/transcript"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a text message to the assistant",
	Long: `Send a text message and print the reply. Messages are recorded in a
text session; pass --session to continue an earlier one.

Examples:
  wonderchat ask --profile <id> "Why is the sky blue?"
  wonderchat ask --session <session> "Tell me more!"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	profileID, _ := cmd.Flags().GetString("profile")
	sessionID, _ := cmd.Flags().GetString("session")
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return fmt.Errorf("message is empty")
	}

	c, err := getContext()
	if err != nil {
		return err
	}
	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	rec := transcript.NewRecorder(db)

	var (
		sess    *transcript.Session
		history []*transcript.Message
	)
	if sessionID != "" {
		if sess, err = rec.Session(ctx, sessionID); err != nil {
			return err
		}
		if history, err = rec.Messages(ctx, sessionID); err != nil {
			return err
		}
		if profileID == "" {
			profileID = sess.ProfileID
		}
	}

	var p *profile.Profile
	if profileID != "" {
		if p, err = profile.NewStore(db).Get(ctx, profileID); err != nil {
			return err
		}
	}
	if sess == nil {
		if sess, err = rec.NewSession(ctx, profileID, "text"); err != nil {
			return err
		}
	}

	client, err := textchat.NewGeminiClient(ctx, c.APIKey)
	if err != nil {
		return err
	}
	opts := []textchat.Option{textchat.WithInstruction(profile.ChatInstruction(p))}
	if c.TextModel != "" {
		opts = append(opts, textchat.WithModel(c.TextModel))
	}
	chat := textchat.New(client.Models, opts...)

	if _, err := rec.Append(ctx, sess.ID, transcript.RoleUser, transcript.KindText, prompt); err != nil {
		return err
	}
	reply, replyErr := chat.Reply(ctx, history, prompt)
	if replyErr == nil {
		if _, err := rec.Append(ctx, sess.ID, transcript.RoleAssistant, transcript.KindText, reply); err != nil {
			return err
		}
	}

	if outputJSON || jqQuery != "" || outputFile != "" {
		return outputResult(map[string]string{"session": sess.ID, "reply": reply})
	}
	styles := cli.NewStyles(cli.DefaultTheme)
	fmt.Printf("%s: %s\n", styles.Assistant.Render("WonderChat"), reply)
	if verbose {
		fmt.Printf("(session %s)\n", sess.ID)
	}
	return replyErr
}

func init() {
	askCmd.Flags().String("profile", "", "profile to tailor the reply to")
	askCmd.Flags().String("session", "", "continue an earlier text session")
}
