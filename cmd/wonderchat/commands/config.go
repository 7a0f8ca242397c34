package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/wonderchat/pkg/cli"
	"github.com/haivivi/wonderchat/pkg/storage"
	"github.com/haivivi/wonderchat/pkg/vad"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts. Each context holds a Gemini API key, voice settings,
the data directory and an optional export destination.

Configuration is stored in ~/.wonderchat/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Long: `Add or replace a context.

Examples:
  wonderchat config add-context home --api-key KEY --voice Puck
  wonderchat config add-context clinic --api-key KEY --export-bucket logs --s3-region us-east-1
  wonderchat config add-context dev -f context.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := &cli.Context{}
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			if err := cli.LoadFile(file, ctx); err != nil {
				return err
			}
		}
		if err := applyContextFlags(cmd.Flags(), ctx); err != nil {
			return err
		}
		if ctx.APIKey == "" {
			return fmt.Errorf("--api-key is required")
		}
		if err := globalConfig.SetContext(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q saved", args[0])
		return nil
	},
}

// contextFlags registers the context fields on f.
func contextFlags(f *pflag.FlagSet) {
	f.StringP("file", "f", "", "context definition file (YAML or JSON)")
	f.String("api-key", "", "Gemini API key")
	f.String("live-url", "", "override the Live WebSocket endpoint")
	f.String("model", "", "Live model")
	f.String("text-model", "", "text chat model")
	f.String("voice", "", "prebuilt voice name")
	f.String("language", "", "speech language code, e.g. en-US")
	f.String("data-dir", "", "profile and transcript database directory")
	f.Float64("vad-threshold", 0, "speech level threshold (0..1)")
	f.Duration("vad-silence", 0, "silence that ends an utterance")
	f.Bool("no-vad", false, "stream the microphone continuously")
	f.String("export-dir", "", "archive debug logs and transcripts to this directory")
	f.String("export-bucket", "", "archive debug logs and transcripts to this S3 bucket")
	f.String("export-prefix", "", "key prefix inside the export bucket")
	f.String("s3-region", "", "S3 region")
	f.String("s3-endpoint", "", "S3-compatible endpoint")
	f.String("s3-access-key", "", "S3 access key ID")
	f.String("s3-secret-key", "", "S3 secret access key")
	f.Bool("s3-path-style", false, "use path-style bucket addressing")
}

// applyContextFlags copies the flags of f that were set onto ctx.
func applyContextFlags(f *pflag.FlagSet, ctx *cli.Context) error {
	strs := map[string]*string{
		"api-key":    &ctx.APIKey,
		"live-url":   &ctx.LiveURL,
		"model":      &ctx.Model,
		"text-model": &ctx.TextModel,
		"voice":      &ctx.Voice,
		"language":   &ctx.Language,
		"data-dir":   &ctx.DataDir,
	}
	for name, dst := range strs {
		if f.Changed(name) {
			v, err := f.GetString(name)
			if err != nil {
				return fmt.Errorf("failed to read %q flag: %w", name, err)
			}
			*dst = v
		}
	}

	if f.Changed("vad-threshold") || f.Changed("vad-silence") || f.Changed("no-vad") {
		if ctx.VAD == nil {
			ctx.VAD = &vad.Patch{}
		}
		if f.Changed("vad-threshold") {
			v, _ := f.GetFloat64("vad-threshold")
			ctx.VAD.SilenceThreshold = &v
		}
		if f.Changed("vad-silence") {
			v, _ := f.GetDuration("vad-silence")
			ctx.VAD.SilenceDuration = &v
		}
		if f.Changed("no-vad") {
			off, _ := f.GetBool("no-vad")
			enabled := !off
			ctx.VAD.Enabled = &enabled
		}
		if err := ctx.VAD.Apply(vad.DefaultConfig()).Validate(); err != nil {
			return err
		}
	}

	if f.Changed("export-dir") || f.Changed("export-bucket") {
		e := &cli.ExportConfig{}
		e.Dir, _ = f.GetString("export-dir")
		e.Bucket, _ = f.GetString("export-bucket")
		e.Prefix, _ = f.GetString("export-prefix")
		e.S3 = storage.S3Config{}
		e.S3.Region, _ = f.GetString("s3-region")
		e.S3.Endpoint, _ = f.GetString("s3-endpoint")
		e.S3.AccessKeyID, _ = f.GetString("s3-access-key")
		e.S3.SecretAccessKey, _ = f.GetString("s3-secret-key")
		e.S3.PathStyle, _ = f.GetBool("s3-path-style")
		ctx.Export = e
	}
	return nil
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := globalConfig.ContextNames()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tAPI KEY\tVOICE\tEXPORT")
		for _, name := range names {
			c := globalConfig.Contexts[name]
			current := ""
			if name == globalConfig.CurrentContext {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name, cli.MaskAPIKey(c.APIKey), c.Voice, exportTarget(c.Export))
		}
		return w.Flush()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view [name]",
	Short: "Show a context with secrets masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := contextName
		if len(args) == 1 {
			name = args[0]
		}
		c, err := globalConfig.ResolveContext(name)
		if err != nil {
			return err
		}
		masked := *c
		masked.APIKey = cli.MaskAPIKey(c.APIKey)
		if c.Export != nil {
			e := *c.Export
			e.S3.SecretAccessKey = cli.MaskAPIKey(e.S3.SecretAccessKey)
			masked.Export = &e
		}
		return outputResult(&masked)
	},
}

func exportTarget(e *cli.ExportConfig) string {
	switch {
	case e == nil:
		return "-"
	case e.Bucket != "":
		return "s3://" + e.Bucket + "/" + e.Prefix
	default:
		return e.Dir
	}
}

func init() {
	contextFlags(configAddContextCmd.Flags())

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
