package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/wonderchat/pkg/cli"
	"github.com/haivivi/wonderchat/pkg/kv"
	"github.com/haivivi/wonderchat/pkg/storage"
)

var (
	cfgFile     string
	contextName string
	outputFile  string
	outputJSON  bool
	jqQuery     string
	verbose     bool

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "wonderchat",
	Short: "Voice companion for children",
	Long: `wonderchat - a friendly voice companion for children with special needs.

Talk with the assistant in real time through the microphone, ask it text
questions, and keep per-child profiles and transcripts.

Configuration is stored in ~/.wonderchat/config.yaml and supports multiple
contexts, similar to kubectl's context management.

Examples:
  # Set up a context
  wonderchat config add-context home --api-key YOUR_GEMINI_KEY

  # Create a profile and start talking
  wonderchat profile create --name Mia --age 7 --type adhd
  wonderchat live --profile <id>

  # Show only the child's side of a conversation
  wonderchat transcript show <session> --jq '.[] | select(.role == "user") | .content'`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.wonderchat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&jqQuery, "jq", "", "jq expression applied to the output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(transcriptCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	globalConfig, err = cli.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

func getContext() (*cli.Context, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig.ResolveContext(contextName)
}

// openStore opens the profile and transcript database of the context.
func openStore(c *cli.Context) (*kv.Badger, error) {
	dir, err := c.ResolveDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return kv.OpenBadger(kv.BadgerOptions{Dir: dir, Logger: slog.Default()})
}

// newArchive returns nil when the context has no export destination.
func newArchive(c *cli.Context) (*storage.Archive, error) {
	e := c.Export
	if e == nil {
		return nil, nil
	}
	switch {
	case e.Bucket != "":
		return storage.NewArchive(storage.NewS3(storage.NewS3Client(e.S3), e.Bucket, e.Prefix)), nil
	case e.Dir != "":
		local, err := storage.NewLocal(e.Dir)
		if err != nil {
			return nil, err
		}
		return storage.NewArchive(local), nil
	}
	return nil, nil
}

func outputResult(result any) error {
	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
		Query:  jqQuery,
	})
}
