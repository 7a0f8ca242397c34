package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/wonderchat/pkg/cli"
	"github.com/haivivi/wonderchat/pkg/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage child profiles",
	Long: `Manage child profiles. A profile's name, age and type shape how the
assistant talks in live and text conversations.

Types: autism (default), adhd, social_skills, general.`,
}

// withProfiles opens the context's database for the duration of fn.
func withProfiles(fn func(ctx context.Context, s *profile.Store) error) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(context.Background(), profile.NewStore(db))
}

var profileCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		age, _ := cmd.Flags().GetInt("age")
		typ, _ := cmd.Flags().GetString("type")
		return withProfiles(func(ctx context.Context, s *profile.Store) error {
			p, err := s.Create(ctx, name, age, typ)
			if err != nil {
				return err
			}
			return outputResult(p)
		})
	},
}

var profileImportCmd = &cobra.Command{
	Use:   "import -f <file>",
	Short: "Create profiles from a YAML or JSON list",
	Long: `Create profiles from a file holding a list of {name, age, type}.

Example:
  - name: Mia
    age: 7
    type: adhd
  - name: Leo
    age: 9`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("-f is required")
		}
		var entries []profile.Profile
		if err := cli.LoadFile(file, &entries); err != nil {
			return err
		}
		return withProfiles(func(ctx context.Context, s *profile.Store) error {
			var created []*profile.Profile
			for _, e := range entries {
				p, err := s.Create(ctx, e.Name, e.Age, e.Type)
				if err != nil {
					return fmt.Errorf("profile %q: %w", e.Name, err)
				}
				created = append(created, p)
			}
			return outputResult(created)
		})
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(func(ctx context.Context, s *profile.Store) error {
			ps, err := s.List(ctx)
			if err != nil {
				return err
			}
			if outputJSON || jqQuery != "" || outputFile != "" {
				return outputResult(ps)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tAGE\tTYPE\tCREATED")
			for _, p := range ps {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, p.Age, p.Type, p.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var profileGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a profile and its instructions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(func(ctx context.Context, s *profile.Store) error {
			p, err := s.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return outputResult(struct {
				*profile.Profile `yaml:",inline"`
				Greeting         string `json:"greeting" yaml:"greeting"`
				LiveInstruction  string `json:"live_instruction" yaml:"live_instruction"`
			}{p, profile.Greeting(p), profile.LiveInstruction(p)})
		})
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfiles(func(ctx context.Context, s *profile.Store) error {
			if err := s.Delete(ctx, args[0]); err != nil {
				return err
			}
			cli.PrintSuccess("Profile %s deleted", args[0])
			return nil
		})
	},
}

func init() {
	profileCreateCmd.Flags().String("name", "", "child's name")
	profileCreateCmd.Flags().Int("age", 0, fmt.Sprintf("child's age (%d-%d)", profile.MinAge, profile.MaxAge))
	profileCreateCmd.Flags().String("type", profile.TypeAutism, "profile type")
	profileImportCmd.Flags().StringP("file", "f", "", "profile list file (- for stdin)")

	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileImportCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileGetCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}
