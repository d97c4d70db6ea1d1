package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/modelkit/internal/cli/ui"
)

// NewValidateCommand creates the validate command
func NewValidateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition.yaml>",
		Short: "Validate a model definition",
		Long: `Build and finalize the model described by a definition file and report
every error found. The exit status is non-zero when the model is invalid.`,
		Example: `  modelkit validate model.yaml
  MODELKIT_MODEL_CHANGE_TRACKING=changed modelkit validate model.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			loaded, err := buildModel(cmd, env, args[0])
			if err != nil {
				return err
			}

			count := len(loaded.model.EntityTypes())
			noun := "entity types"
			if count == 1 {
				noun = "entity type"
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s is valid (%d %s)", args[0], count, noun), env.noColor)
			return nil
		},
	}
}
