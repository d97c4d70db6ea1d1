package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/conduit-lang/modelkit/internal/cli/ui"
	"github.com/conduit-lang/modelkit/internal/orm/definition"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

// loadedModel is a definition together with the finalized model built from it
type loadedModel struct {
	doc   *definition.Document
	model *metadata.FinalizedModel
}

// buildModel loads, builds and finalizes a definition file. Failures are written to
// stderr with every underlying error listed.
func buildModel(cmd *cobra.Command, env *environment, path string) (*loadedModel, error) {
	doc, err := definition.Load(path)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.FormatError(ui.ErrorOptions{
			Context: "definition error",
			Problem: err.Error(),
			NoColor: env.noColor,
		}))
		return nil, reported{err}
	}

	b, err := definition.Build(doc, env.logger, definition.WithModelOptions(env.config.ModelOptions()...))
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ModelErrors("build failed", splitErrors(err), env.noColor))
		return nil, reported{err}
	}

	fm, err := b.Finalize()
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ModelErrors("finalize failed", splitErrors(err), env.noColor))
		return nil, reported{err}
	}

	env.logger.Debug("model built")
	return &loadedModel{doc: doc, model: fm}, nil
}

// splitErrors flattens definition validation errors and combined builder errors
func splitErrors(err error) []error {
	var verrs definition.ValidationErrors
	if errors.As(err, &verrs) {
		result := make([]error, len(verrs))
		for i, e := range verrs {
			result[i] = e
		}
		return result
	}
	return multierr.Errors(err)
}
