package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trivia-service/internal/config"
	"trivia-service/internal/infra/jsonfile"
	"trivia-service/internal/infra/memory"
)

// NewValidateCmd checks a question file without starting the server.
func NewValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a question file and report rejected records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 1 {
				file = args[0]
			} else {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				file = cfg.Questions.File
			}
			if file == "" {
				return fmt.Errorf("no question file given and questions.file is not configured")
			}

			_, report, err := memory.LoadQuestionRepository(cmd.Context(), jsonfile.NewStore(file), zerolog.Nop())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rejected := range report.Rejected {
				fmt.Fprintf(out, "rejected: %v\n", rejected)
			}
			fmt.Fprintf(out, "%s: %d accepted, %d rejected\n", file, report.Accepted, len(report.Rejected))
			if report.Accepted == 0 {
				return fmt.Errorf("%s contains no valid questions", file)
			}
			return nil
		},
	}
}
