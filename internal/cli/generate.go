package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"trivia-service/internal/config"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/jsonfile"
)

// NewGenerateCmd generates one question with the configured AI model.
func NewGenerateCmd(configPath *string) *cobra.Command {
	var (
		category string
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a trivia question with the configured AI model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			gen := questionGenerator(cfg, logger)
			if gen == nil {
				return fmt.Errorf("%w: set AI_API_KEY or OPENAI_API_KEY", domain.ErrGeneratorUnavailable)
			}

			q, err := gen.Generate(cmd.Context(), category)
			if err != nil {
				return err
			}
			if err := domain.ValidateQuestion(q); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrValidation, err)
			}
			out, _ := json.MarshalIndent(q, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !save {
				return nil
			}
			file := cfg.Questions.File
			if file == "" {
				file = "questions.json"
			}
			if err := jsonfile.NewStore(file).Append(cmd.Context(), q); err != nil {
				return err
			}
			logger.Info().Str("question_id", q.ID).Str("file", file).Msg("question saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "question category (max 50 characters)")
	cmd.Flags().BoolVar(&save, "save", false, "append the question to the question file")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
