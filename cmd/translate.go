package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/expose-cli/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate [analysis-id]",
	Short: "Translate an analysis result, or text from --text / stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("translate"); err != nil {
			return err
		}

		to, _ := cmd.Flags().GetString("to")
		lang, err := translate.ParseLanguage(to)
		if err != nil {
			return err
		}
		tr := initTranslator()

		if len(args) == 1 {
			if err := cfg.Validate("cli"); err != nil {
				return err
			}
			env, err := initEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			a, err := env.Service.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if len(a.Result) == 0 {
				return eris.Errorf("analysis %s has no result yet (status %s)", a.ID, a.Status)
			}
			out, err := tr.Result(ctx, a.Result, lang)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, string(out))
			return err
		}

		text, _ := cmd.Flags().GetString("text")
		if text == "" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "read stdin")
			}
			text = string(b)
		}
		out, err := tr.Text(ctx, text, lang)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, out)
		return err
	},
}

func init() {
	translateCmd.Flags().String("to", "en", `target language ("en" or "de")`)
	translateCmd.Flags().String("text", "", "text to translate instead of an analysis result")
	rootCmd.AddCommand(translateCmd)
}
