package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Store a listing PDF as a new analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		address, _ := cmd.Flags().GetString("address")
		a, err := env.Service.Upload(ctx, data, address)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Uploaded %s as %s.\n", args[0], a.Document.Filename)
		fmt.Fprintln(os.Stdout, a.ID)

		if run, _ := cmd.Flags().GetBool("run"); !run {
			return nil
		}
		res, err := env.Service.Start(ctx, a.ID, "")
		if err != nil {
			return err
		}
		formatStartResult(os.Stderr, res)
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("address", "", "property address used for neighborhood enrichment")
	uploadCmd.Flags().Bool("run", false, "start the analysis right after upload")
	rootCmd.AddCommand(uploadCmd)
}
