package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/expose-cli/internal/analysis"
)

var runCmd = &cobra.Command{
	Use:   "run <analysis-id>",
	Short: "Enrich an analysis and submit it to the analysis agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		address, _ := cmd.Flags().GetString("address")
		res, err := env.Service.Start(ctx, args[0], address)
		if err != nil {
			return err
		}
		formatStartResult(os.Stderr, res)

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			return waitAndPrint(cmd, env, args[0], timeout)
		}
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll <analysis-id>",
	Short: "Check the status of a running analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			return waitAndPrint(cmd, env, args[0], timeout)
		}

		res, err := env.Service.Poll(ctx, args[0])
		if err != nil {
			return err
		}
		return printPollResult(res)
	},
}

func waitAndPrint(cmd *cobra.Command, env *appEnv, id string, timeout time.Duration) error {
	res, err := env.Service.Wait(cmd.Context(), id,
		analysis.WithWaitTimeout(timeout),
		analysis.WithProgress(func(p *analysis.PollResult) { formatProgress(os.Stderr, p) }),
	)
	if err != nil {
		return err
	}
	return printPollResult(res)
}

func printPollResult(res *analysis.PollResult) error {
	formatProgress(os.Stderr, res)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func init() {
	runCmd.Flags().String("address", "", "override the stored property address")
	runCmd.Flags().Bool("wait", false, "poll until the analysis finishes")
	runCmd.Flags().Duration("timeout", 30*time.Minute, "maximum time to wait with --wait")

	pollCmd.Flags().Bool("wait", false, "poll until the analysis finishes")
	pollCmd.Flags().Duration("timeout", 30*time.Minute, "maximum time to wait with --wait")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pollCmd)
}
