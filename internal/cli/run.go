package cli

import (
	"github.com/spf13/cobra"
)

var runHeaders = []string{"ID", "WORKFLOW_ID", "STATUS", "TRIGGER", "CREATED"}

func runRow(r *RunResponse) []string {
	return []string{r.ID, r.WorkflowID, r.Status, r.Trigger, r.CreatedAt}
}

// NewRunCmd создаёт группу команд для просмотра runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect workflow runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListRunsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, _, err := client.ListRuns(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i := range runs {
				rows[i] = runRow(&runs[i])
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.WorkflowID, "workflow-id", "", "Filter by workflow ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details, step log and final context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(run)
				return nil
			}

			out.Table(
				[]string{"ID", "WORKFLOW_ID", "STATUS", "TRIGGER", "ERROR", "CREATED"},
				[][]string{{run.ID, run.WorkflowID, run.Status, run.Trigger, run.Error, run.CreatedAt}},
			)
			if len(run.StepsRun) > 0 {
				out.Success("")
				printStepResults(out, run.StepsRun)
			}
			if len(run.Context) > 0 {
				out.Success("")
				out.Context(run.Context)
			}
			return nil
		},
	}
}
