package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var workflowHeaders = []string{"ID", "NAME", "TRIGGER", "STEPS", "CREATED"}

func workflowRow(wf *WorkflowResponse) []string {
	return []string{wf.ID, wf.Name, wf.Trigger, strconv.Itoa(len(wf.Steps)), wf.CreatedAt}
}

// NewWorkflowCmd создаёт группу команд для управления workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowCreateCmd(clientFn, outputFn),
		newWorkflowUpdateCmd(clientFn, outputFn),
		newWorkflowDeleteCmd(clientFn, outputFn),
		newWorkflowSampleCmd(clientFn, outputFn),
		newWorkflowRunCmd(clientFn, outputFn),
		newWorkflowEnqueueCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, total, err := client.ListWorkflows(limit, offset)
			if err != nil {
				return err
			}

			rows := make([][]string, len(workflows))
			for i := range workflows {
				rows[i] = workflowRow(&workflows[i])
			}

			out.Print(workflowHeaders, rows, workflows)
			if !out.IsJSON() && total > len(workflows) {
				out.Success(fmt.Sprintf("Showing %d of %d", len(workflows), total))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow details and steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(wf)
				return nil
			}

			out.Table(workflowHeaders, [][]string{workflowRow(wf)})
			printSteps(out, wf.Steps)
			return nil
		},
	}
}

func printSteps(out *Output, steps []StepSpec) {
	if len(steps) == 0 {
		return
	}
	rows := make([][]string, len(steps))
	for i, s := range steps {
		rows[i] = []string{strconv.Itoa(s.Order), s.ID, s.Type, formatValue(s.Config)}
	}
	out.Success("")
	out.Table([]string{"ORDER", "STEP_ID", "TYPE", "CONFIG"}, rows)
}

func newWorkflowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wfFile, err := LoadWorkflowFile(file)
			if err != nil {
				return err
			}

			wf, err := client.CreateWorkflow(wfFile.Request())
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow created: %s", wf.ID))
			out.Print(workflowHeaders, [][]string{workflowRow(wf)}, wf)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to workflow file (.yaml, .yml, .json) (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace a workflow with the contents of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wfFile, err := LoadWorkflowFile(file)
			if err != nil {
				return err
			}

			wf, err := client.UpdateWorkflow(args[0], wfFile.Request())
			if err != nil {
				return err
			}

			out.Success("Workflow updated")
			out.Print(workflowHeaders, [][]string{workflowRow(wf)}, wf)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to workflow file (.yaml, .yml, .json) (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a workflow with its runs and schedules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteWorkflow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow deleted: %s", args[0]))
			return nil
		},
	}
}

func newWorkflowSampleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Create the sample fetch-and-summarize workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.CreateSampleWorkflow()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Sample workflow created: %s", wf.ID))
			out.Print(workflowHeaders, [][]string{workflowRow(wf)}, wf)
			return nil
		},
	}
}

func newWorkflowRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var rawContext string
	var inputs []string

	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Run a workflow synchronously and print the resulting context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			initial, err := parseContext(rawContext, inputs)
			if err != nil {
				return err
			}

			result, err := client.RunWorkflow(args[0], initial)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(result)
			} else {
				printStepResults(out, result.StepsRun)
				out.Success("")
				out.Context(result.Context)
			}

			if result.Status == "FAILED" {
				return fmt.Errorf("run %s failed", result.RunID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rawContext, "context", "", "Initial context as a JSON object")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Context values as KEY=VALUE (repeatable)")

	return cmd
}

func printStepResults(out *Output, results []StepResult) {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{r.ID, r.Type, r.Status, r.Error}
	}
	out.Table([]string{"STEP_ID", "TYPE", "STATUS", "ERROR"}, rows)
}

func newWorkflowEnqueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var rawContext string
	var inputs []string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "enqueue ID",
		Short: "Queue a workflow run for a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			initial, err := parseContext(rawContext, inputs)
			if err != nil {
				return err
			}

			run, err := client.EnqueueRun(args[0], EnqueueRunRequest{
				Context:        initial,
				IdempotencyKey: idempotencyKey,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run queued: %s", run.ID))
			out.Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&rawContext, "context", "", "Initial context as a JSON object")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Context values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Return the existing run if this key was used before")

	return cmd
}
