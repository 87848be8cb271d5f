package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// DefaultAPIURL — адрес API по умолчанию.
const DefaultAPIURL = "http://localhost:8080"

// NewRootCmd собирает дерево команд stepflow.
// Адрес API берётся из --api-url, затем из STEPFLOW_API_URL.
func NewRootCmd(version string, stdout, stderr io.Writer) *cobra.Command {
	var apiURL string
	var jsonOutput bool
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:           "stepflow",
		Short:         "Stepflow CLI — build and run step workflows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	defaultURL := DefaultAPIURL
	if v := os.Getenv("STEPFLOW_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", DefaultTimeout, "HTTP request timeout")

	clientFn := func() *Client { return NewClient(apiURL, timeout) }
	outputFn := func() *Output { return NewOutputTo(jsonOutput, stdout, stderr) }

	rootCmd.AddCommand(
		NewWorkflowCmd(clientFn, outputFn),
		NewRunCmd(clientFn, outputFn),
		NewScheduleCmd(clientFn, outputFn),
		NewLLMCmd(clientFn, outputFn),
		NewStepTypesCmd(clientFn, outputFn),
	)

	return rootCmd
}
