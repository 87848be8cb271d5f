package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewLLMCmd создаёт группу команд для прямых запросов к LLM.
func NewLLMCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Send requests to the language model",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "prompt TEXT...",
			Short: "Send a prompt and print the reply",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := clientFn().Prompt(strings.Join(args, " "))
				if err != nil {
					return err
				}
				printText(outputFn(), resp, resp.Result)
				return nil
			},
		},
		&cobra.Command{
			Use:   "summarize URL",
			Short: "Fetch a page and print its summary",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := clientFn().SummarizeURL(args[0])
				if err != nil {
					return err
				}
				printText(outputFn(), resp, resp.Summary)
				return nil
			},
		},
	)

	return cmd
}

// NewStepTypesCmd создаёт команду со списком типов шагов.
func NewStepTypesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "step-types",
		Short: "List supported step types",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := clientFn().StepTypes()
			if err != nil {
				return err
			}

			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t.Type}
			}
			outputFn().Print([]string{"TYPE"}, rows, types)
			return nil
		},
	}
}

func printText(out *Output, jsonData any, text string) {
	if out.IsJSON() {
		out.JSON(jsonData)
		return
	}
	out.Text(text)
}
