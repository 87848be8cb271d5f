// Stepflow CLI — утилита командной строки для Stepflow API.
//
// Примеры:
//
//	stepflow workflow sample
//	stepflow workflow run <id> --input url=https://example.com
//	stepflow schedule create <id> --cron '@hourly'
//	stepflow llm summarize https://example.com
package main

import (
	"fmt"
	"os"

	"github.com/shaiso/Stepflow/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCmd(version, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
