// cmd/classify.go

package cmd

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/uiharness/internal/action"
)

func newClassifyCmd() *cobra.Command {
	var (
		url    string
		asJSON bool
	)

	classifyCmd := &cobra.Command{
		Use:   "classify <diagnostic...>",
		Short: "Classify a raw navigation error and print its remediation message",
		Example: `  uiharness classify "page load error net::ERR_CONNECTION_REFUSED" --url http://127.0.0.1:9/
  uiharness classify --json "net::ERR_NAME_NOT_RESOLVED"`,
		Args: cobra.MinimumNArgs(1),
		// Classification is pure; it needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			failure := action.Diagnose(url, strings.Join(args, " "))
			out := cmd.OutOrStdout()

			if !asJSON {
				fmt.Fprintf(out, "%s\n%s\n", failure.Category, failure.Message)
				return nil
			}
			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(failure); err != nil {
				return fmt.Errorf("failed to encode diagnosis: %w", err)
			}
			return nil
		},
	}

	classifyCmd.Flags().StringVarP(&url, "url", "u", "<unknown>", "URL the diagnostic was produced for")
	classifyCmd.Flags().BoolVar(&asJSON, "json", false, "print the diagnosis as JSON")
	return classifyCmd
}
