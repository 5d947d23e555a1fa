package cmd

import (
	"fmt"
	"sort"

	"threadscope/internal/digest"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <digest.md>",
	Short: "Parse a thread digest and print its front matter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := digest.ParseFile(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		keys := make([]string, 0, len(doc.Frontmatter))
		for k := range doc.Frontmatter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %v\n", k, doc.Frontmatter[k])
		}
		fmt.Fprintf(w, "body bytes: %d\n", len(doc.Body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
