package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relaymesh/postrelay/pkg/workplace"
)

func newNormalizeCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "normalize [message]",
		Short: "Preview how a post message is rewritten before forwarding",
		Example: "  postrelay normalize \"Read this\\nLink: x\\nhttps://example.com/a\"\n" +
			"  postrelay normalize --file message.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			var message string
			if len(args) > 0 {
				message = strings.ReplaceAll(strings.Join(args, " "), `\n`, "\n")
			} else {
				data, err := readInput(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				message = string(data)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), workplace.NormalizeMessage(message))
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Message file (default stdin)")
	return cmd
}
