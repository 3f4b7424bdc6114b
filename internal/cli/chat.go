package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the core",
	Long: "With a message, send it and print the reply. Without one, read " +
		"messages line by line from stdin until EOF.",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		out := cmd.OutOrStdout()
		send := func(message string) error {
			reply, err := b.Chat(message)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			fmt.Fprintln(out, reply.Text)
			return nil
		}

		if len(args) > 0 {
			return send(strings.Join(args, " "))
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := send(line); err != nil {
				return err
			}
		}
		return scanner.Err()
	},
}
