package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewChatCmd constructs the `docchat chat` command, which starts the chat
// loop directly.
func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about the memorised documents",
		Long: `Start an interactive chat. Each question is answered only from the most
relevant stored passages; when nothing relevant is stored the answer is the
fallback sentence. Type "sair" or "exit" to leave.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, "")
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			sh, err := a.Shell(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			return sh.Chat(ctx)
		},
	}
}
