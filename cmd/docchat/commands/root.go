// Package commands defines all Cobra CLI commands for the docchat binary.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/docchat/internal/audit"
	"github.com/54b3r/docchat/internal/config"
	"github.com/54b3r/docchat/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command. Run without a subcommand it
// opens the interactive menu.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docchat",
		Short: "docchat: ask questions about your documents",
		Long: `docchat answers questions using only the documents you give it.

Put .txt, .pdf and .docx files in the documents folder (default ./documentos),
choose "1" to memorise them and "2" to chat. Type "sair" or "exit" to leave
the chat.

The completion provider is selected via MODEL_PROVIDER (default: groq, which
reads GROQ_API_KEY). Settings can also come from a .env file in the working
directory or a YAML config file (~/.docchat/config.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env first so the logger honours LOG_LEVEL / LOG_FORMAT from it.
			dotenv, err := config.LoadDotEnv(config.DefaultDotEnv)
			if err != nil {
				return err
			}

			log := logging.New()
			if dotenv {
				log.Debug("config: loaded .env", "path", config.DefaultDotEnv)
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Pick up LOG_* values that only the YAML file provided.
			log = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), loadedConfigPath)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, "")
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			sh, err := a.Shell(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("docchat: %w", err)
			}
			return sh.Run(ctx)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.docchat/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewChatCmd(),
		NewVersionCmd(),
	)

	return root
}
