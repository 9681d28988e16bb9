package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewIngestCmd constructs the `docchat ingest` command, which runs one
// ingestion pass without opening the menu.
func NewIngestCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Memorise the documents folder into the vector collection",
		Long: `Read every .txt, .pdf and .docx file directly inside the documents folder
and store it in the vector collection, keyed by file name. Re-ingesting a file
replaces its previous content. Unreadable files are reported and skipped.

Environment variables:
  DOCCHAT_DOCS_DIR     Documents folder (default: ./documentos)
  VECTOR_STORE         sqlite or qdrant (default: sqlite)
  DOCCHAT_STORE_PATH   SQLite file (default: ~/.docchat/vectors.db)
  DOCCHAT_COLLECTION   Collection name (default: conhecimento_empresa)
  EMBEDDING_PROVIDER   local, ollama, openai, azure (default: local)

Examples:
  docchat ingest
  docchat ingest --dir ./manuais`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, dir)
			if err != nil {
				return err
			}
			defer closeApp(ctx, a)

			sh, err := a.Shell(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if err := sh.Refresh(ctx); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Documents folder (overrides DOCCHAT_DOCS_DIR)")

	return cmd
}
