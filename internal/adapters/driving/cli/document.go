package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage corpus documents",
	Long:  `Add, view, remove, or re-index documents in the corpus.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add [doc-id]",
	Short: "Add or update a document",
	Long: `Stores a document in the corpus and marks it for embedding. Content
is read from --file, or from stdin when no file is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentAdd,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List document IDs",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentRemoveCmd = &cobra.Command{
	Use:   "remove [doc-id]",
	Short: "Remove a document",
	Long: `Deletes the document from the corpus along with its embedding and
pipeline state, and invalidates cached query results.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentRemove,
}

var documentRefreshCmd = &cobra.Command{
	Use:   "refresh [doc-id]",
	Short: "Re-embed a single document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRefresh,
}

var documentStatusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show pipeline state for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentStatus,
}

var (
	addTitle string
	addFile  string
)

func init() {
	documentAddCmd.Flags().StringVarP(&addTitle, "title", "t", "", "document title")
	documentAddCmd.Flags().StringVarP(&addFile, "file", "f", "", "read content from this file instead of stdin")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentRemoveCmd)
	documentCmd.AddCommand(documentRefreshCmd)
	documentCmd.AddCommand(documentStatusCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	if documentStore == nil || indexerService == nil {
		return errors.New("document service not configured")
	}

	var content []byte
	var err error
	if addFile != "" {
		content, err = os.ReadFile(addFile)
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	docID := args[0]
	ctx := context.Background()

	doc := &domain.Document{
		ID:      docID,
		Title:   addTitle,
		Content: string(content),
	}
	if err := documentStore.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	if err := indexerService.IndexDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to mark document for indexing: %w", err)
	}

	cmd.Printf("Document %s saved and marked for indexing.\n", docID)
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	doc, err := documentStore.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Hash:     %s\n", doc.ContentHash)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %v\n", k, v)
		}
	}
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document service not configured")
	}

	ctx := context.Background()
	content, _, err := documentStore.GetContent(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentStore == nil {
		return errors.New("document service not configured")
	}

	ctx := context.Background()
	ids, err := documentStore.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(ids) == 0 {
		cmd.Println("No documents in corpus.")
		return nil
	}

	for _, id := range ids {
		cmd.Printf("  %s\n", id)
	}
	cmd.Printf("\nTotal: %d documents\n", len(ids))
	return nil
}

func runDocumentRemove(cmd *cobra.Command, args []string) error {
	if documentStore == nil || indexerService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	if err := indexerService.RemoveDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to remove document from index: %w", err)
	}
	if err := documentStore.Delete(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s removed.\n", docID)
	return nil
}

func runDocumentRefresh(cmd *cobra.Command, args []string) error {
	if indexerService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	if err := indexerService.IndexDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to refresh document: %w", err)
	}

	cmd.Printf("Document %s marked for re-embedding.\n", docID)
	return nil
}

func runDocumentStatus(cmd *cobra.Command, args []string) error {
	if indexerService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	entry, err := indexerService.Status(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document status: %w", err)
	}

	cmd.Printf("Document: %s\n\n", entry.DocumentID)
	cmd.Printf("  State:    %s\n", entry.State)
	cmd.Printf("  Attempts: %d\n", entry.Attempts)
	if entry.LastError != "" {
		cmd.Printf("  Error:    %s\n", entry.LastError)
	}
	if !entry.NextRetryAt.IsZero() {
		cmd.Printf("  Retry at: %s\n", entry.NextRetryAt.Format("2006-01-02 15:04:05"))
	}
	cmd.Printf("  Updated:  %s\n", entry.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
