package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/symdex/symdex-mcp/internal/embedder"
	"github.com/symdex/symdex-mcp/internal/indexer"
	"github.com/symdex/symdex-mcp/internal/mcp"
	"github.com/symdex/symdex-mcp/internal/scope"
	"github.com/symdex/symdex-mcp/internal/searcher"
	"github.com/symdex/symdex-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var dbPath string

func main() {
	root := &cobra.Command{
		Use:           "symdex",
		Short:         "Local code intelligence index and MCP server for Go projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "database directory (default: $SYMDEX_DB_PATH or ~/.symdex/indices)")

	root.AddCommand(serveCmd(), indexCmd(), searchCmd(), statusCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// resolveDBPath picks the database directory: flag, env, then default
func resolveDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("SYMDEX_DB_PATH"); env != "" {
		return env
	}
	return mcp.DefaultDBPath
}

// openStorage opens the shared database for the direct CLI commands
func openStorage() (storage.Storage, error) {
	dir := resolveDBPath()
	if dir == mcp.DefaultDBPath {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".symdex", "indices")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "symdex.db"))
	if err != nil {
		return nil, err
	}
	return store, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Log startup info to stderr (stdout reserved for MCP protocol)
			log.SetOutput(os.Stderr)
			log.Printf("Symdex MCP Server v%s starting...", version)
			log.Printf("Build Mode: %s, Driver: %s, Vector Extension: %v",
				storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable)

			server, err := mcp.NewServer(resolveDBPath())
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				log.Println("MCP server ready, listening on stdio...")
				errChan <- server.Serve(ctx)
			}()

			select {
			case sig := <-sigChan:
				log.Printf("Received signal %v, shutting down gracefully...", sig)
				cancel()
			case err := <-errChan:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}

			log.Println("Server stopped")
			return nil
		},
	}
}

func indexCmd() *cobra.Command {
	var includeTests, includeVendor bool

	cmd := &cobra.Command{
		Use:   "index <project-path>",
		Short: "Index a Go project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			idx := indexer.New(store)
			stats, err := idx.IndexProject(cmd.Context(), path, &indexer.Config{
				IncludeTests:  includeTests,
				IncludeVendor: includeVendor,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Indexed %s in %v\n", path, stats.Duration.Round(time.Millisecond))
			fmt.Printf("  Files:      %d indexed, %d skipped, %d failed\n",
				stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed)
			fmt.Printf("  Symbols:    %d\n", stats.SymbolsExtracted)
			fmt.Printf("  Chunks:     %d\n", stats.ChunksCreated)
			fmt.Printf("  Call graph: %d resolved, %d pending\n",
				stats.CallsResolved, stats.CallsUnresolved)
			fmt.Printf("  Modules:    %d\n", stats.ModulesMapped)
			for _, msg := range stats.ErrorMessages {
				fmt.Fprintln(os.Stderr, "  error:", msg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeTests, "tests", true, "index *_test.go files")
	cmd.Flags().BoolVar(&includeVendor, "vendor", false, "index vendor/ directory")
	return cmd
}

func searchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <project-path> <query>",
		Short: "Search an indexed project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			query := args[1]
			for _, extra := range args[2:] {
				query += " " + extra
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			project, err := store.GetProject(cmd.Context(), path)
			if err == storage.ErrNotFound {
				return fmt.Errorf("project not indexed: %s (run 'symdex index' first)", path)
			}
			if err != nil {
				return err
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				emb = nil
			}

			s := searcher.NewSearcher(store, emb, scope.NewProvider(store))
			response, err := s.Search(cmd.Context(), searcher.SearchRequest{
				Query:     query,
				Limit:     limit,
				ProjectID: project.ID,
			})
			if err != nil {
				return err
			}

			if response.Degraded {
				fmt.Fprintf(os.Stderr, "note: degraded search, skipped sources: %v\n", response.DegradedSources)
			}
			for _, result := range response.Results {
				name := ""
				if result.Symbol != nil {
					name = " " + result.Symbol.Name
				}
				fmt.Printf("[%d] %.2f%s  %s:%d (%s)\n",
					result.Rank, result.RelevanceScore, name,
					result.File.Path, result.File.StartLine, result.Source)
			}
			if len(response.Results) == 0 {
				fmt.Println("No results.")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-path>",
		Short: "Show indexing status for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			project, err := store.GetProject(cmd.Context(), path)
			if err == storage.ErrNotFound {
				fmt.Printf("%s: not indexed\n", path)
				return nil
			}
			if err != nil {
				return err
			}

			status, err := store.GetStatus(cmd.Context(), project.ID)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", project.RootPath)
			fmt.Printf("  Module:       %s (go %s)\n", project.ModuleName, project.GoVersion)
			fmt.Printf("  Last indexed: %s\n", project.LastIndexedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("  Files:        %d\n", status.FilesCount)
			fmt.Printf("  Symbols:      %d\n", status.SymbolsCount)
			fmt.Printf("  Chunks:       %d\n", status.ChunksCount)
			fmt.Printf("  Embeddings:   %d\n", status.EmbeddingsCount)
			fmt.Printf("  Call edges:   %d (%d unresolved)\n", status.CallEdgesCount, status.UnresolvedCount)
			fmt.Printf("  Index size:   %.2f MB\n", status.IndexSizeMB)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Symdex MCP Server\n")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("Build Mode: %s\n", storage.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
			fmt.Printf("Vector Extension: %v\n", storage.VectorExtensionAvailable)
		},
	}
}
