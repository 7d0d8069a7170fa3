package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Project operations

func (s *SQLiteStorage) createProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		INSERT INTO projects (root_path, module_name, go_version, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		project.RootPath, project.ModuleName, project.GoVersion,
		project.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, project *Project) error {
	return s.createProjectWithQuerier(ctx, s.querier(), project)
}

func (s *SQLiteStorage) getProjectWithQuerier(ctx context.Context, q querier, rootPath string) (*Project, error) {
	query := `
		SELECT id, root_path, module_name, go_version, total_files, total_chunks,
		       index_version, last_indexed_at, created_at, updated_at
		FROM projects
		WHERE root_path = ?
	`
	var project Project
	var lastIndexedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, rootPath).Scan(
		&project.ID, &project.RootPath, &project.ModuleName, &project.GoVersion,
		&project.TotalFiles, &project.TotalChunks, &project.IndexVersion,
		&lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

func (s *SQLiteStorage) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return s.getProjectWithQuerier(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) updateProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		UPDATE projects
		SET module_name = ?, go_version = ?, total_files = ?, total_chunks = ?,
		    last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		project.ModuleName, project.GoVersion, project.TotalFiles, project.TotalChunks,
		project.LastIndexedAt, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateProject(ctx context.Context, project *Project) error {
	return s.updateProjectWithQuerier(ctx, s.querier(), project)
}

// File operations

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (project_id, file_path, package_name, content_hash, mod_time, size_bytes, parse_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			package_name = excluded.package_name,
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			parse_error = excluded.parse_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.ProjectID, file.FilePath, file.PackageName, file.ContentHash[:],
		file.ModTime, file.SizeBytes, file.ParseError, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

func scanFile(scan func(dest ...interface{}) error) (*File, error) {
	var file File
	var hash []byte
	var parseError sql.NullString
	err := scan(
		&file.ID, &file.ProjectID, &file.FilePath, &file.PackageName,
		&hash, &file.ModTime, &file.SizeBytes, &parseError,
		&file.LastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	return &file, nil
}

const fileColumns = `id, project_id, file_path, package_name, content_hash, mod_time,
	       size_bytes, parse_error, last_indexed_at, created_at, updated_at`

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, projectID int64, filePath string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? AND file_path = ?`
	row := q.QueryRowContext(ctx, query, projectID, filePath)
	file, err := scanFile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *SQLiteStorage) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), projectID, filePath)
}

func (s *SQLiteStorage) getFileByIDWithQuerier(ctx context.Context, q querier, fileID int64) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`
	row := q.QueryRowContext(ctx, query, fileID)
	file, err := scanFile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *SQLiteStorage) GetFileByID(ctx context.Context, fileID int64) (*File, error) {
	return s.getFileByIDWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	// Call edges have no cascading foreign key; drop them with the file so
	// the graph does not accumulate rows for files removed from the project.
	if err := s.deleteCallsByFileWithQuerier(ctx, q, fileID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, projectID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? ORDER BY file_path`
	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), projectID)
}

// Symbol operations

const symbolColumns = `id, file_id, name, qualified_name, kind, package_name, language,
	       signature, doc_comment, scope, receiver,
	       start_line, start_col, end_line, end_col,
	       is_test, is_async, complexity, created_at`

func scanSymbol(scan func(dest ...interface{}) error) (*Symbol, error) {
	var symbol Symbol
	var qualified sql.NullString
	err := scan(
		&symbol.ID, &symbol.FileID, &symbol.Name, &qualified, &symbol.Kind,
		&symbol.PackageName, &symbol.Language,
		&symbol.Signature, &symbol.DocComment, &symbol.Scope, &symbol.Receiver,
		&symbol.StartLine, &symbol.StartCol, &symbol.EndLine, &symbol.EndCol,
		&symbol.IsTest, &symbol.IsAsync, &symbol.Complexity, &symbol.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	symbol.QualifiedName = qualified.String
	return &symbol, nil
}

func (s *SQLiteStorage) upsertSymbolWithQuerier(ctx context.Context, q querier, symbol *Symbol) error {
	// Atomic INSERT ... ON CONFLICT keyed on (file_id, name, start_line):
	// the same span replaces, never duplicates.
	query := `
		INSERT INTO symbols (
			file_id, name, qualified_name, kind, package_name, language,
			signature, doc_comment, scope, receiver,
			start_line, start_col, end_line, end_col,
			is_test, is_async, complexity, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, name, start_line)
		DO UPDATE SET
			qualified_name = excluded.qualified_name,
			kind = excluded.kind,
			package_name = excluded.package_name,
			language = excluded.language,
			signature = excluded.signature,
			doc_comment = excluded.doc_comment,
			scope = excluded.scope,
			receiver = excluded.receiver,
			start_col = excluded.start_col,
			end_line = excluded.end_line,
			end_col = excluded.end_col,
			is_test = excluded.is_test,
			is_async = excluded.is_async,
			complexity = excluded.complexity
		RETURNING id, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		symbol.FileID, symbol.Name, symbol.QualifiedName, symbol.Kind,
		symbol.PackageName, symbol.Language,
		symbol.Signature, symbol.DocComment, symbol.Scope, symbol.Receiver,
		symbol.StartLine, symbol.StartCol, symbol.EndLine, symbol.EndCol,
		symbol.IsTest, symbol.IsAsync, symbol.Complexity, now,
	).Scan(&symbol.ID, &symbol.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert symbol: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) UpsertSymbol(ctx context.Context, symbol *Symbol) error {
	return s.upsertSymbolWithQuerier(ctx, s.querier(), symbol)
}

func (s *SQLiteStorage) getSymbolWithQuerier(ctx context.Context, q querier, symbolID int64) (*Symbol, error) {
	query := `SELECT ` + symbolColumns + ` FROM symbols WHERE id = ?`
	row := q.QueryRowContext(ctx, query, symbolID)
	symbol, err := scanSymbol(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return symbol, nil
}

func (s *SQLiteStorage) GetSymbol(ctx context.Context, symbolID int64) (*Symbol, error) {
	return s.getSymbolWithQuerier(ctx, s.querier(), symbolID)
}

func (s *SQLiteStorage) listSymbolsByFileWithQuerier(ctx context.Context, q querier, fileID int64, kindFilter string) ([]*Symbol, error) {
	query := `SELECT ` + symbolColumns + ` FROM symbols WHERE file_id = ?`
	args := []interface{}{fileID}
	if kindFilter != "" {
		query += ` AND kind = ?`
		args = append(args, kindFilter)
	}
	query += ` ORDER BY start_line`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectSymbols(rows)
}

func (s *SQLiteStorage) ListSymbolsByFile(ctx context.Context, fileID int64, kindFilter string) ([]*Symbol, error) {
	return s.listSymbolsByFileWithQuerier(ctx, s.querier(), fileID, kindFilter)
}

func collectSymbols(rows *sql.Rows) ([]*Symbol, error) {
	symbols := make([]*Symbol, 0)
	for rows.Next() {
		symbol, err := scanSymbol(rows.Scan)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStorage) DeleteSymbolsByFile(ctx context.Context, fileID int64) error {
	return s.deleteSymbolsByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteSymbolsByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	query := `DELETE FROM symbols WHERE file_id = ?`
	_, err := q.ExecContext(ctx, query, fileID)
	return err
}

// findSymbolsByNameWithQuerier returns symbols matching the exact name,
// project-wide. Used by the resolution pass and caller/callee queries.
func (s *SQLiteStorage) findSymbolsByNameWithQuerier(ctx context.Context, q querier, projectID int64, name string) ([]*Symbol, error) {
	query := `
		SELECT ` + prefixedSymbolColumns("s") + `
		FROM symbols s
		JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ? AND (s.name = ? OR s.qualified_name = ?)
		ORDER BY f.file_path, s.start_line
	`
	rows, err := q.QueryContext(ctx, query, projectID, name, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectSymbols(rows)
}

func (s *SQLiteStorage) FindSymbolsByName(ctx context.Context, projectID int64, name string) ([]*Symbol, error) {
	return s.findSymbolsByNameWithQuerier(ctx, s.querier(), projectID, name)
}

// searchSymbolsLikeWithQuerier matches symbol names by containment,
// ordered so exact matches rank before prefix matches before the rest.
func (s *SQLiteStorage) searchSymbolsLikeWithQuerier(ctx context.Context, q querier, projectID int64, pattern string, limit int) ([]*Symbol, error) {
	query := `
		SELECT ` + prefixedSymbolColumns("s") + `
		FROM symbols s
		JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ? AND (s.name LIKE ? ESCAPE '\' OR s.qualified_name LIKE ? ESCAPE '\')
		ORDER BY
			CASE
				WHEN s.name = ? THEN 0
				WHEN s.name LIKE ? ESCAPE '\' THEN 1
				ELSE 2
			END,
			s.name
		LIMIT ?
	`
	contains := "%" + escapeLike(pattern) + "%"
	prefix := escapeLike(pattern) + "%"
	rows, err := q.QueryContext(ctx, query, projectID, contains, contains, pattern, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectSymbols(rows)
}

func (s *SQLiteStorage) SearchSymbolsLike(ctx context.Context, projectID int64, pattern string, limit int) ([]*Symbol, error) {
	return s.searchSymbolsLikeWithQuerier(ctx, s.querier(), projectID, pattern, limit)
}

// searchSymbolsMatchWithQuerier runs a raw FTS5 MATCH expression over the
// symbols index. In FTS5, rank is a built-in BM25 relevance column; lower
// values indicate better matches.
func (s *SQLiteStorage) searchSymbolsMatchWithQuerier(ctx context.Context, q querier, projectID int64, matchExpr string, limit int) ([]*Symbol, error) {
	sqlQuery := `
		SELECT ` + prefixedSymbolColumns("s") + `
		FROM symbols s
		JOIN symbols_fts fts ON s.id = fts.rowid
		JOIN files f ON s.file_id = f.id
		WHERE symbols_fts MATCH ? AND f.project_id = ?
		ORDER BY rank
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, matchExpr, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectSymbols(rows)
}

func (s *SQLiteStorage) SearchSymbolsMatch(ctx context.Context, projectID int64, matchExpr string, limit int) ([]*Symbol, error) {
	return s.searchSymbolsMatchWithQuerier(ctx, s.querier(), projectID, matchExpr, limit)
}

func (s *SQLiteStorage) symbolNameExistsWithQuerier(ctx context.Context, q querier, projectID int64, name string) (bool, error) {
	query := `
		SELECT 1 FROM symbols s
		JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ? AND (s.name = ? OR s.qualified_name = ?)
		LIMIT 1
	`
	var one int
	err := q.QueryRowContext(ctx, query, projectID, name, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStorage) SymbolNameExists(ctx context.Context, projectID int64, name string) (bool, error) {
	return s.symbolNameExistsWithQuerier(ctx, s.querier(), projectID, name)
}

// Chunk operations

func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	var symbolID interface{}
	if chunk.SymbolID != nil {
		symbolID = *chunk.SymbolID
	}

	query := `
		INSERT INTO chunks (
			file_id, symbol_id, content, content_hash, token_count,
			start_line, end_line, context_before, context_after, chunk_type,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, start_line, end_line)
		DO UPDATE SET
			symbol_id = excluded.symbol_id,
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			context_before = excluded.context_before,
			context_after = excluded.context_after,
			chunk_type = excluded.chunk_type,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		chunk.FileID, symbolID, chunk.Content, chunk.ContentHash[:],
		chunk.TokenCount, chunk.StartLine, chunk.EndLine,
		chunk.ContextBefore, chunk.ContextAfter, chunk.ChunkType,
		now, now,
	).Scan(&chunk.ID, &chunk.CreatedAt, &chunk.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.querier(), chunk)
}

const chunkColumns = `id, file_id, symbol_id, content, content_hash, token_count,
	       start_line, end_line, context_before, context_after, chunk_type,
	       created_at, updated_at`

func scanChunk(scan func(dest ...interface{}) error) (*Chunk, error) {
	var chunk Chunk
	var hash []byte
	var symbolID sql.NullInt64

	err := scan(
		&chunk.ID, &chunk.FileID, &symbolID, &chunk.Content, &hash, &chunk.TokenCount,
		&chunk.StartLine, &chunk.EndLine, &chunk.ContextBefore, &chunk.ContextAfter,
		&chunk.ChunkType, &chunk.CreatedAt, &chunk.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	copy(chunk.ContentHash[:], hash)
	if symbolID.Valid {
		id := symbolID.Int64
		chunk.SymbolID = &id
	}
	return &chunk, nil
}

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, chunkID int64) (*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = ?`
	row := q.QueryRowContext(ctx, query, chunkID)
	chunk, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), chunkID)
}

func (s *SQLiteStorage) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE file_id = ? ORDER BY start_line`
	rows, err := s.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) deleteChunksByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	query := `DELETE FROM chunks WHERE file_id = ?`
	_, err := q.ExecContext(ctx, query, fileID)
	return err
}

func (s *SQLiteStorage) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return s.deleteChunksByFileWithQuerier(ctx, s.querier(), fileID)
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	if embedding.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil {
			embedding.ID = id
		}
	}

	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding Embedding
	err := s.db.QueryRowContext(ctx, query, chunkID).Scan(
		&embedding.ID, &embedding.ChunkID, &embedding.Vector,
		&embedding.Dimension, &embedding.Provider, &embedding.Model,
		&embedding.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

func (s *SQLiteStorage) deleteEmbeddingWithQuerier(ctx context.Context, q querier, chunkID int64) error {
	query := `DELETE FROM embeddings WHERE chunk_id = ?`
	_, err := q.ExecContext(ctx, query, chunkID)
	return err
}

func (s *SQLiteStorage) DeleteEmbedding(ctx context.Context, chunkID int64) error {
	return s.deleteEmbeddingWithQuerier(ctx, s.querier(), chunkID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, projectID int64, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.db, projectID, queryVector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, projectID int64, matchExpr string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.db, projectID, matchExpr, limit, filters)
}

// Import operations

func (s *SQLiteStorage) upsertImportWithQuerier(ctx context.Context, q querier, imp *Import) error {
	query := `
		INSERT INTO imports (file_id, import_path, alias, is_external, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, imp.FileID, imp.ImportPath, imp.Alias, imp.IsExternal, now)
	if err != nil {
		return fmt.Errorf("failed to upsert import: %w", err)
	}

	if imp.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil {
			imp.ID = id
		}
	}
	imp.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertImport(ctx context.Context, imp *Import) error {
	return s.upsertImportWithQuerier(ctx, s.querier(), imp)
}

func (s *SQLiteStorage) ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error) {
	query := `
		SELECT id, file_id, import_path, alias, is_external, created_at
		FROM imports
		WHERE file_id = ?
		ORDER BY import_path
	`
	rows, err := s.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	imports := make([]*Import, 0)
	for rows.Next() {
		var imp Import
		err := rows.Scan(&imp.ID, &imp.FileID, &imp.ImportPath, &imp.Alias, &imp.IsExternal, &imp.CreatedAt)
		if err != nil {
			return nil, err
		}
		imports = append(imports, &imp)
	}
	return imports, rows.Err()
}

func (s *SQLiteStorage) DeleteImportsByFile(ctx context.Context, fileID int64) error {
	return s.deleteImportsByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteImportsByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	query := `DELETE FROM imports WHERE file_id = ?`
	_, err := q.ExecContext(ctx, query, fileID)
	return err
}

// Module operations

func (s *SQLiteStorage) upsertModuleWithQuerier(ctx context.Context, q querier, module *Module) error {
	query := `
		INSERT INTO modules (project_id, path, name, purpose, exports, symbol_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, path) DO UPDATE SET
			name = excluded.name,
			purpose = excluded.purpose,
			exports = excluded.exports,
			symbol_count = excluded.symbol_count,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		module.ProjectID, module.Path, module.Name, module.Purpose,
		module.Exports, module.SymbolCount, now).Scan(&module.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert module: %w", err)
	}
	module.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertModule(ctx context.Context, module *Module) error {
	return s.upsertModuleWithQuerier(ctx, s.querier(), module)
}

func (s *SQLiteStorage) listModulesWithQuerier(ctx context.Context, q querier, projectID int64) ([]*Module, error) {
	query := `
		SELECT id, project_id, path, name, purpose, exports, symbol_count, updated_at
		FROM modules
		WHERE project_id = ?
		ORDER BY path
	`
	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	modules := make([]*Module, 0)
	for rows.Next() {
		var m Module
		var purpose, exports sql.NullString
		err := rows.Scan(&m.ID, &m.ProjectID, &m.Path, &m.Name, &purpose, &exports, &m.SymbolCount, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		m.Purpose = purpose.String
		m.Exports = exports.String
		modules = append(modules, &m)
	}
	return modules, rows.Err()
}

func (s *SQLiteStorage) ListModules(ctx context.Context, projectID int64) ([]*Module, error) {
	return s.listModulesWithQuerier(ctx, s.querier(), projectID)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	project, err := s.getProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	status := &ProjectStatus{
		Project:       project,
		LastIndexedAt: project.LastIndexedAt,
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM files WHERE project_id = ?", &status.FilesCount},
		{`SELECT COUNT(*) FROM symbols s JOIN files f ON s.file_id = f.id WHERE f.project_id = ?`, &status.SymbolsCount},
		{`SELECT COUNT(*) FROM chunks c JOIN files f ON c.file_id = f.id WHERE f.project_id = ?`, &status.ChunksCount},
		{`SELECT COUNT(*) FROM embeddings e JOIN chunks c ON e.chunk_id = c.id JOIN files f ON c.file_id = f.id WHERE f.project_id = ?`, &status.EmbeddingsCount},
		{`SELECT COUNT(*) FROM call_edges ce JOIN symbols s ON ce.caller_id = s.id JOIN files f ON s.file_id = f.id WHERE f.project_id = ?`, &status.CallEdgesCount},
		{`SELECT COUNT(*) FROM unresolved_calls uc JOIN symbols s ON uc.caller_id = s.id JOIN files f ON s.file_id = f.id WHERE f.project_id = ?`, &status.UnresolvedCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, projectID).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     true, // FTS indexes are created with migrations
	}

	return status, nil
}

// getProjectByID retrieves a project by ID
func (s *SQLiteStorage) getProjectByID(ctx context.Context, projectID int64) (*Project, error) {
	query := `
		SELECT id, root_path, module_name, go_version, total_files, total_chunks,
		       index_version, last_indexed_at, created_at, updated_at
		FROM projects
		WHERE id = ?
	`
	var project Project
	var lastIndexedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&project.ID, &project.RootPath, &project.ModuleName, &project.GoVersion,
		&project.TotalFiles, &project.TotalChunks, &project.IndexVersion,
		&lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

// Helpers

// prefixedSymbolColumns qualifies the symbol column list with a table alias
func prefixedSymbolColumns(alias string) string {
	return alias + `.id, ` + alias + `.file_id, ` + alias + `.name, ` + alias + `.qualified_name, ` +
		alias + `.kind, ` + alias + `.package_name, ` + alias + `.language, ` +
		alias + `.signature, ` + alias + `.doc_comment, ` + alias + `.scope, ` + alias + `.receiver, ` +
		alias + `.start_line, ` + alias + `.start_col, ` + alias + `.end_line, ` + alias + `.end_col, ` +
		alias + `.is_test, ` + alias + `.is_async, ` + alias + `.complexity, ` + alias + `.created_at`
}

// escapeLike escapes LIKE wildcards in user input
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Transaction implementations

func (t *sqliteTx) CreateProject(ctx context.Context, project *Project) error {
	return t.storage.createProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return t.storage.getProjectWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) UpdateProject(ctx context.Context, project *Project) error {
	return t.storage.updateProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), projectID, filePath)
}

func (t *sqliteTx) GetFileByID(ctx context.Context, fileID int64) (*File, error) {
	return t.storage.getFileByIDWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) UpsertSymbol(ctx context.Context, symbol *Symbol) error {
	return t.storage.upsertSymbolWithQuerier(ctx, t.querier(), symbol)
}

func (t *sqliteTx) GetSymbol(ctx context.Context, symbolID int64) (*Symbol, error) {
	return t.storage.getSymbolWithQuerier(ctx, t.querier(), symbolID)
}

func (t *sqliteTx) ListSymbolsByFile(ctx context.Context, fileID int64, kindFilter string) ([]*Symbol, error) {
	return t.storage.listSymbolsByFileWithQuerier(ctx, t.querier(), fileID, kindFilter)
}

func (t *sqliteTx) DeleteSymbolsByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteSymbolsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) FindSymbolsByName(ctx context.Context, projectID int64, name string) ([]*Symbol, error) {
	return t.storage.findSymbolsByNameWithQuerier(ctx, t.querier(), projectID, name)
}

func (t *sqliteTx) SearchSymbolsLike(ctx context.Context, projectID int64, pattern string, limit int) ([]*Symbol, error) {
	return t.storage.searchSymbolsLikeWithQuerier(ctx, t.querier(), projectID, pattern, limit)
}

func (t *sqliteTx) SearchSymbolsMatch(ctx context.Context, projectID int64, matchExpr string, limit int) ([]*Symbol, error) {
	return t.storage.searchSymbolsMatchWithQuerier(ctx, t.querier(), projectID, matchExpr, limit)
}

func (t *sqliteTx) SymbolNameExists(ctx context.Context, projectID int64, name string) (bool, error) {
	return t.storage.symbolNameExistsWithQuerier(ctx, t.querier(), projectID, name)
}

func (t *sqliteTx) UpsertCallEdge(ctx context.Context, edge *CallEdge) error {
	return t.storage.upsertCallEdgeWithQuerier(ctx, t.querier(), edge)
}

func (t *sqliteTx) InsertUnresolvedCall(ctx context.Context, call *UnresolvedCall) error {
	return t.storage.insertUnresolvedCallWithQuerier(ctx, t.querier(), call)
}

func (t *sqliteTx) ListUnresolvedCalls(ctx context.Context, projectID int64, afterID int64, limit int) ([]*UnresolvedCall, error) {
	return t.storage.listUnresolvedCallsWithQuerier(ctx, t.querier(), projectID, afterID, limit)
}

func (t *sqliteTx) ListUnresolvedByCaller(ctx context.Context, callerID int64) ([]*UnresolvedCall, error) {
	return t.storage.listUnresolvedByCallerWithQuerier(ctx, t.querier(), callerID)
}

func (t *sqliteTx) DeleteUnresolvedCalls(ctx context.Context, ids []int64) (int, error) {
	return t.storage.deleteUnresolvedCallsWithQuerier(ctx, t.querier(), ids)
}

func (t *sqliteTx) DeleteCallsByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteCallsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) GetCallers(ctx context.Context, projectID int64, calleeName string, limit int) ([]*CallSite, error) {
	return t.storage.getCallersWithQuerier(ctx, t.querier(), projectID, calleeName, limit)
}

func (t *sqliteTx) GetCallees(ctx context.Context, projectID int64, callerName string, limit int) ([]*CallSite, error) {
	return t.storage.getCalleesWithQuerier(ctx, t.querier(), projectID, callerName, limit)
}

func (t *sqliteTx) ListCallEdgesByCaller(ctx context.Context, callerID int64) ([]*CallEdge, error) {
	return t.storage.listCallEdgesWithQuerier(ctx, t.querier(), "caller_id", callerID)
}

func (t *sqliteTx) ListCallEdgesByCallee(ctx context.Context, calleeID int64) ([]*CallEdge, error) {
	return t.storage.listCallEdgesWithQuerier(ctx, t.querier(), "callee_id", calleeID)
}

func (t *sqliteTx) PruneOrphanCallEdges(ctx context.Context) (int64, error) {
	return t.storage.pruneOrphanCallEdgesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) CallGraphStats(ctx context.Context, projectID int64) (*GraphStats, error) {
	return t.storage.callGraphStatsWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) EntryPoints(ctx context.Context, projectID int64, limit int) ([]*Symbol, error) {
	return t.storage.entryPointsWithQuerier(ctx, t.querier(), projectID, limit)
}

func (t *sqliteTx) LeafFunctions(ctx context.Context, projectID int64, limit int) ([]*Symbol, error) {
	return t.storage.leafFunctionsWithQuerier(ctx, t.querier(), projectID, limit)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) ListChunksByFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	return t.storage.ListChunksByFile(ctx, fileID)
}

func (t *sqliteTx) DeleteChunksByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteChunksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	return t.storage.GetEmbedding(ctx, chunkID)
}

func (t *sqliteTx) DeleteEmbedding(ctx context.Context, chunkID int64) error {
	return t.storage.deleteEmbeddingWithQuerier(ctx, t.querier(), chunkID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, projectID int64, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return t.storage.SearchVector(ctx, projectID, vector, limit, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, projectID int64, matchExpr string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return t.storage.SearchText(ctx, projectID, matchExpr, limit, filters)
}

func (t *sqliteTx) UpsertImport(ctx context.Context, imp *Import) error {
	return t.storage.upsertImportWithQuerier(ctx, t.querier(), imp)
}

func (t *sqliteTx) ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error) {
	return t.storage.ListImportsByFile(ctx, fileID)
}

func (t *sqliteTx) DeleteImportsByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteImportsByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) UpsertModule(ctx context.Context, module *Module) error {
	return t.storage.upsertModuleWithQuerier(ctx, t.querier(), module)
}

func (t *sqliteTx) ListModules(ctx context.Context, projectID int64) ([]*Module, error) {
	return t.storage.listModulesWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return t.storage.GetStatus(ctx, projectID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
