package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davin/policyrag/internal/domain"
	"github.com/davin/policyrag/internal/logger"
	"github.com/davin/policyrag/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// StoreAdmin extends DocumentStore with the lifecycle operations the bulk
// indexer needs: collection bootstrap and bulk clearing.
type StoreAdmin interface {
	DocumentStore
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string) error
	DeleteDocuments(ctx context.Context, collection string, filter bson.M) (int64, error)
}

// DocumentIndexer is the slice of the retrieval engine the bulk indexer uses.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, content string, metadata domain.Metadata, collection string) (string, error)
	SetupIndex(ctx context.Context, collection, indexName string, dimensions int) error
}

// IndexerConfig holds configuration for the folder indexer.
type IndexerConfig struct {
	DocumentsCollection string
	VectorsCollection   string
	IndexName           string
}

// FolderIndexer walks a filesystem tree of text files and indexes each file:
// one immutable document record in the documents collection, one vector
// record (with back-references) in the vectors collection. A failing file is
// logged and skipped; it never aborts the run.
type FolderIndexer struct {
	store               StoreAdmin
	retrieval           DocumentIndexer
	jobs                *repository.IndexJobRepository
	logger              *logger.Logger
	documentsCollection string
	vectorsCollection   string
	indexName           string
}

// NewFolderIndexer creates a new folder indexer.
// Parameters:
//   - store: document store with lifecycle operations.
//   - retrieval: retrieval engine used for embedding and vector persistence.
//   - jobs: index-job ledger; nil disables job records.
//   - log: logger instance.
//   - cfg: indexer configuration.
// Returns:
//   - *FolderIndexer: initialized indexer.
func NewFolderIndexer(
	store StoreAdmin,
	retrieval DocumentIndexer,
	jobs *repository.IndexJobRepository,
	log *logger.Logger,
	cfg *IndexerConfig,
) *FolderIndexer {
	return &FolderIndexer{
		store:               store,
		retrieval:           retrieval,
		jobs:                jobs,
		logger:              log,
		documentsCollection: cfg.DocumentsCollection,
		vectorsCollection:   cfg.VectorsCollection,
		indexName:           cfg.IndexName,
	}
}

// log returns a logger from context if available, otherwise the default logger
func (x *FolderIndexer) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return x.logger
}

// IndexStats holds statistics for one indexing run.
type IndexStats struct {
	TotalFiles   int
	IndexedFiles int
	SkippedFiles int
	FailedFiles  int
	StartTime    time.Time
	EndTime      time.Time
}

// IndexFolderOptions holds options for an indexing run.
type IndexFolderOptions struct {
	// Clear deletes all existing documents and vectors before indexing.
	// Without it, re-indexing already-indexed content appends duplicate
	// vector records; there is no upsert.
	Clear bool
}

// IndexFolder indexes every .txt file under folderPath recursively.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - folderPath: root of the document tree.
//   - opts: run options; nil means defaults.
// Returns:
//   - *IndexStats: per-run counters.
//   - error: non-nil only for run-level failures (bad folder, bootstrap
//     errors); per-file failures are counted, not returned.
func (x *FolderIndexer) IndexFolder(ctx context.Context, folderPath string, opts *IndexFolderOptions) (*IndexStats, error) {
	if opts == nil {
		opts = &IndexFolderOptions{}
	}

	stats := &IndexStats{StartTime: time.Now()}

	info, err := os.Stat(folderPath)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("documents folder %q does not exist or is not a directory", folderPath)
	}

	job := x.startJob(ctx, folderPath, opts.Clear)
	if job != nil {
		ctx = logger.SetJobID(ctx, job.ID)
	}

	x.log(ctx).WithFields(logger.Fields{
		logger.FieldFolder: folderPath,
		"clear":            opts.Clear,
	}).Info("Starting index run")

	if err := x.bootstrap(ctx, opts.Clear); err != nil {
		x.finishJob(ctx, job, stats, err)
		return nil, err
	}

	files, err := collectTextFiles(folderPath)
	if err != nil {
		x.finishJob(ctx, job, stats, err)
		return nil, fmt.Errorf("failed to walk %q: %w", folderPath, err)
	}
	stats.TotalFiles = len(files)

	var firstErr error
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		if err := x.indexFile(ctx, folderPath, path); err != nil {
			if err == errSkipEmptyFile {
				stats.SkippedFiles++
				continue
			}
			stats.FailedFiles++
			if firstErr == nil {
				firstErr = err
			}
			x.log(ctx).WithField("file", path).WithError(err).Error("Failed to index file")
			continue
		}
		stats.IndexedFiles++
	}

	stats.EndTime = time.Now()
	x.finishJob(ctx, job, stats, nil)

	logger.With(logger.Fields{
		"total":   stats.TotalFiles,
		"indexed": stats.IndexedFiles,
		"skipped": stats.SkippedFiles,
		"failed":  stats.FailedFiles,
		logger.FieldDurationMs: stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	}).Info(ctx, "Index run completed")

	return stats, nil
}

// errSkipEmptyFile is a sentinel for files with no indexable content
var errSkipEmptyFile = fmt.Errorf("skipped: empty file")

// bootstrap clears (when requested) and ensures collections and the vector
// index exist before any file is indexed.
func (x *FolderIndexer) bootstrap(ctx context.Context, clear bool) error {
	if clear {
		for _, collection := range []string{x.documentsCollection, x.vectorsCollection} {
			exists, err := x.store.CollectionExists(ctx, collection)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}
			deleted, err := x.store.DeleteDocuments(ctx, collection, bson.M{})
			if err != nil {
				return err
			}
			logger.With(logger.Fields{logger.FieldCount: deleted}).
				Info(ctx, "Cleared collection: %s", collection)
		}
	}

	for _, collection := range []string{x.documentsCollection, x.vectorsCollection} {
		exists, err := x.store.CollectionExists(ctx, collection)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := x.store.CreateCollection(ctx, collection); err != nil {
			return err
		}
		logger.CtxInfo(ctx, "Created collection: %s", collection)
	}

	// Index creation is declarative; if the index already exists the backing
	// engine rejects the duplicate, which is fine on a re-run. New indexes
	// activate asynchronously and may take minutes to become queryable.
	if err := x.retrieval.SetupIndex(ctx, x.vectorsCollection, x.indexName, 0); err != nil {
		x.log(ctx).WithError(err).Warn("Vector index setup failed (may already exist)")
	}

	return nil
}

// indexFile reads one file and writes its document and vector records.
// A crash or failure between the two writes leaves an orphaned document
// record with no vector; that partial state is accepted and recovered by a
// manual clear-and-reindex, not automatically.
func (x *FolderIndexer) indexFile(ctx context.Context, root, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	content := strings.TrimSpace(string(raw))
	if content == "" {
		x.log(ctx).WithField("file", filepath.Base(path)).Warn("Skipping empty file")
		return errSkipEmptyFile
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		relPath = filepath.Base(path)
	}
	folderName := folderOf(relPath)

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	now := time.Now().UTC()
	document := domain.Document{
		Name:         filepath.Base(path),
		Folder:       folderName,
		RelativePath: relPath,
		AbsolutePath: absPath,
		Content:      content,
		Size:         len(content),
		CreatedAt:    now,
	}

	docID, err := x.store.InsertDocument(ctx, x.documentsCollection, document)
	if err != nil {
		return fmt.Errorf("failed to store document record: %w", err)
	}

	metadata := domain.Metadata{
		"document_id":    docID,
		"document_name":  document.Name,
		"folder_name":    folderName,
		"relative_path":  relPath,
		"content_length": len(content),
		"created_at":     now,
	}

	if _, err := x.retrieval.IndexDocument(ctx, content, metadata, x.vectorsCollection); err != nil {
		return fmt.Errorf("failed to index vector record (document %s is orphaned): %w", docID, err)
	}

	x.log(ctx).WithFields(logger.Fields{
		"file":           document.Name,
		logger.FieldSize: document.Size,
	}).Debug("Indexed file")

	return nil
}

func (x *FolderIndexer) startJob(ctx context.Context, folder string, cleared bool) *domain.IndexJob {
	if x.jobs == nil {
		return nil
	}

	now := time.Now()
	job := &domain.IndexJob{
		ID:        uuid.New().String(),
		Folder:    folder,
		Status:    domain.JobStatusRunning,
		Cleared:   cleared,
		StartedAt: &now,
	}
	if err := x.jobs.Create(ctx, job); err != nil {
		x.log(ctx).WithError(err).Warn("Failed to record index job")
		return nil
	}
	return job
}

func (x *FolderIndexer) finishJob(ctx context.Context, job *domain.IndexJob, stats *IndexStats, runErr error) {
	if x.jobs == nil || job == nil {
		return
	}

	now := time.Now()
	job.CompletedAt = &now
	job.TotalFiles = stats.TotalFiles
	job.IndexedFiles = stats.IndexedFiles
	job.SkippedFiles = stats.SkippedFiles
	job.FailedFiles = stats.FailedFiles
	if runErr != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorLog = runErr.Error()
	} else {
		job.Status = domain.JobStatusCompleted
	}

	if err := x.jobs.Update(ctx, job); err != nil {
		x.log(ctx).WithError(err).Warn("Failed to update index job")
	}
}

// collectTextFiles returns all .txt files under root, depth-first.
func collectTextFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".txt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// folderOf returns the name of the immediate parent folder within the tree,
// or "root" for files at the top level.
func folderOf(relPath string) string {
	dir := filepath.Dir(relPath)
	if dir == "." || dir == string(filepath.Separator) {
		return "root"
	}
	return filepath.Base(dir)
}
