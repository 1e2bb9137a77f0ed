package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/davin/policyrag/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// fakeAdminStore extends fakeStore with collection lifecycle tracking.
type fakeAdminStore struct {
	fakeStore
	collections map[string]bool
	deleted     map[string]int64
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{
		collections: map[string]bool{},
		deleted:     map[string]int64{},
	}
}

func (f *fakeAdminStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return f.collections[name], nil
}

func (f *fakeAdminStore) CreateCollection(ctx context.Context, name string) error {
	f.collections[name] = true
	return nil
}

func (f *fakeAdminStore) DeleteDocuments(ctx context.Context, collection string, filter bson.M) (int64, error) {
	f.deleted[collection]++
	return 1, nil
}

// fakeDocIndexer records indexed content and can fail on demand.
type fakeDocIndexer struct {
	indexed     []indexedDoc
	setupCalls  int
	failContent string
}

type indexedDoc struct {
	content    string
	metadata   domain.Metadata
	collection string
}

func (f *fakeDocIndexer) IndexDocument(ctx context.Context, content string, metadata domain.Metadata, collection string) (string, error) {
	if f.failContent != "" && content == f.failContent {
		return "", errors.New("embedding failed")
	}
	f.indexed = append(f.indexed, indexedDoc{content: content, metadata: metadata, collection: collection})
	return "vec-1", nil
}

func (f *fakeDocIndexer) SetupIndex(ctx context.Context, collection, indexName string, dimensions int) error {
	f.setupCalls++
	return nil
}

// writeTestTree creates a small document tree:
//
//	root/
//	  top.txt
//	  hr/vacation.txt
//	  hr/empty.txt      (whitespace only)
//	  it/readme.md      (ignored extension)
func writeTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"top.txt":         "top level doc",
		"hr/vacation.txt": "vacation policy content",
		"hr/empty.txt":    "   \n\t",
		"it/readme.md":    "not a text document",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newTestIndexer(store *fakeAdminStore, retrieval *fakeDocIndexer) *FolderIndexer {
	return NewFolderIndexer(store, retrieval, nil, nil, &IndexerConfig{
		DocumentsCollection: "documents",
		VectorsCollection:   "vectors",
		IndexName:           "vector_index",
	})
}

func TestFolderIndexer_IndexFolder(t *testing.T) {
	root := writeTestTree(t)
	store := newFakeAdminStore()
	retrieval := &fakeDocIndexer{}
	indexer := newTestIndexer(store, retrieval)

	stats, err := indexer.IndexFolder(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two real .txt files, one whitespace-only skip; the .md is not counted
	if stats.TotalFiles != 3 {
		t.Errorf("expected 3 total files, got %d", stats.TotalFiles)
	}
	if stats.IndexedFiles != 2 {
		t.Errorf("expected 2 indexed files, got %d", stats.IndexedFiles)
	}
	if stats.SkippedFiles != 1 {
		t.Errorf("expected 1 skipped file, got %d", stats.SkippedFiles)
	}
	if stats.FailedFiles != 0 {
		t.Errorf("expected 0 failed files, got %d", stats.FailedFiles)
	}

	// Collections are bootstrapped and the index set up once
	if !store.collections["documents"] || !store.collections["vectors"] {
		t.Errorf("expected both collections created, got %v", store.collections)
	}
	if retrieval.setupCalls != 1 {
		t.Errorf("expected 1 index setup, got %d", retrieval.setupCalls)
	}

	// One document record per indexed file
	if len(store.inserted) != 2 {
		t.Fatalf("expected 2 document records, got %d", len(store.inserted))
	}
}

func TestFolderIndexer_DocumentRecords(t *testing.T) {
	root := writeTestTree(t)
	store := newFakeAdminStore()
	retrieval := &fakeDocIndexer{}
	indexer := newTestIndexer(store, retrieval)

	if _, err := indexer.IndexFolder(context.Background(), root, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var vacation *domain.Document
	for _, raw := range store.inserted {
		doc, ok := raw.(domain.Document)
		if !ok {
			t.Fatalf("unexpected record type %T", raw)
		}
		if doc.Name == "vacation.txt" {
			d := doc
			vacation = &d
		}
	}
	if vacation == nil {
		t.Fatal("vacation.txt record not stored")
	}

	if vacation.Folder != "hr" {
		t.Errorf("unexpected folder: %s", vacation.Folder)
	}
	if vacation.RelativePath != filepath.Join("hr", "vacation.txt") {
		t.Errorf("unexpected relative path: %s", vacation.RelativePath)
	}
	if vacation.Size != len("vacation policy content") {
		t.Errorf("unexpected size: %d", vacation.Size)
	}
	if vacation.Content != "vacation policy content" {
		t.Errorf("unexpected content: %s", vacation.Content)
	}
}

func TestFolderIndexer_VectorMetadata(t *testing.T) {
	root := writeTestTree(t)
	store := newFakeAdminStore()
	retrieval := &fakeDocIndexer{}
	indexer := newTestIndexer(store, retrieval)

	if _, err := indexer.IndexFolder(context.Background(), root, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var found bool
	for _, doc := range retrieval.indexed {
		if doc.content != "vacation policy content" {
			continue
		}
		found = true
		if doc.collection != "vectors" {
			t.Errorf("unexpected collection: %s", doc.collection)
		}
		if id, _ := doc.metadata["document_id"].(string); id == "" {
			t.Error("metadata missing document back-reference")
		}
		if doc.metadata["folder_name"] != "hr" {
			t.Errorf("unexpected folder_name: %v", doc.metadata["folder_name"])
		}
		if doc.metadata["document_name"] != "vacation.txt" {
			t.Errorf("unexpected document_name: %v", doc.metadata["document_name"])
		}
		if doc.metadata["content_length"] != len("vacation policy content") {
			t.Errorf("unexpected content_length: %v", doc.metadata["content_length"])
		}
	}
	if !found {
		t.Fatal("vacation.txt vector record not indexed")
	}

	// top-level files land in the "root" folder bucket
	for _, doc := range retrieval.indexed {
		if doc.content == "top level doc" && doc.metadata["folder_name"] != "root" {
			t.Errorf("expected folder_name root for top-level file, got %v", doc.metadata["folder_name"])
		}
	}
}

func TestFolderIndexer_PerFileFailureIsolation(t *testing.T) {
	root := writeTestTree(t)
	store := newFakeAdminStore()
	retrieval := &fakeDocIndexer{failContent: "vacation policy content"}
	indexer := newTestIndexer(store, retrieval)

	stats, err := indexer.IndexFolder(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("run-level error for a per-file failure: %v", err)
	}

	if stats.FailedFiles != 1 {
		t.Errorf("expected 1 failed file, got %d", stats.FailedFiles)
	}
	if stats.IndexedFiles != 1 {
		t.Errorf("expected other file still indexed, got %d", stats.IndexedFiles)
	}
}

func TestFolderIndexer_Clear(t *testing.T) {
	root := writeTestTree(t)
	store := newFakeAdminStore()
	store.collections["documents"] = true
	store.collections["vectors"] = true
	retrieval := &fakeDocIndexer{}
	indexer := newTestIndexer(store, retrieval)

	if _, err := indexer.IndexFolder(context.Background(), root, &IndexFolderOptions{Clear: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.deleted["documents"] != 1 || store.deleted["vectors"] != 1 {
		t.Errorf("expected both collections cleared, got %v", store.deleted)
	}
}

func TestFolderIndexer_MissingFolder(t *testing.T) {
	store := newFakeAdminStore()
	indexer := newTestIndexer(store, &fakeDocIndexer{})

	if _, err := indexer.IndexFolder(context.Background(), "/nonexistent/path", nil); err == nil {
		t.Fatal("expected error for missing folder")
	}
}

func TestFolderOf(t *testing.T) {
	tests := []struct {
		relPath string
		want    string
	}{
		{"top.txt", "root"},
		{filepath.Join("hr", "vacation.txt"), "hr"},
		{filepath.Join("a", "b", "deep.txt"), "b"},
	}
	for _, tc := range tests {
		if got := folderOf(tc.relPath); got != tc.want {
			t.Errorf("folderOf(%q) = %q, want %q", tc.relPath, got, tc.want)
		}
	}
}
