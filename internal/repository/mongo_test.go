package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/davin/policyrag/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIDToString(t *testing.T) {
	objectID := primitive.NewObjectID()

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"object id", objectID, objectID.Hex()},
		{"string", "custom-id", "custom-id"},
		{"int", 7, "7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := idToString(tc.in); got != tc.want {
				t.Errorf("idToString(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMongoStore_NotConnected(t *testing.T) {
	store := NewMongoStore(&MongoConnectionConfig{
		URI:      "mongodb://localhost:27017",
		Database: "test",
	})
	ctx := context.Background()

	if _, err := store.InsertDocument(ctx, "documents", bson.M{"a": 1}); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("InsertDocument: expected ErrNotConnected, got %v", err)
	}
	if _, err := store.InsertDocuments(ctx, "documents", []interface{}{bson.M{"a": 1}}); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("InsertDocuments: expected ErrNotConnected, got %v", err)
	}
	if _, err := store.FindDocuments(ctx, "documents", nil, 10); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("FindDocuments: expected ErrNotConnected, got %v", err)
	}
	if _, err := store.DeleteDocuments(ctx, "documents", nil); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("DeleteDocuments: expected ErrNotConnected, got %v", err)
	}
	if _, err := store.ListCollections(ctx); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("ListCollections: expected ErrNotConnected, got %v", err)
	}
	if err := store.CreateCollection(ctx, "documents"); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("CreateCollection: expected ErrNotConnected, got %v", err)
	}
}

func TestMongoStore_DisconnectIdempotent(t *testing.T) {
	store := NewMongoStore(&MongoConnectionConfig{
		URI:      "mongodb://localhost:27017",
		Database: "test",
	})

	// Disconnect before any Connect is a no-op
	if err := store.Disconnect(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := store.Disconnect(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMongoStore_DefaultTimeout(t *testing.T) {
	store := NewMongoStore(&MongoConnectionConfig{
		URI:      "mongodb://localhost:27017",
		Database: "test",
	})
	if store.connectTimeout != 10*time.Second {
		t.Errorf("unexpected default timeout: %v", store.connectTimeout)
	}

	store = NewMongoStore(&MongoConnectionConfig{
		URI:            "mongodb://localhost:27017",
		Database:       "test",
		ConnectTimeout: time.Minute,
	})
	if store.connectTimeout != time.Minute {
		t.Errorf("unexpected timeout: %v", store.connectTimeout)
	}
}
