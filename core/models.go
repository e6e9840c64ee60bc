package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ISBNLength is the required length of a catalog key.
const ISBNLength = 13

// Ebook is a catalog record. The ISBN is its stable external key,
// unique and immutable once assigned. Ebooks are created by catalog
// ingestion and never deleted by this module.
type Ebook struct {
	ISBN         string
	Title        string
	Author       string
	Tags         string // comma-joined tag names, denormalized for index payload
	Description  string
	HasEmbedding bool
	InsertedAt   time.Time
	UpdatedAt    time.Time
}

// EmbeddingRecord holds a computed embedding together with a snapshot
// of the fields that become the vector index point payload.
//
// Key is either an Ebook ISBN (catalog embeddings) or a normalized-text
// hash (recommendation embeddings). PointID is the idempotency token
// used as the index point id; it is minted and persisted before the
// first upsert so retries never create duplicate points. SyncedToIndex
// is true only after a confirmed upsert with the stored PointID.
type EmbeddingRecord struct {
	Key           string
	Vector        []float32
	Title         string
	Author        string
	Tags          string
	Description   string
	PointID       string
	SyncedToIndex bool
	InsertedAt    time.Time
	UpdatedAt     time.Time
}

// Recommendation is a user's free-text book request. At most one
// Recommendation exists per (UserID, TextHash) pair; resubmitting
// equivalent text updates the existing row.
type Recommendation struct {
	Id              ID
	UserID          uint64
	Text            string // original text as submitted
	TextHash        string // SHA-256 hex of the normalized text
	TagIDs          []ID
	FoundBooksCount int
	LastSearchAt    time.Time
	InsertedAt      time.Time
	UpdatedAt       time.Time
}

// RecommendationResult links a Recommendation to one matched Ebook.
// Ranks are 1-based, strictly increasing with decreasing score, with
// ties broken by ascending ISBN. Results for a recommendation are
// always replaced as a whole, never merged.
type RecommendationResult struct {
	RecommendationID ID
	ISBN             string
	Score            float32
	Rank             int
}

// Tag is a label attachable to recommendations. Name is unique
// case-insensitively; Slug is the unique ascii form.
type Tag struct {
	Id         ID
	Name       string
	Slug       string
	InsertedAt time.Time
}

// RankedHit is one similarity-search result reconciled back to the catalog.
type RankedHit struct {
	Ebook *Ebook
	Score float32
}
