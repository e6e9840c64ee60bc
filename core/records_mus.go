package core

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for every record stored as a Badger value. Field
// order is the wire format, so new fields are appended, never
// reordered. Times are stored as Unix microseconds.

var (
	IDMUS                   = idMUS{}
	VectorMUS               = vectorMUS{}
	EbookMUS                = ebookMUS{}
	EmbeddingRecordMUS      = embeddingRecordMUS{}
	RecommendationMUS       = recommendationMUS{}
	RecommendationResultMUS = recommendationResultMUS{}
	TagMUS                  = tagMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

type timeMUS struct{}

func (timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	return varint.Int64.Marshal(v.UnixMicro(), bs)
}

func (timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func (timeMUS) Size(v time.Time) (size int) {
	return varint.Int64.Size(v.UnixMicro())
}

// vectorMUS writes a varint length prefix followed by fixed four-byte
// elements, keeping large embedding vectors compact.
type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length < 0 {
		return nil, n, fmt.Errorf("negative vector length %d", length)
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]float32, length)
	for i := range v {
		var n1 int
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return
}

type idSliceMUS struct{}

func (idSliceMUS) Marshal(v []ID, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, id := range v {
		n += IDMUS.Marshal(id, bs[n:])
	}
	return
}

func (idSliceMUS) Unmarshal(bs []byte) (v []ID, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length < 0 {
		return nil, n, fmt.Errorf("negative slice length %d", length)
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]ID, length)
	for i := range v {
		var n1 int
		v[i], n1, err = IDMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (idSliceMUS) Size(v []ID) (size int) {
	size = varint.Int.Size(len(v))
	for _, id := range v {
		size += IDMUS.Size(id)
	}
	return
}

type ebookMUS struct{}

func (ebookMUS) Marshal(v Ebook, bs []byte) (n int) {
	n = ord.String.Marshal(v.ISBN, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Author, bs[n:])
	n += ord.String.Marshal(v.Tags, bs[n:])
	n += ord.String.Marshal(v.Description, bs[n:])
	n += ord.Bool.Marshal(v.HasEmbedding, bs[n:])
	n += timeMUS{}.Marshal(v.InsertedAt, bs[n:])
	n += timeMUS{}.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (ebookMUS) Unmarshal(bs []byte) (v Ebook, n int, err error) {
	var n1 int
	v.ISBN, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Author, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Tags, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Description, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.HasEmbedding, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	return
}

func (ebookMUS) Size(v Ebook) (size int) {
	size = ord.String.Size(v.ISBN)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Author)
	size += ord.String.Size(v.Tags)
	size += ord.String.Size(v.Description)
	size += ord.Bool.Size(v.HasEmbedding)
	size += timeMUS{}.Size(v.InsertedAt)
	size += timeMUS{}.Size(v.UpdatedAt)
	return
}

type embeddingRecordMUS struct{}

func (embeddingRecordMUS) Marshal(v EmbeddingRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.Key, bs)
	n += VectorMUS.Marshal(v.Vector, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Author, bs[n:])
	n += ord.String.Marshal(v.Tags, bs[n:])
	n += ord.String.Marshal(v.Description, bs[n:])
	n += ord.String.Marshal(v.PointID, bs[n:])
	n += ord.Bool.Marshal(v.SyncedToIndex, bs[n:])
	n += timeMUS{}.Marshal(v.InsertedAt, bs[n:])
	n += timeMUS{}.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (embeddingRecordMUS) Unmarshal(bs []byte) (v EmbeddingRecord, n int, err error) {
	var n1 int
	v.Key, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Vector, n1, err = VectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Author, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Tags, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Description, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.PointID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SyncedToIndex, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	return
}

func (embeddingRecordMUS) Size(v EmbeddingRecord) (size int) {
	size = ord.String.Size(v.Key)
	size += VectorMUS.Size(v.Vector)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Author)
	size += ord.String.Size(v.Tags)
	size += ord.String.Size(v.Description)
	size += ord.String.Size(v.PointID)
	size += ord.Bool.Size(v.SyncedToIndex)
	size += timeMUS{}.Size(v.InsertedAt)
	size += timeMUS{}.Size(v.UpdatedAt)
	return
}

type recommendationMUS struct{}

func (recommendationMUS) Marshal(v Recommendation, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += varint.Uint64.Marshal(v.UserID, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.TextHash, bs[n:])
	n += idSliceMUS{}.Marshal(v.TagIDs, bs[n:])
	n += varint.Int.Marshal(v.FoundBooksCount, bs[n:])
	n += timeMUS{}.Marshal(v.LastSearchAt, bs[n:])
	n += timeMUS{}.Marshal(v.InsertedAt, bs[n:])
	n += timeMUS{}.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (recommendationMUS) Unmarshal(bs []byte) (v Recommendation, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.UserID, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TextHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TagIDs, n1, err = idSliceMUS{}.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.FoundBooksCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastSearchAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	return
}

func (recommendationMUS) Size(v Recommendation) (size int) {
	size = IDMUS.Size(v.Id)
	size += varint.Uint64.Size(v.UserID)
	size += ord.String.Size(v.Text)
	size += ord.String.Size(v.TextHash)
	size += idSliceMUS{}.Size(v.TagIDs)
	size += varint.Int.Size(v.FoundBooksCount)
	size += timeMUS{}.Size(v.LastSearchAt)
	size += timeMUS{}.Size(v.InsertedAt)
	size += timeMUS{}.Size(v.UpdatedAt)
	return
}

type recommendationResultMUS struct{}

func (recommendationResultMUS) Marshal(v RecommendationResult, bs []byte) (n int) {
	n = IDMUS.Marshal(v.RecommendationID, bs)
	n += ord.String.Marshal(v.ISBN, bs[n:])
	n += raw.Float32.Marshal(v.Score, bs[n:])
	n += varint.Int.Marshal(v.Rank, bs[n:])
	return
}

func (recommendationResultMUS) Unmarshal(bs []byte) (v RecommendationResult, n int, err error) {
	var n1 int
	v.RecommendationID, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ISBN, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Score, n1, err = raw.Float32.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Rank, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	return
}

func (recommendationResultMUS) Size(v RecommendationResult) (size int) {
	size = IDMUS.Size(v.RecommendationID)
	size += ord.String.Size(v.ISBN)
	size += raw.Float32.Size(v.Score)
	size += varint.Int.Size(v.Rank)
	return
}

type tagMUS struct{}

func (tagMUS) Marshal(v Tag, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Slug, bs[n:])
	n += timeMUS{}.Marshal(v.InsertedAt, bs[n:])
	return
}

func (tagMUS) Unmarshal(bs []byte) (v Tag, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Slug, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = timeMUS{}.Unmarshal(bs[n:])
	n += n1
	return
}

func (tagMUS) Size(v Tag) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.Slug)
	size += timeMUS{}.Size(v.InsertedAt)
	return
}
