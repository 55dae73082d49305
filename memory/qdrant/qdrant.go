// Package qdrant implements core.MemoryStore on a Qdrant vector database for
// semantic precedent retrieval. An Embedder turns text into vectors; the
// store handles collection setup, upserts and filtered nearest-neighbor
// search.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/taskmesh/taskmesh/core"
)

// contentKey is the payload field holding the record text. All other payload
// fields are treated as metadata.
const contentKey = "content"

// Embedder converts text into a fixed-size vector. Implementations typically
// call an embedding model endpoint.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() uint64
}

// Store is a Qdrant-backed MemoryStore.
type Store struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	embedder    Embedder
	collection  string
}

// Options configures a Store.
type Options struct {
	// Collection is the Qdrant collection name. Defaults to "taskmesh_memory".
	Collection string
}

// NewStore dials the Qdrant gRPC endpoint and ensures the collection exists.
func NewStore(ctx context.Context, addr string, embedder Embedder, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Collection: "taskmesh_memory",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}

	s := &Store{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		embedder:    embedder,
		collection:  opts.Collection,
	}

	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	_, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err == nil {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     s.embedder.Dimension(),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

// Save implements core.MemoryStore.
func (s *Store) Save(ctx context.Context, record core.MemoryRecord) error {
	vector, err := s.embedder.Embed(ctx, record.Content)
	if err != nil {
		return fmt.Errorf("embed record: %w", err)
	}

	payload := map[string]*pb.Value{
		contentKey: {Kind: &pb.Value_StringValue{StringValue: record.Content}},
	}
	for k, v := range record.Metadata {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprintf("%v", v)}}
	}

	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Search implements core.MemoryStore. Filters become keyword match conditions
// on the payload; values are compared by their string form.
func (s *Store) Search(ctx context.Context, query string, filters map[string]any, limit int) ([]core.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if limit <= 0 {
		limit = 10
	}

	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if len(filters) > 0 {
		req.Filter = buildFilter(filters)
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collection, err)
	}

	results := make([]core.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		content := ""
		metadata := make(map[string]any)
		for k, v := range r.Payload {
			sv, ok := v.Kind.(*pb.Value_StringValue)
			if !ok {
				continue
			}
			if k == contentKey {
				content = sv.StringValue
				continue
			}
			metadata[k] = sv.StringValue
		}
		results = append(results, core.SearchResult{
			ID:       r.Id.GetUuid(),
			Content:  content,
			Score:    float64(r.Score),
			Metadata: metadata,
		})
	}
	return results, nil
}

// Close tears down the underlying gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func buildFilter(filters map[string]any) *pb.Filter {
	conditions := make([]*pb.Condition, 0, len(filters))
	for k, v := range filters {
		conditions = append(conditions, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: k,
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: fmt.Sprintf("%v", v)},
					},
				},
			},
		})
	}
	return &pb.Filter{Must: conditions}
}
