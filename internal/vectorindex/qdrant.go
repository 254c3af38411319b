package vectorindex

import (
	"context"
	"fmt"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// QdrantIndex implements Index against a Qdrant cluster, giving each
// tenant its own collection rather than relying on a shared collection
// plus a metadata filter. A dedicated collection per tenant is the
// strongest namespace isolation Qdrant offers: there is no query path
// that can cross collections, even under an application bug.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	dims        int

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantIndex dials addr and returns a QdrantIndex that creates a
// per-tenant collection lazily, sized for dims-dimensional vectors.
func NewQdrantIndex(addr string, dims int) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorindex.NewQdrantIndex: dial %s: %w", addr, err)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		dims:        dims,
		ensured:     make(map[string]bool),
	}, nil
}

var _ Index = (*QdrantIndex)(nil)

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

func collectionName(tenantID string) string {
	return "tenant_" + tenantID
}

// ensureCollection creates tenantID's collection on first use. Cached
// in-process so steady-state upserts don't pay a List call every time.
func (q *QdrantIndex) ensureCollection(ctx context.Context, tenantID string) error {
	name := collectionName(tenantID)

	q.mu.Lock()
	ok := q.ensured[name]
	q.mu.Unlock()
	if ok {
		return nil
	}

	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vectorindex.ensureCollection: list: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			q.mu.Lock()
			q.ensured[name] = true
			q.mu.Unlock()
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorindex.ensureCollection: create %s: %w", name, err)
	}

	q.mu.Lock()
	q.ensured[name] = true
	q.mu.Unlock()
	return nil
}

// Upsert writes vectors into tenantID's collection, creating it first
// if this is the tenant's first write.
func (q *QdrantIndex) Upsert(ctx context.Context, tenantID string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, tenantID); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(vectors))
	for i, v := range vectors {
		payload := map[string]*pb.Value{
			"doc_id":    {Kind: &pb.Value_StringValue{StringValue: v.DocID}},
			"chunk_idx": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(v.ChunkIdx)}},
		}
		for k, val := range v.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: val}}
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: v.ID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: v.Values}},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collectionName(tenantID),
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorindex.Upsert: %d points: %w", len(vectors), err)
	}
	return nil
}

// Query runs k-NN similarity search in tenantID's collection.
func (q *QdrantIndex) Query(ctx context.Context, tenantID string, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: collectionName(tenantID),
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if len(filter) > 0 {
		must := make([]*pb.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, &pb.Condition{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key:   k,
						Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: v}},
					},
				},
			})
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		// A not-found collection means the tenant has never upserted
		// anything; treat that as zero results rather than an error.
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("vectorindex.Query: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{
			VectorID: r.GetId().GetUuid(),
			Score:    float64(r.GetScore()),
			Metadata: make(map[string]string),
		}
		for k, val := range r.GetPayload() {
			switch k {
			case "doc_id":
				sr.DocID = val.GetStringValue()
			case "chunk_idx":
				sr.ChunkIdx = int(val.GetIntegerValue())
			case "content":
				sr.ContentPreview = val.GetStringValue()
			case "title":
				sr.Title = val.GetStringValue()
			default:
				sr.Metadata[k] = val.GetStringValue()
			}
		}
		results[i] = sr
	}
	return results, nil
}

// DeleteVectors removes specific point IDs from tenantID's collection.
func (q *QdrantIndex) DeleteVectors(ctx context.Context, tenantID string, vectorIDs []string) error {
	if len(vectorIDs) == 0 {
		return nil
	}
	ids := make([]*pb.PointId, len(vectorIDs))
	for i, id := range vectorIDs {
		ids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collectionName(tenantID),
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorindex.DeleteVectors: %w", err)
	}
	return nil
}

// DeleteNamespace drops tenantID's entire collection.
func (q *QdrantIndex) DeleteNamespace(ctx context.Context, tenantID string) error {
	name := collectionName(tenantID)
	_, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil {
		return fmt.Errorf("vectorindex.DeleteNamespace: %w", err)
	}
	q.mu.Lock()
	delete(q.ensured, name)
	q.mu.Unlock()
	return nil
}
