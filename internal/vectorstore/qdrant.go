package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
)

// copyBatchSize bounds how many points one scroll request moves during a
// namespace copy
const copyBatchSize = 256

// QdrantStore implements VectorStore using Qdrant. Each namespace maps to one
// Qdrant collection.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant vector store client.
// addr should be in format "host:port" (e.g., "localhost:6334").
func NewQdrantStore(ctx context.Context, addr string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// If no port specified, assume default
		host = addr
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant address: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func qdrantDistance(metric similarity.Metric) qdrant.Distance {
	switch metric {
	case similarity.Euclidean:
		return qdrant.Distance_Euclid
	case similarity.Manhattan:
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

// CreateNamespace creates an empty namespace
func (s *QdrantStore) CreateNamespace(ctx context.Context, name string, dimension int, metric similarity.Metric) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrantDistance(metric),
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace: %w", err)
	}
	return nil
}

// DeleteNamespace removes a namespace and its points
func (s *QdrantStore) DeleteNamespace(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}
	return nil
}

// NamespaceExists reports whether a namespace exists
func (s *QdrantStore) NamespaceExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check namespace existence: %w", err)
	}
	return exists, nil
}

// CopyNamespace scrolls every point out of the source namespace and upserts
// it into the target. The target namespace must already exist with matching
// vector parameters.
func (s *QdrantStore) CopyNamespace(ctx context.Context, from, to string) error {
	var offset *qdrant.PointId
	for {
		points, nextOffset, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: from,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(copyBatchSize)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return fmt.Errorf("failed to scroll namespace %q: %w", from, err)
		}
		if len(points) == 0 {
			break
		}

		upserts := make([]*qdrant.PointStruct, 0, len(points))
		for _, point := range points {
			var vector []float32
			if vectors := point.GetVectors(); vectors != nil {
				if v := vectors.GetVector(); v != nil {
					vector = v.GetData()
				}
			}
			if vector == nil {
				continue
			}
			upserts = append(upserts, &qdrant.PointStruct{
				Id:      point.Id,
				Vectors: qdrant.NewVectors(vector...),
				Payload: point.Payload,
			})
		}

		if len(upserts) > 0 {
			if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: to,
				Points:         upserts,
			}); err != nil {
				return fmt.Errorf("failed to upsert into namespace %q: %w", to, err)
			}
		}

		if nextOffset == nil || len(points) < copyBatchSize {
			break
		}
		offset = nextOffset
	}
	return nil
}

// Count returns the number of points in a namespace
func (s *QdrantStore) Count(ctx context.Context, name string) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}

// Upsert inserts or replaces points by id
func (s *QdrantStore) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	upserts := make([]*qdrant.PointStruct, len(points))
	for i, point := range points {
		payload := map[string]*qdrant.Value{
			"content": qdrant.NewValueString(point.Content),
		}
		if point.ExternalID != "" {
			payload["external_id"] = qdrant.NewValueString(point.ExternalID)
		}
		upserts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: payload,
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         upserts,
	}); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// DeletePoints removes points by id
func (s *QdrantStore) DeletePoints(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: pointIDs,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Search returns up to k nearest neighbors ordered by descending score
func (s *QdrantStore) Search(ctx context.Context, name string, vector []float32, k int) ([]SearchResult, error) {
	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0, len(response))
	for _, point := range response {
		result := SearchResult{
			ID:    point.Id.GetUuid(),
			Score: point.Score,
		}
		if payload := point.Payload; payload != nil {
			if content, ok := payload["content"]; ok {
				result.Content = content.GetStringValue()
			}
			if externalID, ok := payload["external_id"]; ok {
				result.ExternalID = externalID.GetStringValue()
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// Ensure QdrantStore implements VectorStore
var _ VectorStore = (*QdrantStore)(nil)
