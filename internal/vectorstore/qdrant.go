package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"github.com/polyrag/polyrag/pkg/models"
)

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	URL        string // e.g. "http://localhost:6333" or "https://xyz.cloud.qdrant.io:6333"
	APIKey     string
	Collection string
	Dimensions int
}

// QdrantStore implements VectorStoreDriver backed by Qdrant over gRPC.
// Chunk content and metadata travel in the point payload, so search hits
// come back complete without a second lookup.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dims       uint64
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// The REST port (6333) is mapped to the gRPC port (6334).
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()
	port = 6334
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port in qdrant URL: %q", portStr)
		}
		if p != 6333 {
			port = p
		}
	}
	return host, port, useTLS, nil
}

// NewQdrantStore connects to Qdrant and ensures the collection exists.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", host, port, err)
	}

	s := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dims:       uint64(cfg.Dimensions),
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureCollection creates the collection and payload indexes if absent.
// CreateFieldIndex is idempotent on Qdrant, so indexes are re-asserted on
// every startup.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}

	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("create collection %q: %w", s.collection, err)
		}
		log.Info().Str("collection", s.collection).Uint64("dims", s.dims).Msg("qdrant collection created")
	}

	keywordType := qdrant.FieldType_FieldTypeKeyword
	for _, field := range []string{"language", "source", "file_type"} {
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      &keywordType,
		}); err != nil {
			return fmt.Errorf("ensure index on %q: %w", field, err)
		}
	}
	return nil
}

func (s *QdrantStore) Kind() string { return "qdrant" }

func (s *QdrantStore) Upsert(ctx context.Context, docs []models.VectorDoc) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := d.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		payload := map[string]any{
			"content":    d.Content,
			"created_at": createdAt.Format(time.RFC3339),
		}
		for k, v := range d.Metadata {
			payload[k] = v
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectorsDense(toFloat32(d.Vector)),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %d points: %w", len(docs), err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float64, topK int, filter map[string]string) ([]models.SearchResult, error) {
	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for fk, fv := range filter {
			must = append(must, qdrant.NewMatch(fk, fv))
		}
		qf = &qdrant.Filter{Must: must}
	}

	limit := uint64(topK)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(toFloat32(vector)),
		Filter:         qf,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]models.SearchResult, 0, len(scored))
	for _, sp := range scored {
		id := sp.Id.GetUuid()
		if id == "" {
			continue
		}

		doc := models.VectorDoc{ID: id, Metadata: map[string]string{}}
		for k, v := range sp.Payload {
			switch k {
			case "content":
				doc.Content = v.GetStringValue()
			case "created_at":
				if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
					doc.CreatedAt = t
				}
			default:
				doc.Metadata[k] = v.GetStringValue()
			}
		}
		results = append(results, models.SearchResult{Doc: doc, Score: float64(sp.Score)})
	}
	return results, nil
}

func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete %d points: %w", len(ids), err)
	}
	return nil
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(count), nil
}

func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := s.client.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("qdrant unhealthy: %w", err)
	}
	return nil
}

// Close shuts down the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
