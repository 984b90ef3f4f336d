package vectorstore

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("contentfactory.vectorstore.qdrant")

// Payload keys reserved by QdrantStore. Metadata keys share the payload namespace.
const (
	payloadID         = "_id"
	payloadText       = "_text"
	payloadInsertedAt = "_inserted_at"
)

// pointNamespace derives stable Qdrant point UUIDs from record ids, so an
// upsert of an existing id overwrites the same point.
var pointNamespace = uuid.MustParse("6f1c2f7e-5a3b-4f7e-9d8c-2b1a0e4c7d51")

// scrollPageSize bounds a single Scroll call.
const scrollPageSize = 256

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost"
	Host string

	// Port is the gRPC port (6334), not the REST port (6333).
	Port int

	// APIKey is sent on every call when set.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Dimension is the embedding length for every collection.
	Dimension int

	// MaxRetries is the retry budget for transient gRPC failures. Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff, doubled per retry. Default: 500ms
	RetryBackoff time.Duration

	// MaxMessageSize caps gRPC messages. Default: 16MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 16 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store over Qdrant's native gRPC client.
// Collections are created on first write with cosine distance.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
	clock  insertClock

	// collections caches names known to exist.
	collections sync.Map
}

// NewQdrantStore connects to Qdrant and performs a health check.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext, TLS disabled", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, config: config, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Int("dimension", config.Dimension),
	)
	return store, nil
}

// Dimension returns the configured embedding length.
func (s *QdrantStore) Dimension() int {
	return s.config.Dimension
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries transient failures with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}
		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%w: %s failed after %d retries: %v", ErrConnectionFailed, operationName, s.config.MaxRetries, err)
		}
		s.logger.Debug("retrying qdrant operation",
			zap.String("operation", operationName),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// collectionExists checks the cache, then Qdrant.
func (s *QdrantStore) collectionExists(ctx context.Context, name string) (bool, error) {
	if _, ok := s.collections.Load(name); ok {
		return true, nil
	}
	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	if exists {
		s.collections.Store(name, true)
	}
	return exists, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	exists, err := s.collectionExists(ctx, name)
	if err != nil || exists {
		return err
	}
	err = s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.config.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		// Lost a creation race with another writer.
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.AlreadyExists {
			s.collections.Store(name, true)
			return nil
		}
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	s.collections.Store(name, true)
	s.logger.Info("created qdrant collection", zap.String("collection", name))
	return nil
}

func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

func stringValue(v string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func toQdrantFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conditions = append(conditions, keywordCondition(k, v))
	}
	return &qdrant.Filter{Must: conditions}
}

// Upsert writes records as points keyed by a UUID derived from the record id.
func (s *QdrantStore) Upsert(ctx context.Context, collectionName string, records ...Record) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("record_count", len(records)),
	)

	if len(records) == 0 {
		return ErrEmptyRecords
	}
	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i := range records {
		r := &records[i]
		if err := r.validate(s.config.Dimension); err != nil {
			span.RecordError(err)
			return err
		}
		payload := make(map[string]*qdrant.Value, len(r.Metadata)+3)
		for k, v := range r.Metadata {
			payload[k] = stringValue(v)
		}
		payload[payloadID] = stringValue(r.ID)
		payload[payloadText] = stringValue(r.Text)
		payload[payloadInsertedAt] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: s.clock.next().UnixNano()}}

		points[i] = &qdrant.PointStruct{
			Id:      pointID(r.ID),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: payload,
		}
	}

	if err := s.ensureCollection(ctx, collectionName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting into %s: %w", collectionName, err)
	}

	recordsWritten.WithLabelValues(collectionName).Add(float64(len(points)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query runs a nearest-neighbour search.
func (s *QdrantStore) Query(ctx context.Context, collectionName string, vector []float32, k int, filter Filter) ([]Match, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collectionName), attribute.Int("k", k))

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d", ErrDimensionMismatch, len(vector), s.config.Dimension)
	}

	exists, err := s.collectionExists(ctx, collectionName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !exists {
		return []Match{}, nil
	}

	var points []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "query", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collectionName,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
			Filter:         toQdrantFilter(filter),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %s: %w", collectionName, err)
	}

	matches := make([]Match, len(points))
	for i, p := range points {
		matches[i] = Match{
			Record:     fromPayload(collectionName, p.GetPayload(), p.GetVectors().GetVector().GetData()),
			Similarity: p.GetScore(),
		}
	}

	queriesTotal.WithLabelValues(collectionName).Inc()
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Get fetches one record by id.
func (s *QdrantStore) Get(ctx context.Context, collectionName, id string) (*Record, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Get")
	defer span.End()

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	exists, err := s.collectionExists(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collectionName, id)
	}

	var points []*qdrant.RetrievedPoint
	err = s.retryOperation(ctx, "get", func() error {
		res, err := s.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: collectionName,
			Ids:            []*qdrant.PointId{pointID(id)},
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("getting %s/%s: %w", collectionName, id, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collectionName, id)
	}
	rec := fromPayload(collectionName, points[0].GetPayload(), points[0].GetVectors().GetVector().GetData())
	return &rec, nil
}

// Delete removes records whose payload id is in ids.
func (s *QdrantStore) Delete(ctx context.Context, collectionName string, ids ...string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collectionName), attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}
	exists, err := s.collectionExists(ctx, collectionName)
	if err != nil || !exists {
		return err
	}

	err = s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collectionName,
			Wait:           qdrant.PtrOf(true),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: &qdrant.Filter{
						Must: []*qdrant.Condition{{
							ConditionOneOf: &qdrant.Condition_Field{
								Field: &qdrant.FieldCondition{
									Key: payloadID,
									Match: &qdrant.Match{
										MatchValue: &qdrant.Match_Keywords{
											Keywords: &qdrant.RepeatedStrings{Strings: ids},
										},
									},
								},
							},
						}},
					},
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", collectionName, err)
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Scan pages through every point matching filter.
func (s *QdrantStore) Scan(ctx context.Context, collectionName string, filter Filter) ([]Record, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Scan")
	defer span.End()

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	exists, err := s.collectionExists(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []Record{}, nil
	}

	var (
		records []Record
		offset  *qdrant.PointId
	)
	for {
		var page []*qdrant.RetrievedPoint
		err := s.retryOperation(ctx, "scroll", func() error {
			res, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
				CollectionName: collectionName,
				Filter:         toQdrantFilter(filter),
				Offset:         offset,
				Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
				WithPayload:    qdrant.NewWithPayload(true),
				WithVectors:    qdrant.NewWithVectors(true),
			})
			if err != nil {
				return err
			}
			page = res
			return nil
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scanning %s: %w", collectionName, err)
		}

		// The offset point is returned again as the first entry of the next page.
		start := 0
		if offset != nil && len(page) > 0 {
			start = 1
		}
		for _, p := range page[start:] {
			records = append(records, fromPayload(collectionName, p.GetPayload(), p.GetVectors().GetVector().GetData()))
		}
		if len(page) < scrollPageSize {
			break
		}
		offset = page[len(page)-1].GetId()
	}

	span.SetAttributes(attribute.Int("results_count", len(records)))
	return records, nil
}

// Stats counts points in a collection.
func (s *QdrantStore) Stats(ctx context.Context, collectionName string) (CollectionStats, error) {
	if err := ValidateCollectionName(collectionName); err != nil {
		return CollectionStats{}, err
	}
	stats := CollectionStats{Name: collectionName, Dimension: s.config.Dimension}
	exists, err := s.collectionExists(ctx, collectionName)
	if err != nil || !exists {
		return stats, err
	}
	stats.Exists = true

	var count uint64
	err = s.retryOperation(ctx, "count", func() error {
		n, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collectionName,
			Exact:          qdrant.PtrOf(true),
		})
		count = n
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("counting %s: %w", collectionName, err)
	}
	if count > math.MaxInt32 {
		count = math.MaxInt32
	}
	stats.Count = int(count)
	collectionSize.WithLabelValues(collectionName).Set(float64(stats.Count))
	return stats, nil
}

func fromPayload(collection string, payload map[string]*qdrant.Value, vector []float32) Record {
	rec := Record{
		Collection: collection,
		Embedding:  vector,
		Metadata:   make(map[string]string, len(payload)),
	}
	for k, v := range payload {
		switch k {
		case payloadID:
			rec.ID = v.GetStringValue()
		case payloadText:
			rec.Text = v.GetStringValue()
		case payloadInsertedAt:
			rec.InsertedAt = time.Unix(0, v.GetIntegerValue()).UTC()
		default:
			switch kind := v.GetKind().(type) {
			case *qdrant.Value_StringValue:
				rec.Metadata[k] = kind.StringValue
			case *qdrant.Value_IntegerValue:
				rec.Metadata[k] = strconv.FormatInt(kind.IntegerValue, 10)
			case *qdrant.Value_DoubleValue:
				rec.Metadata[k] = strconv.FormatFloat(kind.DoubleValue, 'f', -1, 64)
			case *qdrant.Value_BoolValue:
				rec.Metadata[k] = strconv.FormatBool(kind.BoolValue)
			}
		}
	}
	return rec
}
