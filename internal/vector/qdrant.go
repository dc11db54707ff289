package vector

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	payloadSourceID = "source_id"
	payloadSnapshot = "snapshot"

	scrollPageSize = 256
)

// QdrantIndex implements Index using Qdrant.
type QdrantIndex struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// NewQdrant creates a Qdrant-backed index.
func NewQdrant(ctx context.Context, host string, port int, collection string) (*QdrantIndex, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantIndex{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
	}, nil
}

func (q *QdrantIndex) Insert(ctx context.Context, e Entry) error {
	payload := map[string]*pb.Value{
		payloadSourceID: {Kind: &pb.Value_StringValue{StringValue: e.SourceID}},
		payloadSnapshot: {Kind: &pb.Value_StringValue{StringValue: e.Snapshot}},
	}
	for k, v := range e.Attributes {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}

	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Points: []*pb.PointStruct{{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: e.EntryID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}}},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert %s: %w", e.EntryID, err)
	}
	return nil
}

func (q *QdrantIndex) DeleteByID(ctx context.Context, entryID string) error {
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: entryID}}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete %s: %w", entryID, err)
	}
	return nil
}

func (q *QdrantIndex) DeleteBySourceID(ctx context.Context, sourceID string) (int, error) {
	count, err := q.CountBySourceID(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	_, err = q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: sourceFilter(sourceID)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant delete by source %s: %w", sourceID, err)
	}
	return count, nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]ScoredEntry, error) {
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]ScoredEntry, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = ScoredEntry{
			Entry: entryFromPayload(pt.Id.GetUuid(), nil, pt.Payload),
			Score: pt.Score,
		}
	}
	return results, nil
}

func (q *QdrantIndex) EntriesBySourceID(ctx context.Context, sourceID string) ([]Entry, error) {
	var entries []Entry
	var offset *pb.PointId
	limit := uint32(scrollPageSize)

	for {
		resp, err := q.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: q.collection,
			Filter:         sourceFilter(sourceID),
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll source %s: %w", sourceID, err)
		}
		for _, pt := range resp.Result {
			entries = append(entries, entryFromPayload(pt.Id.GetUuid(), pt.Vectors.GetVector().GetData(), pt.Payload))
		}
		if resp.NextPageOffset == nil || len(resp.Result) == 0 {
			return entries, nil
		}
		offset = resp.NextPageOffset
	}
}

func (q *QdrantIndex) AllSourceIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	var offset *pb.PointId
	limit := uint32(scrollPageSize)

	for {
		resp, err := q.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: q.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, pt := range resp.Result {
			sid := pt.Payload[payloadSourceID].GetStringValue()
			if sid == "" {
				continue
			}
			if _, ok := seen[sid]; !ok {
				seen[sid] = struct{}{}
				ids = append(ids, sid)
			}
		}
		if resp.NextPageOffset == nil || len(resp.Result) == 0 {
			return ids, nil
		}
		offset = resp.NextPageOffset
	}
}

func (q *QdrantIndex) CountBySourceID(ctx context.Context, sourceID string) (int, error) {
	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{
		CollectionName: q.collection,
		Filter:         sourceFilter(sourceID),
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count source %s: %w", sourceID, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Ping checks the Qdrant health endpoint, for readiness checks.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	_, err := pb.NewQdrantClient(q.conn).HealthCheck(ctx, &pb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("qdrant health: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

func sourceFilter(sourceID string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   payloadSourceID,
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: sourceID}},
				},
			},
		}},
	}
}

func entryFromPayload(entryID string, vec []float32, payload map[string]*pb.Value) Entry {
	e := Entry{EntryID: entryID, Vector: vec, Attributes: make(map[string]string)}
	for k, v := range payload {
		switch k {
		case payloadSourceID:
			e.SourceID = v.GetStringValue()
		case payloadSnapshot:
			e.Snapshot = v.GetStringValue()
		default:
			e.Attributes[k] = v.GetStringValue()
		}
	}
	return e
}
