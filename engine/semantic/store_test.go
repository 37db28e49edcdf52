package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertErr  error
	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	created   *pb.CreateCollection
	createErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{}, m.createErr
}

func scored(num uint64) *pb.ScoredPoint {
	return &pb.ScoredPoint{Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: num}}}
}

// --- Tests ---

func TestSearch_ReturnsRankedIDs(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{
		Result: []*pb.ScoredPoint{scored(12), scored(7), scored(3)},
	}}
	s := NewWithClients(pts, &mockCollections{}, "perfumes")

	ids, err := s.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ids) != 3 || ids[0] != "12" || ids[1] != "7" || ids[2] != "3" {
		t.Fatalf("rank order lost: %v", ids)
	}
	if pts.searchReq.GetLimit() != 5 {
		t.Fatalf("expected limit 5, got %d", pts.searchReq.GetLimit())
	}
	if pts.searchReq.GetCollectionName() != "perfumes" {
		t.Fatalf("collection: %s", pts.searchReq.GetCollectionName())
	}
}

func TestSearch_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("unavailable")}
	s := NewWithClients(pts, &mockCollections{}, "perfumes")

	if _, err := s.Search(context.Background(), []float32{0.1}, 5); err == nil {
		t.Fatal("expected search error")
	}
}

func TestUpsert(t *testing.T) {
	pts := &mockPoints{}
	s := NewWithClients(pts, &mockCollections{}, "perfumes")

	err := s.Upsert(context.Background(), []PerfumeVector{
		{ID: 12, Embedding: []float32{0.1}, Name: "Noir"},
		{ID: 7, Embedding: []float32{0.2}, Name: "Lumen"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	points := pts.upsertReq.GetPoints()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].GetId().GetNum() != 12 {
		t.Fatalf("first point id: %d", points[0].GetId().GetNum())
	}
	if points[1].GetPayload()["name"].GetStringValue() != "Lumen" {
		t.Fatalf("payload name missing: %v", points[1].GetPayload())
	}
}

func TestUpsert_Empty(t *testing.T) {
	pts := &mockPoints{}
	s := NewWithClients(pts, &mockCollections{}, "perfumes")

	if err := s.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
	if pts.upsertReq != nil {
		t.Fatal("no request expected for empty upsert")
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{
		Collections: []*pb.CollectionDescription{{Name: "perfumes"}},
	}}
	s := NewWithClients(&mockPoints{}, cols, "perfumes")

	if err := s.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if cols.created != nil {
		t.Fatal("existing collection must not be re-created")
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{}}
	s := NewWithClients(&mockPoints{}, cols, "perfumes")

	if err := s.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if cols.created == nil {
		t.Fatal("expected collection creation")
	}
	params := cols.created.GetVectorsConfig().GetParams()
	if params.GetSize() != 768 || params.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("unexpected vector params: %v", params)
	}
}

func TestClose_NoConn(t *testing.T) {
	s := NewWithClients(&mockPoints{}, &mockCollections{}, "perfumes")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
