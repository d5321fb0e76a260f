package export

import (
	"context"
	"fmt"
	"testing"
	"time"

	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type fakeGraphSource struct {
	nodes []domain.Node
	edges []domain.Edge
	err   error
}

func (f *fakeGraphSource) ListNodes(_ context.Context, _ uuid.UUID) ([]domain.Node, error) {
	return f.nodes, f.err
}

func (f *fakeGraphSource) ListEdges(_ context.Context, _ uuid.UUID) ([]domain.Edge, error) {
	return f.edges, f.err
}

func TestBuildWorkbook(t *testing.T) {
	nodeID := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	targetID := uuid.MustParse("223e4567-e89b-12d3-a456-426614174000")
	edgeID := uuid.MustParse("323e4567-e89b-12d3-a456-426614174000")
	validFrom := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	source := &fakeGraphSource{
		nodes: []domain.Node{
			{
				NodeID:     nodeID,
				NodeType:   "pump",
				Name:       "plant-a/pump-7",
				Properties: map[string]any{"rating": 4.5},
				Version:    2,
				ValidFrom:  validFrom,
			},
			{
				NodeID:    targetID,
				NodeType:  "site",
				Name:      "plant-a",
				Version:   0,
				ValidFrom: validFrom,
			},
		},
		edges: []domain.Edge{
			{
				EdgeID:       edgeID,
				SourceNodeID: nodeID,
				TargetNodeID: targetID,
				EdgeType:     "LOCATED_IN",
				Version:      0,
				ValidFrom:    validFrom,
			},
		},
	}

	service := NewService(source)
	file, err := service.BuildWorkbook(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer file.Close()

	// Round-trip through the serialized workbook so the assertion covers
	// what a client actually downloads.
	buffer, err := file.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}
	reopened, err := excelize.OpenReader(buffer)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer reopened.Close()

	sheets := reopened.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "nodes" || sheets[1] != "edges" {
		t.Fatalf("unexpected sheet list: %v", sheets)
	}

	nodeRows, err := reopened.GetRows("nodes")
	if err != nil {
		t.Fatalf("read node rows: %v", err)
	}
	if len(nodeRows) != 3 {
		t.Fatalf("expected header + 2 node rows, got %d", len(nodeRows))
	}
	if nodeRows[0][0] != "node_id" || nodeRows[0][2] != "node_name" {
		t.Fatalf("unexpected node header: %v", nodeRows[0])
	}
	if nodeRows[1][0] != nodeID.String() {
		t.Errorf("expected node id %s, got %s", nodeID, nodeRows[1][0])
	}
	if nodeRows[1][2] != "plant-a/pump-7" {
		t.Errorf("unexpected node name %q", nodeRows[1][2])
	}
	if nodeRows[1][3] != `{"rating":4.5}` {
		t.Errorf("unexpected properties cell %q", nodeRows[1][3])
	}

	edgeRows, err := reopened.GetRows("edges")
	if err != nil {
		t.Fatalf("read edge rows: %v", err)
	}
	if len(edgeRows) != 2 {
		t.Fatalf("expected header + 1 edge row, got %d", len(edgeRows))
	}
	if edgeRows[1][3] != "LOCATED_IN" {
		t.Errorf("unexpected edge type %q", edgeRows[1][3])
	}
}

func TestBuildWorkbookPropagatesErrors(t *testing.T) {
	source := &fakeGraphSource{err: fmt.Errorf("connection refused")}
	service := NewService(source)

	if _, err := service.BuildWorkbook(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error from failing graph source")
	}
}

func TestFileName(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 30, 45, 0, time.UTC)
	service := NewService(&fakeGraphSource{}, WithClock(func() time.Time { return fixed }))

	tenantID := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	got := service.FileName(tenantID)
	want := "t_123e4567_2de89b_2d12d3_2da456_2d426614174000-graph-20250301-123045.xlsx"
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}
