package nodeloader

import (
	"context"
	"fmt"
	"time"

	"graph-ontology-api/internal/auth"
	"graph-ontology-api/internal/domain"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// NodeFetcher is the batch lookup the loader is built on.
type NodeFetcher interface {
	GetNodesByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Node, error)
}

// NodeLoader batches live-node lookups by stable node id within one
// request. The tenant scope is read from the call context.
type NodeLoader struct {
	Loader *dataloader.Loader
}

// NewNodeLoader creates a request-scoped node loader.
func NewNodeLoader(repo NodeFetcher) *NodeLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		tenantID, ok := auth.TenantIDFromContext(ctx)
		if !ok {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: fmt.Errorf("no tenant scope in context")}
			}
			return results
		}

		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return []*dataloader.Result{{Error: fmt.Errorf("invalid UUID: %w", err)}}
			}
			ids[i] = id
		}

		nodes, err := repo.GetNodesByIDs(ctx, tenantID, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		nodeMap := make(map[uuid.UUID]domain.Node, len(nodes))
		for _, n := range nodes {
			nodeMap[n.NodeID] = n
		}

		// Results must line up with the requested keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if n, ok := nodeMap[id]; ok {
				results[i] = &dataloader.Result{Data: n}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &NodeLoader{Loader: loader}
}

// Load resolves one node by id through the batch loader. The bool result
// reports whether a live node was found.
func (l *NodeLoader) Load(ctx context.Context, id uuid.UUID) (domain.Node, bool, error) {
	thunk := l.Loader.Load(ctx, dataloader.StringKey(id.String()))
	data, err := thunk()
	if err != nil {
		return domain.Node{}, false, err
	}
	node, ok := data.(domain.Node)
	if !ok {
		return domain.Node{}, false, nil
	}
	return node, true, nil
}
