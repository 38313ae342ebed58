package database

// HNSW index parameters for scene embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the minimum search candidate pool size.
	// The scene index raises it to the row count for exhaustive search.
	HNSWEfSearch = 100
)
