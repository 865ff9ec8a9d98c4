package cache

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// ErrEmptyVector is returned when a zero-length vector is stored or queried.
var ErrEmptyVector = fmt.Errorf("vector must not be empty")

// ErrNonFiniteComponent is returned when a vector contains NaN or Inf.
var ErrNonFiniteComponent = fmt.Errorf("vector contains a non-finite component")

// ErrDimensionMismatch is returned when a vector's length disagrees with
// the dimension already established in the index.
var ErrDimensionMismatch = fmt.Errorf("vector dimension mismatch")

// StoreEmbedding stores or replaces the embedding vector for id, enforcing
// dimension consistency across the index (spec §4.4, I4).
func (c *Cache) StoreEmbedding(id string, vec []float32, model string) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return ErrNonFiniteComponent
		}
	}

	_, exists, err := c.getEmbeddingRow(id)
	if err != nil {
		return err
	}

	if !exists {
		dim, any, err := c.firstEmbeddingDim()
		if err != nil {
			return err
		}
		if any && dim != len(vec) {
			return fmt.Errorf("%w: have %d, got %d", ErrDimensionMismatch, dim, len(vec))
		}
	}

	if !exists && model != "" {
		if mixed, err := c.hasDifferentModel(model); err != nil {
			return err
		} else if mixed && !c.mixedModelWarned {
			c.mixedModelWarned = true
		}
	}

	blob := encodeVector(vec)
	_, err = c.db.Exec(`
		INSERT INTO embeddings (node_id, model, vector) VALUES (?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET model=excluded.model, vector=excluded.vector
	`, id, model, blob)
	if err != nil {
		return fmt.Errorf("store embedding for %s: %w", id, err)
	}
	return nil
}

// MixedModelWarned reports whether StoreEmbedding has detected mixed
// models since the last call, and clears the flag. A later mixed-model
// store sets it again, so it is not one-shot per process. Neither Store
// nor Core calls it, so the condition is not added to the warning buffer.
func (c *Cache) MixedModelWarned() bool {
	if c.mixedModelWarned {
		c.mixedModelWarned = false
		return true
	}
	return false
}

func (c *Cache) hasDifferentModel(model string) (bool, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM embeddings WHERE model != ?`, model).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check embedding models: %w", err)
	}
	return count > 0, nil
}

func (c *Cache) firstEmbeddingDim() (int, bool, error) {
	var blob []byte
	err := c.db.QueryRow(`SELECT vector FROM embeddings LIMIT 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read embedding dimension: %w", err)
	}
	return len(blob) / 4, true, nil
}

func (c *Cache) getEmbeddingRow(id string) ([]byte, bool, error) {
	var blob []byte
	err := c.db.QueryRow(`SELECT vector FROM embeddings WHERE node_id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get embedding %s: %w", id, err)
	}
	return blob, true, nil
}

// DistinctEmbeddingDimensions reports every distinct vector length currently
// stored, in units of float32 count. I4 requires this to have at most one
// entry; `roux check` surfaces more than one as dimension drift.
func (c *Cache) DistinctEmbeddingDimensions() ([]int, error) {
	rows, err := c.db.Query(`SELECT DISTINCT LENGTH(vector) FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("list embedding dimensions: %w", err)
	}
	defer rows.Close()

	var dims []int
	for rows.Next() {
		var byteLen int
		if err := rows.Scan(&byteLen); err != nil {
			return nil, fmt.Errorf("scan embedding dimension: %w", err)
		}
		dims = append(dims, byteLen/4)
	}
	return dims, rows.Err()
}

// DeleteEmbedding idempotently removes the embedding for id (spec §4.4,
// delete).
func (c *Cache) DeleteEmbedding(id string) error {
	_, err := c.db.Exec(`DELETE FROM embeddings WHERE node_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete embedding %s: %w", id, err)
	}
	return nil
}

// HasEmbedding reports whether id has a stored embedding.
func (c *Cache) HasEmbedding(id string) (bool, error) {
	_, ok, err := c.getEmbeddingRow(id)
	return ok, err
}

// GetEmbeddingModel returns the model name stored for id.
func (c *Cache) GetEmbeddingModel(id string) (string, bool, error) {
	var model string
	err := c.db.QueryRow(`SELECT model FROM embeddings WHERE node_id = ?`, id).Scan(&model)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get embedding model %s: %w", id, err)
	}
	return model, true, nil
}

// VectorMatch is one ranked result from SearchByVector.
type VectorMatch struct {
	ID       string
	Distance float64
}

// SearchByVector scans every stored vector and returns the k nearest by
// ascending cosine distance (spec §4.4, search). Brute-force by design —
// the spec's Non-goals exclude approximate nearest-neighbor indexing.
func (c *Cache) SearchByVector(query []float32, k int) ([]VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(query) == 0 {
		return nil, ErrEmptyVector
	}
	for _, v := range query {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, ErrNonFiniteComponent
		}
	}

	rows, err := c.db.Query(`SELECT node_id, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		vec := decodeVector(blob)
		if len(vec) != len(query) {
			return nil, fmt.Errorf("%w: stored %d, query %d", ErrDimensionMismatch, len(vec), len(query))
		}
		matches = append(matches, VectorMatch{ID: id, Distance: cosineDistance(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// cosineDistance computes 1 - cosine similarity at float32 precision, the
// same formulation the teacher's knowledge package uses for similarity
// (inverted here to a distance, per spec §4.4). Zero-magnitude vectors
// define distance = 1 exactly.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - sim
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	r := bytes.NewReader(blob)
	for i := range out {
		var bits uint32
		_ = binary.Read(r, binary.LittleEndian, &bits)
		out[i] = math.Float32frombits(bits)
	}
	return out
}
