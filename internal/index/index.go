// Package index maintains the authoritative tile index: the ordered catalog
// of tile geometries, roles and output locations, exported as a geographic
// feature collection and a compact container for downstream tools.
package index

import (
	"fmt"

	"tileprep/internal/grid"
)

// TileIndex is an ordered collection of tile descriptors plus the scene CRS.
// Tile ids are unique; descriptors are addressed by id, never by position,
// because dispatched tasks complete in arbitrary order.
type TileIndex struct {
	EPSG  string
	tiles []grid.TileDescriptor
	byID  map[string]int
}

// New creates an empty index for the given EPSG code.
func New(epsg string) *TileIndex {
	return &TileIndex{
		EPSG: epsg,
		byID: make(map[string]int),
	}
}

// Build creates an index from planned tiles.
func Build(epsg string, tiles []grid.TileDescriptor) (*TileIndex, error) {
	idx := New(epsg)
	for _, t := range tiles {
		if err := idx.Add(t); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Add appends a descriptor. Duplicate ids are rejected.
func (x *TileIndex) Add(t grid.TileDescriptor) error {
	if _, exists := x.byID[t.ID]; exists {
		return fmt.Errorf("tile index: duplicate tile id %q", t.ID)
	}
	x.byID[t.ID] = len(x.tiles)
	x.tiles = append(x.tiles, t)
	return nil
}

// Len returns the number of tiles in the index.
func (x *TileIndex) Len() int { return len(x.tiles) }

// Tiles returns the descriptors in grid order. The slice is shared; callers
// must not grow it.
func (x *TileIndex) Tiles() []grid.TileDescriptor { return x.tiles }

// Get returns the descriptor for a tile id.
func (x *TileIndex) Get(id string) (grid.TileDescriptor, bool) {
	i, ok := x.byID[id]
	if !ok {
		return grid.TileDescriptor{}, false
	}
	return x.tiles[i], true
}

// Update replaces the descriptor with the same id. The id must exist.
func (x *TileIndex) Update(t grid.TileDescriptor) error {
	i, ok := x.byID[t.ID]
	if !ok {
		return fmt.Errorf("tile index: unknown tile id %q", t.ID)
	}
	x.tiles[i] = t
	return nil
}

// Prune drops every tile without data, re-indexing the remainder. Pruning
// happens once, after all dispatched batches have completed.
func (x *TileIndex) Prune() int {
	kept := x.tiles[:0]
	dropped := 0
	for _, t := range x.tiles {
		if t.HasData {
			kept = append(kept, t)
		} else {
			dropped++
		}
	}
	x.tiles = kept
	x.byID = make(map[string]int, len(kept))
	for i, t := range x.tiles {
		x.byID[t.ID] = i
	}
	return dropped
}
