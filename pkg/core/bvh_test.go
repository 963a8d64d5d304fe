package core

import (
	"math"
	"testing"
)

// mockItem is a box that reports a hit at a fixed distance along +X rays
type mockItem struct {
	id          int
	boundingBox AABB
	hitT        float64
}

func (m mockItem) BoundingBox() AABB {
	return m.boundingBox
}

func (m mockItem) hit(ray Ray, tMin, tMax float64) bool {
	return m.hitT > 0 && ray.Direction.X > 0 && m.hitT >= tMin && m.hitT <= tMax
}

// nearest runs a closest-hit query the same way scene queries do
func nearest(bvh *BVH[mockItem], ray Ray, tMin, tMax float64) (mockItem, bool) {
	var closest mockItem
	found := false
	bvh.Traverse(ray, tMin, tMax, func(item mockItem, tMax float64) float64 {
		if item.hit(ray, tMin, tMax) {
			closest = item
			found = true
			return item.hitT
		}
		return tMax
	})
	return closest, found
}

func TestBVH_LeafThresholdBoundary(t *testing.T) {
	items := make([]mockItem, 8)
	for i := range items {
		items[i] = mockItem{id: i, boundingBox: NewAABB(NewVec3(float64(i), 0, 0), NewVec3(float64(i)+1, 1, 1))}
	}

	stats := NewBVH(items).getStats()
	if stats.totalNodes != 1 || stats.leafNodes != 1 {
		t.Errorf("Expected a single leaf for %d items, got %d nodes / %d leaves", len(items), stats.totalNodes, stats.leafNodes)
	}

	items = append(items, mockItem{id: 8, boundingBox: NewAABB(NewVec3(8, 0, 0), NewVec3(9, 1, 1))})
	stats = NewBVH(items).getStats()
	if stats.totalNodes == 1 {
		t.Errorf("Expected split for %d items, but got single node", len(items))
	}
	if stats.totalItems != len(items) {
		t.Errorf("Expected %d items in leaves, got %d", len(items), stats.totalItems)
	}
}

func TestBVH_Empty(t *testing.T) {
	bvh := NewBVH[mockItem](nil)
	if bvh.Len() != 0 {
		t.Errorf("Expected empty BVH, got %d items", bvh.Len())
	}

	visited := 0
	bvh.Traverse(NewRay(NewVec3(0, 0, 0), NewVec3(1, 0, 0)), 0, math.Inf(1), func(item mockItem, tMax float64) float64 {
		visited++
		return tMax
	})
	if visited != 0 {
		t.Errorf("Expected no visits on empty BVH, got %d", visited)
	}
}

func TestBVH_NearestHit(t *testing.T) {
	items := []mockItem{
		{id: 0, boundingBox: NewAABB(NewVec3(0, 0, 0), NewVec3(1, 1, 1)), hitT: 2.0},
		{id: 1, boundingBox: NewAABB(NewVec3(0.5, 0, 0), NewVec3(1.5, 1, 1)), hitT: 1.0},
		{id: 2, boundingBox: NewAABB(NewVec3(1.0, 0, 0), NewVec3(2.0, 1, 1)), hitT: 3.0},
	}
	// Pad beyond the leaf threshold so internal nodes are exercised too
	for i := 3; i < 40; i++ {
		items = append(items, mockItem{id: i, boundingBox: NewAABB(NewVec3(float64(i), 5, 5), NewVec3(float64(i)+1, 6, 6))})
	}

	bvh := NewBVH(items)
	ray := NewRay(NewVec3(-1, 0.5, 0.5), NewVec3(1, 0, 0))

	hit, ok := nearest(bvh, ray, 0.001, 1000.0)
	if !ok {
		t.Fatal("Expected hit")
	}
	if hit.id != 1 {
		t.Errorf("Expected closest item 1, got %d (t=%f)", hit.id, hit.hitT)
	}
}

func TestBVH_GatherVisitsEveryOverlappingItem(t *testing.T) {
	// Stack of identical boxes plus a far-away distractor
	same := NewAABB(NewVec3(0, 0, 0), NewVec3(1, 1, 1))
	var items []mockItem
	for i := 0; i < 20; i++ {
		items = append(items, mockItem{id: i, boundingBox: same, hitT: float64(i + 1)})
	}
	items = append(items, mockItem{id: 99, boundingBox: NewAABB(NewVec3(0, 10, 10), NewVec3(1, 11, 11)), hitT: 1})

	bvh := NewBVH(items)
	ray := NewRay(NewVec3(-1, 0.5, 0.5), NewVec3(1, 0, 0))

	seen := map[int]bool{}
	bvh.Traverse(ray, 0, math.Inf(1), func(item mockItem, tMax float64) float64 {
		seen[item.id] = true
		return tMax
	})

	if len(seen) != 20 {
		t.Errorf("Expected 20 gathered items, got %d", len(seen))
	}
	if seen[99] {
		t.Error("Distractor outside the ray should not be visited")
	}
}

func TestBVH_StatsCollection(t *testing.T) {
	items := make([]mockItem, 20)
	for i := range items {
		items[i] = mockItem{boundingBox: NewAABB(NewVec3(float64(i), 0, 0), NewVec3(float64(i)+1, 1, 1))}
	}

	bvh := NewBVH(items)
	stats := bvh.getStats()

	if stats.totalItems != 20 {
		t.Errorf("Expected 20 total items, got %d", stats.totalItems)
	}
	if stats.totalNodes < stats.leafNodes {
		t.Error("Total nodes should be >= leaf nodes")
	}
	if stats.maxDepth == 0 {
		t.Error("Expected max depth > 0 for 20 items")
	}
	if bvh.Len() != 20 {
		t.Errorf("Expected Len 20, got %d", bvh.Len())
	}
}

func TestAABB_Hit(t *testing.T) {
	box := NewAABBFromPoints(NewVec3(1, 1, 1), NewVec3(-1, -1, -1), NewVec3(0, 0.5, 0))

	tests := []struct {
		name     string
		ray      Ray
		tMax     float64
		expected bool
	}{
		{"through center", NewRay(NewVec3(-5, 0, 0), NewVec3(1, 0, 0)), 100, true},
		{"parallel outside", NewRay(NewVec3(-5, 2, 0), NewVec3(1, 0, 0)), 100, false},
		{"pointing away", NewRay(NewVec3(-5, 0, 0), NewVec3(-1, 0, 0)), 100, false},
		{"interval too short", NewRay(NewVec3(-5, 0, 0), NewVec3(1, 0, 0)), 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.Hit(tt.ray, 0, tt.tMax); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
