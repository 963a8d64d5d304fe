package core

import (
	"sort"
)

// Bounded is anything that can be stored in a BVH
type Bounded interface {
	BoundingBox() AABB
}

// BVHNode represents a node in the Bounding Volume Hierarchy
type BVHNode[T Bounded] struct {
	BoundingBox AABB
	Left        *BVHNode[T]
	Right       *BVHNode[T]
	Items       []T // Items for leaf nodes (nil for internal nodes)
}

// BVH is a bounding volume hierarchy over items of type T.
// It is immutable after construction and safe for concurrent traversal.
type BVH[T Bounded] struct {
	Root  *BVHNode[T]
	count int
}

// Leaf threshold: if we have this many or fewer items, store them in a leaf node
const leafThreshold = 8

// NewBVH constructs a BVH from a slice of items
func NewBVH[T Bounded](items []T) *BVH[T] {
	if len(items) == 0 {
		return &BVH[T]{}
	}

	// Copy so the caller's ordering is left untouched
	itemsCopy := make([]T, len(items))
	copy(itemsCopy, items)

	return &BVH[T]{
		Root:  buildBVH(itemsCopy),
		count: len(items),
	}
}

// Len returns the number of items stored in the hierarchy
func (bvh *BVH[T]) Len() int {
	return bvh.count
}

// buildBVH recursively builds the tree with median splits along the longest axis
func buildBVH[T Bounded](items []T) *BVHNode[T] {
	boundingBox := items[0].BoundingBox()
	for i := 1; i < len(items); i++ {
		boundingBox = boundingBox.Union(items[i].BoundingBox())
	}

	if len(items) <= leafThreshold {
		return &BVHNode[T]{
			BoundingBox: boundingBox,
			Items:       items,
		}
	}

	// Split on the centroid extent, falls back to the box extent for coincident centroids
	centroids := NewAABBFromPoints(items[0].BoundingBox().Center())
	for _, item := range items[1:] {
		centroids = centroids.Extend(item.BoundingBox().Center())
	}
	axis := centroids.LongestAxis()
	sortItemsByAxis(items, axis)

	mid := len(items) / 2
	return &BVHNode[T]{
		BoundingBox: boundingBox,
		Left:        buildBVH(items[:mid]),
		Right:       buildBVH(items[mid:]),
	}
}

// sortItemsByAxis sorts items by their bounding box center along the specified axis
func sortItemsByAxis[T Bounded](items []T, axis int) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].BoundingBox().Center().Axis(axis) < items[j].BoundingBox().Center().Axis(axis)
	})
}

// Traverse calls visit for every item whose bounds overlap the ray in [tMin, tMax].
// visit returns the new upper bound of the interval, so nearest-hit queries can shrink
// the search while gather queries return tMax unchanged.
func (bvh *BVH[T]) Traverse(ray Ray, tMin, tMax float64, visit func(item T, tMax float64) float64) {
	if bvh.Root == nil {
		return
	}

	stack := make([]*BVHNode[T], 0, 64)
	stack = append(stack, bvh.Root)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !node.BoundingBox.Hit(ray, tMin, tMax) {
			continue
		}

		if node.Items != nil {
			for _, item := range node.Items {
				if item.BoundingBox().Hit(ray, tMin, tMax) {
					tMax = visit(item, tMax)
				}
			}
			continue
		}

		if node.Right != nil {
			stack = append(stack, node.Right)
		}
		if node.Left != nil {
			stack = append(stack, node.Left)
		}
	}
}

// getStats returns statistics about the BVH structure
func (bvh *BVH[T]) getStats() bvhStats {
	if bvh.Root == nil {
		return bvhStats{}
	}

	stats := bvhStats{}
	collectStats(bvh.Root, 0, &stats)

	if stats.leafNodes > 0 {
		stats.avgDepth = stats.avgDepth / float64(stats.leafNodes)
	}

	return stats
}

// bvhStats contains statistics about the BVH structure
type bvhStats struct {
	totalNodes int
	leafNodes  int
	maxDepth   int
	avgDepth   float64
	totalItems int
}

// collectStats recursively collects statistics about the BVH
func collectStats[T Bounded](node *BVHNode[T], depth int, stats *bvhStats) {
	stats.totalNodes++
	stats.maxDepth = max(stats.maxDepth, depth)

	if node.Items != nil {
		stats.leafNodes++
		stats.totalItems += len(node.Items)
		stats.avgDepth += float64(depth)
		return
	}
	if node.Left != nil {
		collectStats(node.Left, depth+1, stats)
	}
	if node.Right != nil {
		collectStats(node.Right, depth+1, stats)
	}
}
