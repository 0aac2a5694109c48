package geo

import (
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultPathCacheSize = 512

type pathKey struct {
	a, b Point
	n    int
}

// PathCache memoizes PathPoints for routes that are drawn repeatedly.
type PathCache struct {
	cache *lru.Cache[pathKey, []Point]
}

// NewPathCache returns a cache holding up to size paths; size <= 0 picks a
// default.
func NewPathCache(size int) *PathCache {
	if size <= 0 {
		size = defaultPathCacheSize
	}
	c, err := lru.New[pathKey, []Point](size)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &PathCache{cache: c}
}

// PathPoints returns a copy of the cached path, computing it on a miss.
func (pc *PathCache) PathPoints(a, b Point, n int) ([]Point, error) {
	key := pathKey{a: a, b: b, n: n}
	if pts, ok := pc.cache.Get(key); ok {
		return slices.Clone(pts), nil
	}
	pts, err := PathPoints(a, b, n)
	if err != nil {
		return nil, err
	}
	pc.cache.Add(key, pts)
	return slices.Clone(pts), nil
}

func (pc *PathCache) Len() int {
	return pc.cache.Len()
}
