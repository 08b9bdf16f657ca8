package mapview

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// DefaultThreshold is the linking distance in pixels.
const DefaultThreshold = 40

// clusterNamespace seeds the name-based cluster IDs.
var clusterNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:turbinemap:cluster"))

// ClusterKind tells single markers from groups.
type ClusterKind int

const (
	Single ClusterKind = iota
	Group
)

func (k ClusterKind) String() string {
	if k == Group {
		return "group"
	}
	return "single"
}

// Cluster is one connected component of turbines at the current zoom.
type Cluster struct {
	ID              uuid.UUID
	Kind            ClusterKind
	Members         []domain.Turbine // ascending id
	Count           int
	Centroid        Pixel // mean of member pixels
	Center          domain.GeoPoint
	Extent          domain.BoundingBox
	TotalCapacityMW float64
}

// ClusterEngine groups turbines by single linkage: two turbines belong to
// the same cluster when a chain of turbines connects them with every hop
// at most Threshold pixels long.
type ClusterEngine struct {
	Threshold float64
}

// NewClusterEngine creates an engine. threshold <= 0 means DefaultThreshold.
func NewClusterEngine(threshold float64) *ClusterEngine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ClusterEngine{Threshold: threshold}
}

type cellKey struct{ cx, cy int64 }

// Cluster partitions ws for vp. The result depends only on its inputs:
// clusters are ordered by smallest member id and IDs derive from member ids.
func (e *ClusterEngine) Cluster(ws *WorkingSet, vp Viewport) []Cluster {
	records := ws.Turbines()
	if len(records) == 0 {
		return nil
	}

	t := e.Threshold
	t2 := t * t
	px := make([]Pixel, len(records))
	for i, r := range records {
		px[i] = vp.Project(r.Location())
	}

	// Candidates come from the 3x3 block of T-sized cells; the distance
	// check keeps linkage exact.
	uf := newUnionFind(len(records))
	grid := make(map[cellKey][]int, len(records))
	for i, p := range px {
		key := cellKey{int64(math.Floor(p.X / t)), int64(math.Floor(p.Y / t))}
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for _, j := range grid[cellKey{key.cx + dx, key.cy + dy}] {
					ddx, ddy := p.X-px[j].X, p.Y-px[j].Y
					if ddx*ddx+ddy*ddy <= t2 {
						uf.union(i, j)
					}
				}
			}
		}
		grid[key] = append(grid[key], i)
	}

	// records are in id order, so the first index seen per root is the
	// smallest member and members are appended in id order
	index := make(map[int]int)
	var groups [][]int
	for i := range records {
		root := uf.find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		clusters = append(clusters, buildCluster(records, px, members))
	}
	return clusters
}

func buildCluster(records []domain.Turbine, px []Pixel, idx []int) Cluster {
	c := Cluster{
		Kind:    Single,
		Members: make([]domain.Turbine, 0, len(idx)),
		Count:   len(idx),
		Extent: domain.BoundingBox{
			MinLon: math.Inf(1), MinLat: math.Inf(1),
			MaxLon: math.Inf(-1), MaxLat: math.Inf(-1),
		},
	}
	if len(idx) > 1 {
		c.Kind = Group
	}

	idBytes := make([]byte, 0, 8*len(idx))
	var sx, sy, slon, slat float64
	for _, i := range idx {
		r := records[i]
		c.Members = append(c.Members, r)
		c.TotalCapacityMW += r.CapacityMW
		sx += px[i].X
		sy += px[i].Y
		slon += r.Lon
		slat += r.Lat
		c.Extent.MinLon = math.Min(c.Extent.MinLon, r.Lon)
		c.Extent.MinLat = math.Min(c.Extent.MinLat, r.Lat)
		c.Extent.MaxLon = math.Max(c.Extent.MaxLon, r.Lon)
		c.Extent.MaxLat = math.Max(c.Extent.MaxLat, r.Lat)
		idBytes = binary.BigEndian.AppendUint64(idBytes, uint64(r.ID))
	}
	n := float64(len(idx))
	c.Centroid = Pixel{X: sx / n, Y: sy / n}
	// the mean can round one ulp outside the members' extent
	c.Center = domain.GeoPoint{
		Lon: clamp(slon/n, c.Extent.MinLon, c.Extent.MaxLon),
		Lat: clamp(slat/n, c.Extent.MinLat, c.Extent.MaxLat),
	}
	c.ID = uuid.NewSHA1(clusterNamespace, idBytes)
	return c
}

type unionFind struct {
	parent []int
	rank   []uint8
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]uint8, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
