package record

import (
	"github.com/RoaringBitmap/roaring"
)

// Cluster is a centroid bound to the records it owns. Index is in [0, k).
type Cluster struct {
	Index    int
	Centroid Record
	Members  []Record
}

// AddMember appends a copy of r to the members.
func (c *Cluster) AddMember(r Record) {
	c.Members = append(c.Members, r.Copy())
}

func (c *Cluster) ClearMembers() {
	c.Members = nil
}

// MemberIndices returns the row indices of all members, taken from their
// provenance.
func (c *Cluster) MemberIndices() *roaring.Bitmap {
	bm := roaring.New()
	for _, m := range c.Members {
		for _, idx := range m.Provenance {
			bm.Add(uint32(idx))
		}
	}
	return bm
}

// Clusters builds k clusters from centroids, indexed by position.
func Clusters(centroids []Record) []*Cluster {
	cs := make([]*Cluster, len(centroids))
	for i, c := range centroids {
		cs[i] = &Cluster{Index: i, Centroid: c.Copy()}
	}
	return cs
}
