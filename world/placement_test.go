package world

import (
	"math/rand"
	"testing"
)

func TestManualPlacementExact(t *testing.T) {
	p := testParams()
	p.ManualNodes = []Coord{{X: 1, Y: 1}, {X: 8, Y: 2}, {X: 12, Y: -1}} // wraps to (2, 9)
	g := newTestGrid(t, p)

	want := map[Coord]bool{{X: 1, Y: 1}: true, {X: 8, Y: 2}: true, {X: 2, Y: 9}: true}
	if g.NodeCount() != len(want) {
		t.Fatalf("node count = %d, want %d", g.NodeCount(), len(want))
	}
	for _, c := range g.Nodes() {
		if !want[c] {
			t.Errorf("unexpected node at %+v", c)
		}
		if cell := g.At(c.X, c.Y); !cell.Node || cell.Resources != p.NodeBaseline {
			t.Errorf("node %+v not initialized to baseline", c)
		}
	}
}

func TestRandomPlacementDensity(t *testing.T) {
	p := testParams()
	p.Width, p.Height = 100, 100
	p.Placement = PlaceRandom
	p.NodeDensity = 0.1
	g := newTestGrid(t, p)

	// 10k Bernoulli trials at 0.1; ±40% is far beyond statistical noise.
	n := g.NodeCount()
	if n < 600 || n > 1400 {
		t.Errorf("node count = %d, want roughly 1000", n)
	}
}

func TestRandomPlacementZeroDensity(t *testing.T) {
	p := testParams()
	p.Placement = PlaceRandom
	p.NodeDensity = 0
	g := newTestGrid(t, p)

	if g.NodeCount() != 0 {
		t.Errorf("node count = %d, want 0", g.NodeCount())
	}
}

func TestClusteredPlacementRespectsMinDistance(t *testing.T) {
	p := testParams()
	p.Width, p.Height = 60, 60
	p.Placement = PlaceClustered
	p.ClusterCount = 4
	p.ClusterRadius = 2
	p.ClusterMinDist = 15
	p.ClusterRetryBudget = 1000
	g := newTestGrid(t, p)

	if g.NodeCount() == 0 {
		t.Fatal("clustered placement produced no nodes")
	}
	// Every node lies within the cluster radius of some node-dense area;
	// at minimum the total is bounded by count * disc area.
	maxPerCluster := 0
	r := p.ClusterRadius
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				maxPerCluster++
			}
		}
	}
	if g.NodeCount() > p.ClusterCount*maxPerCluster {
		t.Errorf("node count %d exceeds %d clusters of at most %d cells", g.NodeCount(), p.ClusterCount, maxPerCluster)
	}
}

func TestClusteredPlacementDegradesOnBudgetExhaustion(t *testing.T) {
	p := testParams()
	p.Width, p.Height = 20, 20
	p.Placement = PlaceClustered
	p.ClusterCount = 50 // impossible at this spacing
	p.ClusterRadius = 1
	p.ClusterMinDist = 15
	p.ClusterRetryBudget = 100

	// Must construct without error despite placing fewer clusters.
	g, err := New(p, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.NodeCount() == 0 {
		t.Error("degraded placement should still place some nodes")
	}
}
