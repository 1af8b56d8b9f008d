package utils

import (
	"fmt"
	"strings"
)

// MemReport provides a detailed, hierarchical memory usage report for a component.
type MemReport struct {
	Name       string
	TotalBytes int
	Children   []MemReport
}

// Print formats and prints the MemReport as a tree.
func (r MemReport) Print(indent int) {
	prefix := strings.Repeat("  ", indent)
	fmt.Printf("%s- %s: %d bytes\n", prefix, r.Name, r.TotalBytes)
	for _, child := range r.Children {
		child.Print(indent + 1)
	}
}

// PointStoreReport builds a MemReport for a point store holding n points
// occupying byteSize bytes, broken into a per-point-field child and the
// backing radix tree's estimated node overhead.
func PointStoreReport(name string, n, byteSize int) MemReport {
	perPoint := 0
	if n > 0 {
		perPoint = byteSize / n
	}
	return MemReport{
		Name:       name,
		TotalBytes: byteSize,
		Children: []MemReport{
			{Name: "points", TotalBytes: perPoint * n},
			{Name: "tree overhead (est.)", TotalBytes: byteSize - perPoint*n},
		},
	}
}
