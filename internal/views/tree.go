// Package views computes the read-only aggregations shown to users: severity
// counts, the report/severity/vulnerability/instance tree and the dashboard.
// Nothing here is cached; every call derives its result from the store.
package views

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/xkilldash9x/vulntrack/api/schemas"
)

// MaxNodeNameRunes bounds the length of instance node names.
const MaxNodeNameRunes = 80

// NodeType identifies the level of a tree node.
type NodeType string

const (
	NodeReport        NodeType = "report"
	NodeSeverity      NodeType = "severity"
	NodeVulnerability NodeType = "vulnerability"
	NodeInstance      NodeType = "instance"
)

// TreeNode is one node of the severity tree.
type TreeNode struct {
	ID   string   `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
	Type NodeType `json:"type" yaml:"type"`

	// InstanceCount is set on vulnerability nodes.
	InstanceCount *int `json:"instance_count,omitempty" yaml:"instance_count,omitempty"`
	// Status is set on instance nodes.
	Status schemas.FixStatus `json:"status,omitempty" yaml:"status,omitempty"`

	Children []TreeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// SeverityStats counts vulnerabilities per recognised severity. All four
// buckets are present; unknown severities are left out.
func SeverityStats(vulns []schemas.Vulnerability) map[schemas.Severity]int {
	stats := make(map[schemas.Severity]int, len(schemas.Severities))
	for _, s := range schemas.Severities {
		stats[s] = 0
	}
	for _, v := range vulns {
		if v.Severity.Valid() {
			stats[v.Severity]++
		}
	}
	return stats
}

// BuildTree arranges one report graph as report -> severity -> vulnerability
// -> instance. Severity nodes follow display order and only exist for
// recognised severities that occur.
func BuildTree(graph *schemas.ReportGraph) TreeNode {
	name := graph.SiteURL
	if name == "" {
		name = graph.FileName
	}
	root := TreeNode{
		ID:   fmt.Sprintf("report-%d", graph.ID),
		Name: name,
		Type: NodeReport,
	}

	groups := make(map[schemas.Severity]*TreeNode)
	for _, vg := range graph.Vulnerabilities {
		group, ok := groups[vg.Severity]
		if !ok {
			group = &TreeNode{
				ID:   fmt.Sprintf("severity-%d-%s", graph.ID, vg.Severity),
				Name: string(vg.Severity),
				Type: NodeSeverity,
			}
			groups[vg.Severity] = group
		}

		count := len(vg.Instances)
		node := TreeNode{
			ID:            fmt.Sprintf("vuln-%d", vg.ID),
			Name:          vg.Title,
			Type:          NodeVulnerability,
			InstanceCount: &count,
		}
		for _, inst := range vg.Instances {
			node.Children = append(node.Children, TreeNode{
				ID:     fmt.Sprintf("instance-%d", inst.ID),
				Name:   Truncate(inst.URL, MaxNodeNameRunes),
				Type:   NodeInstance,
				Status: inst.FixStatus,
			})
		}
		group.Children = append(group.Children, node)
	}

	order := make([]schemas.Severity, 0, len(groups))
	for sev := range groups {
		if sev.Valid() {
			order = append(order, sev)
		}
	}
	slices.SortFunc(order, func(a, b schemas.Severity) int {
		return cmp.Compare(a.Rank(), b.Rank())
	})
	for _, sev := range order {
		root.Children = append(root.Children, *groups[sev])
	}
	return root
}

// BuildForest builds one tree per report, newest import first.
func BuildForest(graphs []*schemas.ReportGraph) []TreeNode {
	ordered := slices.Clone(graphs)
	slices.SortStableFunc(ordered, func(a, b *schemas.ReportGraph) int {
		if c := b.ImportedAt.Compare(a.ImportedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	forest := make([]TreeNode, 0, len(ordered))
	for _, g := range ordered {
		forest = append(forest, BuildTree(g))
	}
	return forest
}

// Truncate cuts s to limit runes and marks the cut with "...".
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
