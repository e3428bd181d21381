// Package file loads the agent topology from a YAML document.
package file

import (
	"context"
	"fmt"
	"os"

	"github.com/aescanero/hubcycle/pkg/domain"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout. A file may describe several groups; a
// single-group file may also put group and agents at the top level.
type document struct {
	Group  string             `yaml:"group"`
	Agents []domain.AgentInfo `yaml:"agents"`
	Groups []domain.Topology  `yaml:"groups"`
}

// Source reads the topology from a YAML file
type Source struct {
	path  string
	group string
}

// New creates a file topology source. group selects one group of a
// multi-group file; empty accepts a file holding exactly one.
func New(path, group string) *Source {
	return &Source{path: path, group: group}
}

// Load reads and parses the file
func (s *Source) Load(_ context.Context) (*domain.Topology, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse topology file %s: %w", s.path, err)
	}

	groups := doc.Groups
	if len(doc.Agents) > 0 {
		groups = append([]domain.Topology{{Group: doc.Group, Agents: doc.Agents}}, groups...)
	}

	return selectGroup(groups, s.group)
}

func selectGroup(groups []domain.Topology, name string) (*domain.Topology, error) {
	if name == "" {
		if len(groups) != 1 {
			return nil, fmt.Errorf("topology file has %d groups; set TOPOLOGY_GROUP", len(groups))
		}
		return &groups[0], nil
	}
	for i := range groups {
		if groups[i].Group == name {
			return &groups[i], nil
		}
	}
	return nil, fmt.Errorf("group %s not found in topology file", name)
}
