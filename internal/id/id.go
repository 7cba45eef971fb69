// Package id mints identifiers for triage records.
package id

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// Generator hands out uuids for issues and comments and time-ordered
// snowflake ids for activity entries, so an issue's log sorts by id.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a Generator for the given snowflake node (0-1023).
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

func (g *Generator) IssueID() string {
	return uuid.NewString()
}

func (g *Generator) CommentID() string {
	return uuid.NewString()
}

func (g *Generator) ActivityID() string {
	return g.node.Generate().String()
}
