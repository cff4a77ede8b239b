package plan

import (
	"fmt"

	"github.com/pkg/errors"
)

// Communicator is the view a participant has of its group: its own rank,
// the group size and the translation from group ranks to global (wire) ranks.
type Communicator interface {
	ID() int
	Rank() int
	Size() int
	GlobalRank(commRank int) int
}

type world struct {
	rank int
	size int
}

// World returns the communicator over all size global ranks, seen from rank.
func World(rank, size int) Communicator {
	return world{rank: rank, size: size}
}

func (w world) ID() int                     { return 0 }
func (w world) Rank() int                   { return w.rank }
func (w world) Size() int                   { return w.size }
func (w world) GlobalRank(commRank int) int { return commRank }

type subCommunicator struct {
	id      int
	rank    int
	globals []int
}

// SubCommunicator returns a communicator over the given global ranks.
// self is the global rank of the caller, which must be in globals.
func SubCommunicator(id int, globals []int, self int) (Communicator, error) {
	for i, g := range globals {
		if g == self {
			return &subCommunicator{id: id, rank: i, globals: globals}, nil
		}
	}
	return nil, errors.Errorf("global rank %d is not a member of communicator %d", self, id)
}

func (c *subCommunicator) ID() int                     { return c.id }
func (c *subCommunicator) Rank() int                   { return c.rank }
func (c *subCommunicator) Size() int                   { return len(c.globals) }
func (c *subCommunicator) GlobalRank(commRank int) int { return c.globals[commRank] }

// RankString formats a communicator rank as global=comm for logs.
func RankString(c Communicator, commRank int) string {
	return fmt.Sprintf("%d=%d", c.GlobalRank(commRank), commRank)
}
