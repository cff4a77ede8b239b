package collective

import (
	"github.com/lsds/dagcoll/srcs/go/config"
	"github.com/lsds/dagcoll/srcs/go/plan"
)

// Config holds the per-engine protocol settings. Every participant of a
// collective must use the same values, or rendezvous transfers deadlock.
type Config struct {
	EagerCutoff       uint64
	UseGetProtocol    bool
	LoopbackColocated bool
}

// DefaultConfig returns the configuration read from the environment.
func DefaultConfig() Config {
	return Config{
		EagerCutoff:       config.EagerCutoff,
		UseGetProtocol:    config.UseGetProtocol,
		LoopbackColocated: config.LoopbackColocated,
	}
}

// CollectiveActor is the identity of one collective on one participant.
type CollectiveActor struct {
	tag      int
	comm     plan.Communicator
	me       int
	nproc    int
	complete bool
	err      error
}

func newCollectiveActor(comm plan.Communicator, tag int) CollectiveActor {
	return CollectiveActor{
		tag:   tag,
		comm:  comm,
		me:    comm.Rank(),
		nproc: comm.Size(),
	}
}

func (c *CollectiveActor) Tag() int                       { return c.tag }
func (c *CollectiveActor) Comm() plan.Communicator        { return c.comm }
func (c *CollectiveActor) Rank() int                      { return c.me }
func (c *CollectiveActor) Nproc() int                     { return c.nproc }
func (c *CollectiveActor) Complete() bool                 { return c.complete }
func (c *CollectiveActor) Err() error                     { return c.err }
func (c *CollectiveActor) rankStr() string                { return plan.RankString(c.comm, c.me) }
func (c *CollectiveActor) partnerStr(commRank int) string { return plan.RankString(c.comm, commRank) }
func (c *CollectiveActor) globalRank(commRank int) int    { return c.comm.GlobalRank(commRank) }
