package collective

import (
	"sort"
	"sync"

	"github.com/lsds/dagcoll/srcs/go/base"
	"github.com/lsds/dagcoll/srcs/go/log"
	"github.com/lsds/dagcoll/srcs/go/plan"
	"github.com/lsds/dagcoll/srcs/go/slicer"
	"github.com/pkg/errors"
)

type collectiveKey struct {
	comm int
	tag  int
}

// Engine issues collectives of one participant and keeps track of the
// outstanding ones. Two outstanding collectives never share a
// (communicator, tag) pair.
type Engine struct {
	cfg       Config
	transport Transport

	sync.Mutex
	outstanding map[collectiveKey]*ReduceActor
}

func NewEngine(cfg Config, t Transport) *Engine {
	return &Engine{
		cfg:         cfg,
		transport:   t,
		outstanding: make(map[collectiveKey]*ReduceActor),
	}
}

// ReduceSpec describes one reduce or allreduce issued through an Engine.
type ReduceSpec struct {
	Comm      plan.Communicator
	Tag       int
	Root      int
	AllReduce bool
	Workspace base.Workspace
	Slicer    slicer.Slicer // nil selects a flat slicer for Workspace.OP
	Callback  func(Result)
}

// Reduce starts a reduce of w to root. The callback runs once the result is in w.RecvBuf on root.
func (e *Engine) Reduce(comm plan.Communicator, tag, root int, w base.Workspace, callback func(Result)) (*ReduceActor, error) {
	return e.Issue(ReduceSpec{Comm: comm, Tag: tag, Root: root, Workspace: w, Callback: callback})
}

// AllReduce starts an allreduce of w. The callback runs once the result is in w.RecvBuf.
func (e *Engine) AllReduce(comm plan.Communicator, tag int, w base.Workspace, callback func(Result)) (*ReduceActor, error) {
	return e.Issue(ReduceSpec{Comm: comm, Tag: tag, AllReduce: true, Workspace: w, Callback: callback})
}

// Issue builds and starts the collective described by s.
func (e *Engine) Issue(s ReduceSpec) (*ReduceActor, error) {
	key := collectiveKey{comm: s.Comm.ID(), tag: s.Tag}
	callback := func(res Result) {
		e.Lock()
		delete(e.outstanding, key)
		e.Unlock()
		if s.Callback != nil {
			s.Callback(res)
		}
	}
	r, err := NewReduceActor(e.cfg, e.transport, s.Comm, s.Tag, s.Root, s.AllReduce, s.Workspace, s.Slicer, callback)
	if err != nil {
		return nil, err
	}
	if err := r.BuildGraph(); err != nil {
		return nil, errors.Wrapf(err, "building %s tag=%d", r.name(), s.Tag)
	}
	if err := e.register(key, r); err != nil {
		return nil, err
	}
	if err := r.Start(); err != nil {
		if !r.Complete() {
			e.unregister(key)
		}
		return r, err
	}
	return r, nil
}

func (e *Engine) register(key collectiveKey, r *ReduceActor) error {
	e.Lock()
	defer e.Unlock()
	if _, ok := e.outstanding[key]; ok {
		return errors.Errorf("collective with tag %d already outstanding on communicator %d", key.tag, key.comm)
	}
	e.outstanding[key] = r
	log.Debugf("Rank %s registered %s tag=%d, %d outstanding", r.rankStr(), r.name(), key.tag, len(e.outstanding))
	return nil
}

func (e *Engine) unregister(key collectiveKey) {
	e.Lock()
	defer e.Unlock()
	delete(e.outstanding, key)
}

// Outstanding returns the number of collectives issued and not yet finished.
func (e *Engine) Outstanding() int {
	e.Lock()
	defer e.Unlock()
	return len(e.outstanding)
}

// DeadlockReport describes the unfinished actions of every outstanding collective.
func (e *Engine) DeadlockReport() string {
	e.Lock()
	defer e.Unlock()
	keys := make([]collectiveKey, 0, len(e.outstanding))
	for k := range e.outstanding {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].comm != keys[j].comm {
			return keys[i].comm < keys[j].comm
		}
		return keys[i].tag < keys[j].tag
	})
	var report string
	for _, k := range keys {
		report += e.outstanding[k].DeadlockReport()
	}
	return report
}
