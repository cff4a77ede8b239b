package main

import (
	"flag"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lsds/dagcoll/srcs/go/base"
	"github.com/lsds/dagcoll/srcs/go/collective"
	"github.com/lsds/dagcoll/srcs/go/config"
	"github.com/lsds/dagcoll/srcs/go/log"
	"github.com/lsds/dagcoll/srcs/go/plan"
	"github.com/lsds/dagcoll/srcs/go/rchannel/simnet"
	"github.com/lsds/dagcoll/srcs/go/slicer"
	"github.com/lsds/dagcoll/srcs/go/utils"
	"github.com/lsds/dagcoll/srcs/go/utils/xterm"
)

var (
	np          = flag.Int("np", 5, "number of ranks")
	root        = flag.Int("root", 0, "root rank of a reduce")
	allreduce   = flag.Bool("allreduce", false, "run an allreduce instead of a reduce")
	count       = flag.Int("count", 1, "number of elements")
	eagerCutoff = flag.String("eager-cutoff", humanize.Bytes(config.EagerCutoff), "messages below this size are sent eagerly")
	useGet      = flag.Bool("use-get", config.UseGetProtocol, "use the get protocol for large messages")
	seed        = flag.Int64("seed", 0, "shuffle deliveries with this seed, 0 keeps them in order")
	failRank    = flag.Int("fail-rank", -1, "fail the messages sent by this rank")
	failRound   = flag.Int("fail-round", -1, "in this round")
	strided     = flag.Bool("strided", false, "reduce every other element of a buffer twice as large")
	loopback    = flag.Bool("loopback", config.LoopbackColocated, "exchange messages between roles of the same rank")
	debug       = flag.Bool("v", false, "log every action")
	maxShow     = flag.Int("show", 8, "number of elements shown per rank")

	dtype = base.I32
	op    = base.SUM
)

func init() {
	flag.Var(&dtype, "dtype", "data type")
	flag.Var(&op, "op", "reduce operation: sum, min, max, prod")
}

func progName() string {
	if len(os.Args) > 0 {
		return path.Base(os.Args[0])
	}
	return ""
}

func main() {
	flag.Parse()
	if *debug {
		log.SetLevel(log.Debug)
		utils.LogArgs()
		utils.LogDagcollEnv()
	}
	t0 := time.Now()
	defer func(prog string) { log.Infof("%s took %s", prog, time.Since(t0)) }(progName())
	if err := simulate(); err != nil {
		utils.ExitErr(err)
	}
}

func newSlicer() (slicer.Slicer, int, error) {
	if !*strided {
		return nil, *count, nil
	}
	fn, err := base.NewReduceFunc(op, dtype)
	if err != nil {
		return nil, 0, err
	}
	sl, err := slicer.NewStrided(dtype.Size(), 2*dtype.Size(), fn)
	if err != nil {
		return nil, 0, err
	}
	return sl, 2 * *count, nil
}

func simulate() error {
	cutoff, err := humanize.ParseBytes(*eagerCutoff)
	if err != nil {
		return err
	}
	cfg := collective.Config{EagerCutoff: cutoff, UseGetProtocol: *useGet, LoopbackColocated: *loopback}
	sl, logical, err := newSlicer()
	if err != nil {
		return err
	}
	net := simnet.New(*np, *seed)
	if *failRank >= 0 {
		net.InjectFault(simnet.Fault{Src: *failRank, Round: *failRound})
	}
	results := make([]*collective.Result, *np)
	var actors []*collective.ReduceActor
	for r := 0; r < *np; r++ {
		send := base.NewVector(logical, dtype)
		for i := 0; i < logical; i++ {
			send.SetFloat64At(i, float64(r+i+1))
		}
		w := base.Workspace{
			SendBuf: &base.Vector{Data: send.Data, Count: *count, Type: dtype},
			OP:      op,
			Name:    fmt.Sprintf("rank-%d", r),
		}
		if *allreduce || r == *root {
			w.RecvBuf = &base.Vector{Data: make([]byte, len(send.Data)), Count: *count, Type: dtype}
		}
		rank := r
		a, err := collective.NewEngine(cfg, net).Issue(collective.ReduceSpec{
			Comm:      plan.World(r, *np),
			Root:      *root,
			AllReduce: *allreduce,
			Workspace: w,
			Slicer:    sl,
			Callback:  func(res collective.Result) { results[rank] = &res },
		})
		if err != nil {
			return err
		}
		actors = append(actors, a)
	}
	took, runErr := utils.Measure(net.Run)
	log.Infof("dag digest of rank 0: %s (%s)", actors[0].Digest(), utils.Pluralize(len(actors[0].Actions()), "action", "actions"))
	if log.DebugEnabled() {
		log.Debugf("dag of rank 0: %s", actors[0].Graph().DebugString())
	}
	var errs []error
	for r, res := range results {
		switch {
		case res == nil:
			fmt.Printf("rank %d: %s\n%s", r, xterm.Warn.S("stalled"), actors[r].DeadlockReport())
		case res.Err != nil:
			fmt.Printf("rank %d: %s %v\n", r, xterm.Warn.S("failed"), res.Err)
			errs = append(errs, res.Err)
		case res.Buffer != nil:
			fmt.Printf("rank %d: %s %s\n", r, xterm.Good.S("ok"), show(res.Buffer))
		default:
			fmt.Printf("rank %d: %s\n", r, xterm.Good.S("ok"))
		}
	}
	log.Infof("%s after %d steps in %s", net.Counters().Summary(), net.Steps(), took)
	if runErr != nil {
		log.Debugf("%v", runErr)
	}
	return utils.MergeErrors(errs, "simulation")
}

func show(v *base.Vector) string {
	stride := 1
	if *strided {
		stride = 2
	}
	var xs []string
	for i := 0; i < v.Count && i < *maxShow; i++ {
		xs = append(xs, fmt.Sprintf("%g", v.Float64At(i*stride)))
	}
	if v.Count > *maxShow {
		xs = append(xs, "...")
	}
	return "[" + strings.Join(xs, " ") + "]"
}
