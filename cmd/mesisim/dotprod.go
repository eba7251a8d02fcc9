package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/bus"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/config"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/mesi"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/pe"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/port"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/shm"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/tracing"
)

const numPEs = 4

// layout is the memory map for the dot-product benchmark: two
// N-element double vectors and four partial-sum lines, each on its own
// 32-byte line so the four PEs never suffer false sharing on their
// accumulator writes.
type layout struct {
	n                   int
	baseA, baseB, baseP uint64
	partials            [numPEs]uint64
	chunk               uint64
}

func newLayout(n int) layout {
	l := layout{n: n}
	l.baseA = 0
	l.baseB = uint64(n) * 8
	l.baseP = shm.Capacity - numPEs*mesi.LineSize
	for k := 0; k < numPEs; k++ {
		l.partials[k] = l.baseP + uint64(k)*mesi.LineSize
	}
	l.chunk = uint64(n) / numPEs
	return l
}

func writeDouble(mem *shm.SharedMemory, addr uint64, v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	mem.Write(addr, buf[:], 8, -1)
}

func initMemory(mem *shm.SharedMemory, l layout) {
	for i := 0; i < l.n; i++ {
		writeDouble(mem, l.baseA+uint64(i)*8, float64(i+1))
		writeDouble(mem, l.baseB+uint64(i)*8, 0.5*float64(i+1))
	}
	for _, addr := range l.partials {
		writeDouble(mem, addr, 0.0)
	}
}

// simResult is the numeric outcome of one dot-product run, plus the
// wired components a caller might want metrics from afterwards.
type simResult struct {
	partials [numPEs]float64
	result   float64
	expected float64
	caches   []*mesi.Cache
	ports    []*port.Port
	segments []string
}

// simulate wires shared memory, a bus, four caches/ports/PEs, and runs
// the parallel dot-product benchmark for the given N.
//
// hooks are attached to the bus before any PE runs — this is how the
// driver wires the interactive stepper and the aggregate transaction
// counter, and how the stepper neutrality test attaches a disabled
// stepper without duplicating the wiring. txLog, if non-nil, is
// attached the same way. wired, if non-nil, is called once the shared
// memory and caches exist but before any PE has run, so a caller can
// attach stepper dumpers or register a live monitor against the real
// components for this run.
func simulate(n int, hooks []tracing.Hook, txLog *tracing.SQLiteTxLog, wired func(mem *shm.SharedMemory, caches []*mesi.Cache)) simResult {
	l := newLayout(n)

	mem := shm.New()
	initMemory(mem, l)

	b := bus.New(mem)
	if txLog != nil {
		b.AttachTxLog(txLog)
	}
	for _, h := range hooks {
		b.AcceptHook(h)
	}

	caches := make([]*mesi.Cache, numPEs)
	ports := make([]*port.Port, numPEs)
	pes := make([]*pe.PE, numPEs)

	for k := 0; k < numPEs; k++ {
		c := mesi.NewCache(k, b)
		caches[k] = c
		b.AttachCache(k, c)
		ports[k] = port.New(c)
		pes[k] = pe.New(k, ports[k])
	}

	if wired != nil {
		wired(mem, caches)
	}

	prog := pe.DotProductProgram()
	segments := make([]string, numPEs)
	for k := 0; k < numPEs; k++ {
		pes[k].LoadProgram(prog)
		a := l.baseA + uint64(k)*l.chunk*8
		bAddr := l.baseB + uint64(k)*l.chunk*8
		pes[k].SetSegment(a, bAddr, l.partials[k], l.chunk)
		segments[k] = fmt.Sprintf("seg%d: A=%d B=%d out=%d len=%d", k, a, bAddr, l.partials[k], l.chunk)
	}

	var wg sync.WaitGroup
	for k := 0; k < numPEs; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			pes[k].Run(0)
		}(k)
	}
	wg.Wait()

	var partials [numPEs]float64
	for k := 0; k < numPEs; k++ {
		bits := ports[0].Load64(l.partials[k])
		partials[k] = math.Float64frombits(bits)
	}

	result := 0.0
	for _, p := range partials {
		result += p
	}

	nf := float64(n)
	expected := 0.5 * (nf * (nf + 1) * (2*nf + 1) / 6.0)

	return simResult{
		partials: partials,
		result:   result,
		expected: expected,
		caches:   caches,
		ports:    ports,
		segments: segments,
	}
}

// runSim is the cobra RunE handler: it resolves flags into a Config,
// runs the benchmark (wiring in a stepper and/or monitor when
// requested), prints the report, exports the CSV, and sets the process
// exit code.
func runSim(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()

	modeFlag, _ := cmd.Flags().GetString("mode")
	n, _ := cmd.Flags().GetInt("N")
	noStep, _ := cmd.Flags().GetBool("nostep")
	monitorAddr, _ := cmd.Flags().GetString("monitor-addr")
	traceDB, _ := cmd.Flags().GetString("trace-db")
	csvOut, _ := cmd.Flags().GetString("csv-out")

	cfg, err := config.New(modeFlag, n, noStep, monitorAddr, traceDB, csvOut)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(2)
	}

	var txLog *tracing.SQLiteTxLog
	if cfg.TraceDBPath != "" {
		txLog, err = tracing.NewSQLiteTxLog(cfg.TraceDBPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "trace db:", err)
			atexit.Exit(2)
		}
		defer txLog.Close()
	}

	var rows []tracing.CacheMetrics
	exporter := tracing.NewCSVExporter(cfg.CSVOutputPath)
	exporter.WriteOnExit(func() []tracing.CacheMetrics { return rows })

	var stepper *tracing.Stepper
	txCounter := tracing.NewTransactionCounter()
	hooks := []tracing.Hook{txCounter}
	if cfg.Mode == config.ModeDemo {
		stepper = tracing.NewStepper(os.Stdin, os.Stdout)
		stepper.SetEnabled(!cfg.NoStep)
		hooks = append(hooks, stepper)
	}

	monitor := newMonitorIfRequested(cfg)
	if monitor != nil {
		monitor.RegisterTransactionCounter(txCounter)
		defer monitor.Stop()
	}

	res := simulate(cfg.N, hooks, txLog, func(mem *shm.SharedMemory, caches []*mesi.Cache) {
		if stepper != nil {
			stepper.Attach(mem)
			for _, c := range caches {
				stepper.Attach(c)
			}
		}
		if monitor != nil {
			monitor.RegisterSharedMemory(mem)
			for k, c := range caches {
				monitor.RegisterCache(k, c)
			}
		}
	})

	for _, seg := range res.segments {
		fmt.Println(seg)
	}
	fmt.Printf("partials = %v\n", res.partials)
	fmt.Printf("bus transactions = %v\n", txCounter.Snapshot())
	fmt.Printf("result   = %v\n", res.result)
	fmt.Printf("expected = %v\n", res.expected)

	rows = make([]tracing.CacheMetrics, numPEs)
	for k, c := range res.caches {
		snap := c.Snapshot()
		loads, stores := res.ports[k].Counts()
		fmt.Printf("PE%d stats: loads=%d stores=%d misses=%d inv=%d rd=%d rdx=%d upg=%d flush=%d port(l=%d,s=%d)\n",
			k, snap.Loads, snap.Stores, snap.CacheMisses, snap.Invalidations,
			snap.BusRd, snap.BusRdX, snap.BusUpgr, snap.Flush, loads, stores)
		rows[k] = tracing.CacheMetrics{
			PE:                k,
			Loads:             snap.Loads,
			Stores:            snap.Stores,
			RWAccesses:        snap.RWAccesses,
			CacheMisses:       snap.CacheMisses,
			Invalidations:     snap.Invalidations,
			BusRd:             snap.BusRd,
			BusRdX:            snap.BusRdX,
			BusUpgr:           snap.BusUpgr,
			Flush:             snap.Flush,
			JoinedTransitions: snap.JoinedTransitions(),
		}
	}

	if err := exporter.Write(rows); err != nil {
		fmt.Fprintln(os.Stderr, "csv export:", err)
	}

	tolerance := 1e-9 * math.Max(1.0, math.Abs(res.expected))
	if math.Abs(res.result-res.expected) < tolerance {
		fmt.Println("PASS dotprod with MESI")
		return nil
	}

	fmt.Println("FAIL dotprod with MESI")
	atexit.Exit(1)
	return nil
}
