// Package monitoring turns a running simulation into a small read-only
// HTTP server: cache and memory state for the stepper-less observer, plus
// process resource and CPU-profile endpoints borrowed wholesale from the
// ambient ops stack. There is no pause/continue/tick surface here, since
// the simulator has no tick engine to control.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling handlers on the default mux; unused directly but
	// registers net/http/pprof's init-time routes.
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/mesi"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/shm"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/tracing"
)

// CacheSnapshotter is the capability a Monitor needs from a cache: a
// point-in-time copy of its counters and transition log. mesi.Cache
// satisfies this structurally.
type CacheSnapshotter interface {
	Snapshot() mesi.Metrics
}

// Monitor serves a JSON view of the simulator's caches and shared memory,
// plus process resource and CPU-profile endpoints, over HTTP.
type Monitor struct {
	mu         sync.Mutex
	caches     map[int]CacheSnapshotter
	shm        *shm.SharedMemory
	txCounter  *tracing.TransactionCounter
	portNumber int
	startTime  time.Time

	listener net.Listener
}

// NewMonitor creates an empty Monitor with no caches or memory attached.
func NewMonitor() *Monitor {
	return &Monitor{
		caches:    make(map[int]CacheSnapshotter),
		startTime: time.Now(),
	}
}

// WithPortNumber sets the TCP port the monitor listens on. Ports below
// 1000 are rejected in favor of a random ephemeral port, matching the
// convention that low ports are reserved for system services.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"port %d is not allowed for the monitoring server, using a random port instead\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterCache attaches a PE's cache so its metrics are reachable at
// /api/cache/{pe}.
func (m *Monitor) RegisterCache(pe int, c CacheSnapshotter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.caches[pe] = c
}

// RegisterSharedMemory attaches the backing memory so its access counts
// are reachable at /api/memory.
func (m *Monitor) RegisterSharedMemory(mem *shm.SharedMemory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shm = mem
}

// RegisterTransactionCounter attaches the bus-wide transaction tally so
// it is reachable at /api/transactions.
func (m *Monitor) RegisterTransactionCounter(c *tracing.TransactionCounter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txCounter = c
}

// StartServer starts the HTTP server in the background and returns the
// port it bound to.
func (m *Monitor) StartServer() int {
	r := mux.NewRouter()

	r.HandleFunc("/api/progress", m.listProgress)
	r.HandleFunc("/api/cache/{pe}", m.listCacheDetails)
	r.HandleFunc("/api/memory", m.listMemory)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/transactions", m.listTransactions)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	actualAddr := ":0"
	if m.portNumber >= 1000 {
		actualAddr = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualAddr)
	dieOnErr(err)
	m.listener = listener

	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stderr, "monitoring the run at http://localhost:%d\n", port)

	go func() {
		err := http.Serve(listener, r)
		if err != nil && err != http.ErrServerClosed {
			log.Println("monitoring server stopped:", err)
		}
	}()

	return port
}

// Stop closes the listener, if one is open.
func (m *Monitor) Stop() error {
	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}

type progressRsp struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	PECount       int     `json:"pe_count"`
}

func (m *Monitor) listProgress(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	rsp := progressRsp{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		PECount:       len(m.caches),
	}
	m.mu.Unlock()

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listCacheDetails(w http.ResponseWriter, r *http.Request) {
	peStr := mux.Vars(r)["pe"]
	pe, err := strconv.Atoi(peStr)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "invalid pe id %q", peStr)
		return
	}

	m.mu.Lock()
	c, ok := m.caches[pe]
	m.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "no cache registered for pe %d", pe)
		return
	}

	snap := c.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snap)
	serializer.SetMaxDepth(2)
	dieOnErr(serializer.Serialize(w))
}

func (m *Monitor) listMemory(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	mem := m.shm
	m.mu.Unlock()

	if mem == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "no shared memory registered")
		return
	}

	fmt.Fprint(w, mem.DumpState())
}

func (m *Monitor) listTransactions(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	counter := m.txCounter
	m.mu.Unlock()

	if counter == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "no transaction counter registered")
		return
	}

	bytes, err := json.Marshal(counter.Snapshot())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
