package monitoring

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/bus"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/mesi"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/shm"
)

var _ = Describe("Monitor", func() {
	var (
		m   *Monitor
		mem *shm.SharedMemory
		b   *bus.Bus
	)

	BeforeEach(func() {
		m = NewMonitor()
		mem = shm.New()
		b = bus.New(mem)
	})

	It("registers caches by pe id", func() {
		c0 := mesi.NewCache(0, b)
		m.RegisterCache(0, c0)

		Expect(m.caches).To(HaveLen(1))
		Expect(m.caches[0]).To(Equal(CacheSnapshotter(c0)))
	})

	It("registers shared memory", func() {
		m.RegisterSharedMemory(mem)
		Expect(m.shm).To(BeIdenticalTo(mem))
	})

	It("falls back to a random port for reserved port numbers", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))
	})

	It("keeps a valid high port number", func() {
		m.WithPortNumber(9090)
		Expect(m.portNumber).To(Equal(9090))
	})
})
