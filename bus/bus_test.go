package bus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yaritzaelena/ArquitecturaII-2-2025/bus"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/mesi"
	"github.com/yaritzaelena/ArquitecturaII-2-2025/shm"
)

// fakeCache is a hand-rolled test double for bus.Cache: no generated
// mock, just enough bookkeeping to assert what the bus called.
type fakeCache struct {
	pe int

	snoops    []mesi.Transaction
	responses []dataResponse
	resident  bool
}

type dataResponse struct {
	addr   uint64
	data   [mesi.LineSize]byte
	shared bool
}

func (c *fakeCache) OnSnoop(t mesi.Transaction) {
	c.snoops = append(c.snoops, t)
}

func (c *fakeCache) OnDataResponse(addr uint64, data [mesi.LineSize]byte, shared bool) {
	c.responses = append(c.responses, dataResponse{addr: addr, data: data, shared: shared})
}

func (c *fakeCache) HasLine(addr uint64) bool {
	return c.resident
}

var _ = Describe("Bus", func() {
	var (
		mem *shm.SharedMemory
		b   *bus.Bus
		c0  *fakeCache
		c1  *fakeCache
	)

	BeforeEach(func() {
		mem = shm.New()
		b = bus.New(mem)
		c0 = &fakeCache{pe: 0}
		c1 = &fakeCache{pe: 1}
		b.AttachCache(0, c0)
		b.AttachCache(1, c1)
	})

	Describe("BusRd", func() {
		It("snoops every cache but the source and delivers a response to the source", func() {
			b.Emit(mesi.Transaction{Type: mesi.BusRd, Addr: 0x100, SrcPE: 0})

			Expect(c0.snoops).To(BeEmpty())
			Expect(c1.snoops).To(HaveLen(1))
			Expect(c0.responses).To(HaveLen(1))
			Expect(c1.responses).To(BeEmpty())
		})

		It("reports shared=false when no peer holds the line", func() {
			c1.resident = false
			b.Emit(mesi.Transaction{Type: mesi.BusRd, Addr: 0x40, SrcPE: 0})
			Expect(c0.responses[0].shared).To(BeFalse())
		})

		It("reports shared=true when a peer still holds the line after snooping", func() {
			c1.resident = true
			b.Emit(mesi.Transaction{Type: mesi.BusRd, Addr: 0x40, SrcPE: 0})
			Expect(c0.responses[0].shared).To(BeTrue())
		})

		It("serves the response from shared memory when no staging slot exists", func() {
			buf := make([]byte, mesi.LineSize)
			for i := range buf {
				buf[i] = 0x42
			}
			mem.Write(0x60, buf, mesi.LineSize, -1)

			b.Emit(mesi.Transaction{Type: mesi.BusRd, Addr: 0x60, SrcPE: 0})

			Expect(c0.responses[0].data[:]).To(Equal(buf))
		})
	})

	Describe("BusRdX", func() {
		It("always answers with shared=false", func() {
			c1.resident = true
			b.Emit(mesi.Transaction{Type: mesi.BusRdX, Addr: 0x80, SrcPE: 0})
			Expect(c0.responses[0].shared).To(BeFalse())
			Expect(c1.snoops).To(HaveLen(1))
		})
	})

	Describe("Inv and BusUpgr", func() {
		It("snoop every peer and deliver no response", func() {
			b.Emit(mesi.Transaction{Type: mesi.BusUpgr, Addr: 0xC0, SrcPE: 1})
			Expect(c0.snoops).To(HaveLen(1))
			Expect(c0.responses).To(BeEmpty())
			Expect(c1.responses).To(BeEmpty())
		})
	})

	Describe("Flush", func() {
		It("writes through to shared memory and stages the payload", func() {
			var payload [mesi.LineSize]byte
			for i := range payload {
				payload[i] = byte(i)
			}
			b.Emit(mesi.Transaction{Type: mesi.Flush, Addr: 0xE0, Payload: payload, SrcPE: 0})

			status, out := mem.Read(0xE0, mesi.LineSize, -1)
			Expect(status).To(Equal(shm.OK))
			Expect(out).To(Equal(payload[:]))
		})

		It("is consumed by the very next BusRd for the same line base", func() {
			var payload [mesi.LineSize]byte
			for i := range payload {
				payload[i] = 0xAB
			}
			b.Emit(mesi.Transaction{Type: mesi.Flush, Addr: 0x120, Payload: payload, SrcPE: 1})

			// Overwrite SHM directly, bypassing the bus, to prove the
			// BusRd below is served from the staging slot rather than
			// re-reading memory.
			zero := make([]byte, mesi.LineSize)
			mem.Write(0x120, zero, mesi.LineSize, -1)

			b.Emit(mesi.Transaction{Type: mesi.BusRd, Addr: 0x120, SrcPE: 0})
			Expect(c0.responses[0].data[:]).To(Equal(payload[:]))
		})
	})
})
