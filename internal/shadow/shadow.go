// Package shadow implements the sparse local cache the memory proxy
// consults before ever touching the remote device: once a region has
// been pulled in with Fill, every later access to it is served locally
// and writes to it never reach hardware again.
package shadow

const pageBits = 12
const pageSize = 1 << pageBits // 4 KiB
const pageMask = pageSize - 1

// page holds one 4 KiB window of shadowed memory plus a presence flag
// per byte, mirroring the byte-per-address flag buffer the reference
// debugger keeps alongside its data buffer.
type page struct {
	present [pageSize]bool
	data    [pageSize]byte
}

// Memory is a sparse byte-addressable cache over the full 32-bit
// address space. Pages are allocated lazily so an essentially empty
// cache costs nothing.
type Memory struct {
	pages map[uint32]*page
}

// New returns an empty shadow cache.
func New() *Memory {
	return &Memory{pages: make(map[uint32]*page)}
}

func (m *Memory) pageFor(address uint32, create bool) *page {
	key := address >> pageBits
	p, ok := m.pages[key]
	if !ok {
		if !create {
			return nil
		}
		p = &page{}
		m.pages[key] = p
	}
	return p
}

// Fill marks every byte in [address, address+len(data)) present and
// copies data into the cache, the way fetching a block from the remote
// device permanently promotes it into local RAM.
func (m *Memory) Fill(address uint32, data []byte) {
	for i, b := range data {
		a := address + uint32(i)
		p := m.pageFor(a, true)
		off := a & pageMask
		p.present[off] = true
		p.data[off] = b
	}
}

// MarkPresent marks [begin, end] inclusive present without changing any
// backing bytes, matching local_ram's role of recording a freshly
// fetched region's extent before the bytes themselves are written.
func (m *Memory) MarkPresent(begin, end uint32) {
	for a := begin; a <= end; a++ {
		p := m.pageFor(a, true)
		p.present[a&pageMask] = true
		if a == end {
			break // guards against wraparound when end == 0xffffffff
		}
	}
}

// Available reports how many consecutive bytes starting at address are
// present, capped at limit.
func (m *Memory) Available(address uint32, limit int) int {
	count := 0
	for count < limit {
		a := address + uint32(count)
		p := m.pageFor(a, false)
		if p == nil || !p.present[a&pageMask] {
			break
		}
		count++
	}
	return count
}

// HasRun reports whether n consecutive bytes starting at address are
// all present, the check load/store use before trusting the cache for
// a multi-byte access.
func (m *Memory) HasRun(address uint32, n int) bool {
	return m.Available(address, n) >= n
}

// ReadByte returns the cached byte at address. The caller must have
// already confirmed presence with HasRun/Available.
func (m *Memory) ReadByte(address uint32) byte {
	p := m.pageFor(address, false)
	if p == nil {
		return 0
	}
	return p.data[address&pageMask]
}

// WriteByte stores a byte and marks its address present.
func (m *Memory) WriteByte(address uint32, value byte) {
	p := m.pageFor(address, true)
	p.present[address&pageMask] = true
	p.data[address&pageMask] = value
}

// ReadWord reads 4 little-endian bytes starting at address. Caller must
// have confirmed presence first.
func (m *Memory) ReadWord(address uint32) uint32 {
	return uint32(m.ReadByte(address)) |
		uint32(m.ReadByte(address+1))<<8 |
		uint32(m.ReadByte(address+2))<<16 |
		uint32(m.ReadByte(address+3))<<24
}

// WriteWord writes 4 little-endian bytes starting at address.
func (m *Memory) WriteWord(address uint32, value uint32) {
	m.WriteByte(address, byte(value))
	m.WriteByte(address+1, byte(value>>8))
	m.WriteByte(address+2, byte(value>>16))
	m.WriteByte(address+3, byte(value>>24))
}

// ReadHalf reads 2 little-endian bytes starting at address.
func (m *Memory) ReadHalf(address uint32) uint16 {
	return uint16(m.ReadByte(address)) | uint16(m.ReadByte(address+1))<<8
}

// WriteHalf writes 2 little-endian bytes starting at address.
func (m *Memory) WriteHalf(address uint32, value uint16) {
	m.WriteByte(address, byte(value))
	m.WriteByte(address+1, byte(value>>8))
}

// PageSize is the granularity Snapshot/Restore exchange pages at.
const PageSize = pageSize

// PageSnapshot is one page's presence flags and backing bytes, as
// returned by Snapshot and consumed by Restore.
type PageSnapshot struct {
	Present [PageSize]bool
	Data    [PageSize]byte
}

// Snapshot returns every allocated page keyed by page number (address
// >> 12), for state persistence. Callers must not mutate the result.
func (m *Memory) Snapshot() map[uint32]PageSnapshot {
	out := make(map[uint32]PageSnapshot, len(m.pages))
	for k, p := range m.pages {
		out[k] = PageSnapshot{Present: p.present, Data: p.data}
	}
	return out
}

// Restore replaces the cache's contents with a previously captured
// snapshot.
func (m *Memory) Restore(pages map[uint32]PageSnapshot) {
	m.pages = make(map[uint32]*page, len(pages))
	for k, snap := range pages {
		m.pages[k] = &page{present: snap.Present, data: snap.Data}
	}
}
