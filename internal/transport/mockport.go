package transport

import "fmt"

// MockPort is an in-memory Port backed by a flat byte slice, standing
// in for the bitbang backdoor in tests and the bundled batch driver. It
// has no built-in timeouts, and BlockRead ignores its round-trip
// budget; the only accounting is the Trips counter, so tests stay
// deterministic.
type MockPort struct {
	mem []byte

	// Trips counts every individual device operation performed,
	// letting tests assert on transport traffic (or its absence) the
	// way the invariants in SPEC_FULL.md require.
	Trips int
}

// NewMockPort returns a MockPort with the given address space size.
func NewMockPort(size int) *MockPort {
	return &MockPort{mem: make([]byte, size)}
}

func (p *MockPort) bounds(address uint32, n int) error {
	if int(address)+n > len(p.mem) {
		return fmt.Errorf("transport: address %#08x+%d out of mock range (size %#x)", address, n, len(p.mem))
	}
	return nil
}

func (p *MockPort) Peek(address uint32) (uint32, error) {
	if err := p.bounds(address, 4); err != nil {
		return 0, err
	}
	p.Trips++
	return uint32(p.mem[address]) | uint32(p.mem[address+1])<<8 |
		uint32(p.mem[address+2])<<16 | uint32(p.mem[address+3])<<24, nil
}

func (p *MockPort) Poke(address uint32, value uint32) error {
	if err := p.bounds(address, 4); err != nil {
		return err
	}
	p.Trips++
	p.mem[address] = byte(value)
	p.mem[address+1] = byte(value >> 8)
	p.mem[address+2] = byte(value >> 16)
	p.mem[address+3] = byte(value >> 24)
	return nil
}

func (p *MockPort) PeekByte(address uint32) (uint8, error) {
	if err := p.bounds(address, 1); err != nil {
		return 0, err
	}
	p.Trips++
	return p.mem[address], nil
}

func (p *MockPort) PokeByte(address uint32, value uint8) error {
	if err := p.bounds(address, 1); err != nil {
		return err
	}
	p.Trips++
	p.mem[address] = value
	return nil
}

func (p *MockPort) FillWords(address uint32, pattern uint32, count int) error {
	if err := p.bounds(address, count*4); err != nil {
		return err
	}
	p.Trips++
	for i := 0; i < count; i++ {
		a := address + uint32(i*4)
		p.mem[a] = byte(pattern)
		p.mem[a+1] = byte(pattern >> 8)
		p.mem[a+2] = byte(pattern >> 16)
		p.mem[a+3] = byte(pattern >> 24)
	}
	return nil
}

func (p *MockPort) FillBytes(address uint32, pattern uint8, count int) error {
	if err := p.bounds(address, count); err != nil {
		return err
	}
	p.Trips++
	for i := 0; i < count; i++ {
		p.mem[address+uint32(i)] = pattern
	}
	return nil
}

func (p *MockPort) BlockRead(address uint32, length int, maxRoundTrips int) ([]byte, error) {
	if err := p.bounds(address, length); err != nil {
		return nil, err
	}
	p.Trips++
	out := make([]byte, length)
	copy(out, p.mem[address:int(address)+length])
	return out, nil
}

// Blx has no code to actually run; it returns r0 unchanged, which is
// enough for tests that only need an HLE call to round-trip.
func (p *MockPort) Blx(entry uint32, r0 uint32) (uint32, error) {
	p.Trips++
	return r0, nil
}

// WriteBytes seeds the mock device directly, bypassing trip counting,
// for test setup.
func (p *MockPort) WriteBytes(address uint32, data []byte) {
	copy(p.mem[address:], data)
}

// ReadBytes reads the mock device directly, bypassing trip counting,
// for test assertions.
func (p *MockPort) ReadBytes(address uint32, n int) []byte {
	out := make([]byte, n)
	copy(out, p.mem[address:int(address)+n])
	return out
}
