// Package memory implements the bandwidth-aware proxy that sits
// between the simulator's load/store/fetch calls and a slow remote
// debug transport: a local shadow cache for RAM and prefetched flash,
// an instruction cache fed by the disassembler, a run-length write
// consolidator, and the skip/patch/hook/HLE tables that let calling
// code splice behavior into the instruction stream.
package memory

import (
	"fmt"
	"strings"

	"github.com/coastermelt/armsim/internal/cpu"
	"github.com/coastermelt/armsim/internal/instr"
	"github.com/coastermelt/armsim/internal/log"
	"github.com/coastermelt/armsim/internal/rle"
	"github.com/coastermelt/armsim/internal/shadow"
	"github.com/coastermelt/armsim/internal/trace"
	"github.com/coastermelt/armsim/internal/transport"
)

// Options configures a Proxy's target-specific behavior; callers
// typically build this from internal/config.
type Options struct {
	Skips                map[uint32]string
	FlashBoundary        uint32
	FlashPrefetchChunk   int
	FlashMinAvailable    int
	AddressSanityCeiling uint32
}

// DefaultOptions matches the reference firmware's own defaults, for
// callers that don't need a config file.
func DefaultOptions() Options {
	return Options{
		Skips:                map[uint32]string{},
		FlashBoundary:        0x00200000,
		FlashPrefetchChunk:   0x100,
		FlashMinAvailable:    8,
		AddressSanityCeiling: 0x05000000,
	}
}

// Proxy implements cpu.Memory against a real transport.Port, consulting
// the local shadow cache before ever reaching the device, and
// consolidating consecutive same-pattern stores into bulk fills.
type Proxy struct {
	device       transport.Port
	disassembler transport.Disassembler
	assembler    transport.Assembler
	opts         Options

	shadow *shadow.Memory
	rle    rle.Encoder

	instructions map[uint32]*instr.Record

	skipStores map[uint32]string
	patchNotes map[uint32]string
	patchHLE   map[uint32]string
	hleEntries map[string]uint32
	hleBodies  map[string]string // handler name -> compiled-library body, pending InstallHLE
	hooks      map[uint32]cpu.Hook

	logger   *log.Logger
	enricher trace.Enricher
	onEvent  func(*trace.Event)
}

// NewProxy wires a transport.Port and transport.Disassembler into a
// fresh Proxy, using opts for skip addresses and flash geometry.
func NewProxy(device transport.Port, disassembler transport.Disassembler, opts Options) *Proxy {
	skips := make(map[uint32]string, len(opts.Skips))
	for addr, reason := range opts.Skips {
		skips[addr] = reason
	}
	return &Proxy{
		device:       device,
		disassembler: disassembler,
		opts:         opts,
		shadow:       shadow.New(),
		instructions: make(map[uint32]*instr.Record),
		skipStores:   skips,
		patchNotes:   make(map[uint32]string),
		patchHLE:     make(map[uint32]string),
		hleEntries:   make(map[string]uint32),
		hleBodies:    make(map[string]string),
		hooks:        make(map[uint32]cpu.Hook),
		logger:       log.NewNop(),
		enricher:     trace.DefaultEnricher,
	}
}

// SetAssembler wires the optional assembler/HLE-compiler port, needed
// only by Patch and InstallHLE.
func (p *Proxy) SetAssembler(a transport.Assembler) { p.assembler = a }

// SetLogger replaces the proxy's logger; defaults to a no-op logger.
func (p *Proxy) SetLogger(l *log.Logger) { p.logger = l }

// OnEvent installs a callback invoked for every trace event the proxy
// emits, after enrichment. Passing nil disables event emission.
func (p *Proxy) OnEvent(fn func(*trace.Event)) { p.onEvent = fn }

func (p *Proxy) emit(e *trace.Event) {
	if p.onEvent == nil {
		return
	}
	if p.enricher != nil {
		p.enricher(e)
	}
	p.onEvent(e)
}

// Skip registers an address stores must never reach.
func (p *Proxy) Skip(address uint32, reason string) {
	p.skipStores[address] = reason
}

// Note returns the patch annotation for an address, if any.
func (p *Proxy) Note(address uint32) string {
	return p.patchNotes[address&^1]
}

// Hook installs a user callback to run after an instruction (and any
// HLE it carries) at address completes.
func (p *Proxy) Hook(address uint32, fn cpu.Hook) {
	p.hooks[address&^1] = fn
}

// HookFor satisfies cpu.Memory.
func (p *Proxy) HookFor(pc uint32) (cpu.Hook, bool) {
	h, ok := p.hooks[pc&^1]
	return h, ok
}

// checkAddress rejects addresses that look like a simulator bug rather
// than real target state, called before writes and after reads.
func (p *Proxy) checkAddress(address uint32) error {
	if address >= p.opts.AddressSanityCeiling {
		return &cpu.AddressSanityError{Address: address}
	}
	return nil
}

// Flush materializes any in-progress run-length-encoded write.
func (p *Proxy) Flush() error {
	return p.postRLEStore(p.rle.Flush())
}

func (p *Proxy) postRLEStore(r rle.Run) error {
	if r.Count == 0 {
		return nil
	}
	if r.Count > 1 && r.Size == 4 {
		if err := p.checkAddress(r.Address); err != nil {
			return err
		}
		p.logger.Fill("word", uint64(r.Address), uint64(r.Pattern), r.Count)
		p.emit(trace.NewEvent(uint64(r.Address), string(trace.Fill), "fill_words", fmt.Sprintf("pattern=%#x count=%d", r.Pattern, r.Count)))
		return p.device.FillWords(r.Address, r.Pattern, r.Count)
	}
	if r.Count > 1 && r.Size == 1 {
		if err := p.checkAddress(r.Address); err != nil {
			return err
		}
		p.logger.Fill("byte", uint64(r.Address), uint64(r.Pattern), r.Count)
		p.emit(trace.NewEvent(uint64(r.Address), string(trace.Fill), "fill_bytes", fmt.Sprintf("pattern=%#x count=%d", r.Pattern, r.Count)))
		return p.device.FillBytes(r.Address, uint8(r.Pattern), r.Count)
	}

	address, pattern, size, count := r.Address, r.Pattern, r.Size, r.Count
	for count > 0 {
		if err := p.checkAddress(address); err != nil {
			return err
		}
		switch size {
		case 4:
			p.logger.Store("word", uint64(address), uint64(pattern), "")
			if err := p.device.Poke(address, pattern); err != nil {
				return err
			}
		case 2:
			p.logger.Store("half", uint64(address), uint64(pattern), "")
			if err := p.device.PokeByte(address, uint8(pattern)); err != nil {
				return err
			}
			if err := p.device.PokeByte(address+1, uint8(pattern>>8)); err != nil {
				return err
			}
		case 1:
			p.logger.Store("byte", uint64(address), uint64(pattern), "")
			if err := p.device.PokeByte(address, uint8(pattern)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("memory: invalid run size %d", size)
		}
		count--
		address += uint32(size)
	}
	return nil
}

// fetchLocalData pulls a block of device memory into the shadow cache
// permanently, returning how many bytes were actually read.
func (p *Proxy) fetchLocalData(address uint32, size int, maxRoundTrips int) (int, error) {
	block, err := p.device.BlockRead(address, size, maxRoundTrips)
	if err != nil {
		return 0, err
	}
	p.shadow.Fill(address, block)
	return len(block), nil
}

// flashPrefetchHint opportunistically pulls in a chunk around a flash
// address when little or nothing is cached there yet, guaranteeing at
// least FlashMinAvailable bytes available afterward for flash
// addresses.
func (p *Proxy) flashPrefetchHint(address uint32) (int, error) {
	avail := p.shadow.Available(address, 0x100)
	if address < p.opts.FlashBoundary && avail < p.opts.FlashMinAvailable {
		if err := p.Flush(); err != nil {
			return 0, err
		}
		p.logger.Prefetch(uint64(address))
		p.emit(trace.NewEvent(uint64(address), string(trace.Prefetch), "flash_prefetch_hint", ""))
		n, err := p.fetchLocalData(address, p.opts.FlashPrefetchChunk, 1)
		if err != nil {
			return 0, err
		}
		avail = n
	}
	return avail, nil
}

// LocalRAM marks [begin, end] inclusive as always served locally: reads
// and writes in this range never touch the transport.
func (p *Proxy) LocalRAM(begin, end uint32) {
	p.shadow.MarkPresent(begin, end)
}

// Load satisfies cpu.Memory.
func (p *Proxy) Load(address uint32) (uint32, error) {
	if _, err := p.flashPrefetchHint(address); err != nil {
		return 0, err
	}
	if p.shadow.HasRun(address, 4) {
		return p.shadow.ReadWord(address), nil
	}
	if err := p.Flush(); err != nil {
		return 0, err
	}
	data, err := p.device.Peek(address)
	if err != nil {
		return 0, err
	}
	p.logger.Load("word", uint64(address), uint64(data))
	p.emit(trace.NewEvent(uint64(address), string(trace.Load), "load", fmt.Sprintf("value=%#x", data)))
	if err := p.checkAddress(address); err != nil {
		return 0, err
	}
	return data, nil
}

// LoadHalf satisfies cpu.Memory.
func (p *Proxy) LoadHalf(address uint32) (uint16, error) {
	if _, err := p.flashPrefetchHint(address); err != nil {
		return 0, err
	}
	if p.shadow.HasRun(address, 2) {
		return p.shadow.ReadHalf(address), nil
	}
	if err := p.Flush(); err != nil {
		return 0, err
	}
	lo, err := p.device.PeekByte(address)
	if err != nil {
		return 0, err
	}
	hi, err := p.device.PeekByte(address + 1)
	if err != nil {
		return 0, err
	}
	data := uint16(lo) | uint16(hi)<<8
	p.logger.Load("half", uint64(address), uint64(data))
	p.emit(trace.NewEvent(uint64(address), string(trace.Load), "load_half", fmt.Sprintf("value=%#x", data)))
	if err := p.checkAddress(address); err != nil {
		return 0, err
	}
	return data, nil
}

// LoadByte satisfies cpu.Memory.
func (p *Proxy) LoadByte(address uint32) (uint8, error) {
	if _, err := p.flashPrefetchHint(address); err != nil {
		return 0, err
	}
	if p.shadow.HasRun(address, 1) {
		return p.shadow.ReadByte(address), nil
	}
	if err := p.Flush(); err != nil {
		return 0, err
	}
	data, err := p.device.PeekByte(address)
	if err != nil {
		return 0, err
	}
	p.logger.Load("byte", uint64(address), uint64(data))
	p.emit(trace.NewEvent(uint64(address), string(trace.Load), "load_byte", fmt.Sprintf("value=%#x", data)))
	if err := p.checkAddress(address); err != nil {
		return 0, err
	}
	return data, nil
}

// Store satisfies cpu.Memory.
func (p *Proxy) Store(address uint32, data uint32) error {
	if p.shadow.HasRun(address, 4) {
		p.shadow.WriteWord(address, data)
		return nil
	}
	if reason, skip := p.skipStores[address]; skip {
		p.logger.Skip(uint64(address), reason)
		p.emit(trace.NewEvent(uint64(address), string(trace.Skip), "store", reason))
		return nil
	}
	return p.postRLEStore(p.rle.Write(address, data, 4))
}

// StoreHalf satisfies cpu.Memory.
func (p *Proxy) StoreHalf(address uint32, data uint16) error {
	if p.shadow.HasRun(address, 2) {
		p.shadow.WriteHalf(address, data)
		return nil
	}
	if reason, skip := p.skipStores[address]; skip {
		p.logger.Skip(uint64(address), reason)
		p.emit(trace.NewEvent(uint64(address), string(trace.Skip), "store_half", reason))
		return nil
	}
	return p.postRLEStore(p.rle.Write(address, uint32(data), 2))
}

// StoreByte satisfies cpu.Memory.
func (p *Proxy) StoreByte(address uint32, data uint8) error {
	if p.shadow.HasRun(address, 1) {
		p.shadow.WriteByte(address, data)
		return nil
	}
	if reason, skip := p.skipStores[address]; skip {
		p.logger.Skip(uint64(address), reason)
		p.emit(trace.NewEvent(uint64(address), string(trace.Skip), "store_byte", reason))
		return nil
	}
	return p.postRLEStore(p.rle.Write(address, uint32(data), 1))
}

// Fetch satisfies cpu.Memory: returns the cached instruction record at
// address, disassembling and installing it into the cache on a miss.
func (p *Proxy) Fetch(address uint32, thumb bool) (*instr.Record, error) {
	key := instr.Key(address, thumb)
	if rec, ok := p.instructions[key]; ok {
		return rec, nil
	}
	if err := p.checkAddress(address); err != nil {
		return nil, err
	}
	if err := p.loadInstruction(address, thumb); err != nil {
		return nil, err
	}
	rec, ok := p.instructions[key]
	if !ok {
		return nil, fmt.Errorf("memory: instruction at %#08x failed to install after load", address)
	}
	return rec, nil
}

func (p *Proxy) loadInstruction(address uint32, thumb bool) error {
	if err := p.Flush(); err != nil {
		return err
	}
	blockSize, err := p.flashPrefetchHint(address)
	if err != nil {
		return err
	}
	if blockSize < 8 {
		blockSize, err = p.fetchLocalData(address, 8, 1)
		if err != nil {
			return err
		}
	}
	data := make([]byte, blockSize)
	for i := range data {
		data[i] = p.shadow.ReadByte(address + uint32(i))
	}
	lines, err := p.disassembler.DisassembleString(data, address, thumb)
	if err != nil {
		return fmt.Errorf("memory: disassembling at %#08x: %w", address, err)
	}
	p.loadAssembly(address, lines, thumb)
	return nil
}

// loadAssembly installs a freshly disassembled run of instructions into
// the cache, chaining NextAddress and attaching any pending HLE marker.
// The last line in lines is never installed: it exists only so the
// second-to-last instruction's NextAddress can be computed, matching
// the "extra instruction of padding" convention the disassembly block
// size guarantees.
func (p *Proxy) loadAssembly(address uint32, lines []*instr.Record, thumb bool) {
	for i := 0; i < len(lines)-1; i++ {
		rec := lines[i]
		rec.NextAddress = lines[i+1].Address
		key := instr.Key(rec.Address, thumb)
		rec.HLE = p.patchHLE[key]
		if _, exists := p.instructions[key]; !exists {
			p.instructions[key] = rec
		}
	}
}

// Patch replaces simulated code at address with newly assembled source,
// normalizing it through the assembler and disassembler so the cache
// sees exactly what a real fetch would. If code is empty, only the HLE
// marker (if any) is updated and the cached instruction at address is
// evicted so the next fetch re-applies it.
func (p *Proxy) Patch(address uint32, code string, hle string, thumb bool) error {
	var hleAddr uint32
	var patched []*instr.Record
	if code != "" {
		if p.assembler == nil {
			return fmt.Errorf("memory: Patch with code requires an assembler")
		}
		assembled, err := p.assembler.AssembleString(address, code+"\nnop", thumb)
		if err != nil {
			return fmt.Errorf("memory: assembling patch at %#08x: %w", address, err)
		}
		lines, err := p.disassembler.DisassembleString(assembled, address, thumb)
		if err != nil {
			return fmt.Errorf("memory: disassembling patch at %#08x: %w", address, err)
		}
		if len(lines) < 2 {
			return fmt.Errorf("memory: patch at %#08x produced no instructions", address)
		}
		for _, l := range lines[:len(lines)-1] {
			if l.Address&1 != 0 {
				return fmt.Errorf("memory: patch instruction at odd address %#08x", l.Address)
			}
			p.patchNotes[l.Address] = "PATCH"
			delete(p.instructions, instr.Key(l.Address, false))
			delete(p.instructions, instr.Key(l.Address, true))
		}
		hleAddr = instr.Key(lines[len(lines)-2].Address, thumb)
		patched = lines
	} else {
		hleAddr = instr.Key(address, thumb)
	}

	if hle != "" {
		name := fmt.Sprintf("hle_%08x", address)
		p.patchHLE[hleAddr] = name
		p.hleBodies[name] = fmt.Sprintf("{uint32_t r0 = arg; %s; r0;}", hle)
	}

	if code != "" {
		p.loadAssembly(address, patched, thumb)
	} else {
		delete(p.instructions, hleAddr)
	}

	p.logger.Patch(uint64(address))
	p.emit(trace.NewEvent(uint64(address), string(trace.Patch), "patch", code))
	return nil
}

// InstallHLE compiles every pending HLE handler body as a routine on
// the device starting at codeAddress, recording each routine's entry
// address for InvokeHLE to call later.
func (p *Proxy) InstallHLE(codeAddress uint32) error {
	if p.assembler == nil {
		return fmt.Errorf("memory: InstallHLE requires an assembler")
	}
	if len(p.hleBodies) == 0 {
		return nil
	}
	entries, err := p.assembler.CompileLibrary(p.device, codeAddress, p.hleBodies)
	if err != nil {
		return fmt.Errorf("memory: compiling HLE library: %w", err)
	}
	for name, entry := range entries {
		p.hleEntries[name] = entry
	}
	p.hleBodies = make(map[string]string)
	return nil
}

// InvokeHLE satisfies cpu.Memory: calls the compiled handler attached
// to rec, passing r0 as its argument and returning the device's r0.
func (p *Proxy) InvokeHLE(rec *instr.Record, r0 uint32) (uint32, error) {
	entry, ok := p.hleEntries[rec.HLE]
	if !ok {
		return 0, fmt.Errorf("memory: no installed HLE entry for handler %q", rec.HLE)
	}
	if err := p.Flush(); err != nil {
		return 0, err
	}
	result, err := p.device.Blx(entry, r0)
	if err != nil {
		return 0, err
	}
	p.emit(trace.NewEvent(uint64(rec.Address), string(trace.HLE), rec.HLE, fmt.Sprintf("r0_in=%#x r0_out=%#x", r0, result)))
	return result, nil
}

// EmitHLEConsoleLines logs captured console output from an HLE call,
// one "HLE: "-prefixed line at a time, the way the reference debugger
// renders its captured console buffer.
func (p *Proxy) EmitHLEConsoleLines(output string) {
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		p.logger.HLE(line)
	}
}
