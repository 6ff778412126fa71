package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/coastermelt/armsim/internal/cpu"
	"github.com/coastermelt/armsim/internal/shadow"
)

// CoreState is the JSON document stored at "<base>.core": the
// lightweight CPU state that isn't part of the shadow memory streams.
// SessionID is stamped fresh by SaveState purely so a human comparing
// snapshots on disk can tell two dumps apart; LoadState neither
// requires nor validates it, so a hand-written fixture (or a file from
// some other implementation of this format) loads without one.
type CoreState struct {
	SessionID string     `json:"session_id,omitempty"`
	Thumb     bool       `json:"thumb"`
	CpsrN     bool       `json:"cpsrN"`
	CpsrZ     bool       `json:"cpsrZ"`
	CpsrC     bool       `json:"cpsrC"`
	CpsrV     bool       `json:"cpsrV"`
	StepCount uint64     `json:"step_count"`
	Regs      [16]uint32 `json:"regs"`
}

// SaveState writes "<base>.addr", "<base>.data", and "<base>.core",
// the three files this module's two-stream-plus-JSON snapshot format
// is made of.
func (p *Proxy) SaveState(base string, regs *cpu.Registers) error {
	if err := p.Flush(); err != nil {
		return fmt.Errorf("memory: flushing before save: %w", err)
	}

	addrStream, dataStream := encodeShadowStreams(p.shadow)
	if err := os.WriteFile(base+".addr", addrStream, 0o644); err != nil {
		return fmt.Errorf("memory: writing %s.addr: %w", base, err)
	}
	if err := os.WriteFile(base+".data", dataStream, 0o644); err != nil {
		return fmt.Errorf("memory: writing %s.data: %w", base, err)
	}

	core := CoreState{
		SessionID: uuid.NewString(),
		Thumb:     regs.Thumb,
		CpsrN:     regs.N,
		CpsrZ:     regs.Z,
		CpsrC:     regs.C,
		CpsrV:     regs.V,
		StepCount: regs.StepCount,
	}
	for i := 0; i < 16; i++ {
		core.Regs[i] = regs.Get(uint8(i))
	}
	data, err := json.MarshalIndent(core, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encoding %s.core: %w", base, err)
	}
	if err := os.WriteFile(base+".core", data, 0o644); err != nil {
		return fmt.Errorf("memory: writing %s.core: %w", base, err)
	}
	return nil
}

// LoadState reads back a snapshot written by SaveState, restoring the
// proxy's shadow cache and the given register file in place.
func (p *Proxy) LoadState(base string, regs *cpu.Registers) error {
	addrStream, err := os.ReadFile(base + ".addr")
	if err != nil {
		return fmt.Errorf("memory: reading %s.addr: %w", base, err)
	}
	dataStream, err := os.ReadFile(base + ".data")
	if err != nil {
		return fmt.Errorf("memory: reading %s.data: %w", base, err)
	}
	p.shadow.Restore(decodeShadowStreams(addrStream, dataStream))

	coreBytes, err := os.ReadFile(base + ".core")
	if err != nil {
		return fmt.Errorf("memory: reading %s.core: %w", base, err)
	}
	var core CoreState
	if err := json.Unmarshal(coreBytes, &core); err != nil {
		return fmt.Errorf("memory: decoding %s.core: %w", base, err)
	}

	regs.Reset(0)
	regs.Thumb = core.Thumb
	regs.N, regs.Z, regs.C, regs.V = core.CpsrN, core.CpsrZ, core.CpsrC, core.CpsrV
	regs.StepCount = core.StepCount
	for i := 0; i < 16; i++ {
		regs.Set(uint8(i), core.Regs[i])
	}
	return nil
}

// encodeShadowStreams renders a shadow cache as the two flat byte
// streams the original two-stream format uses: one presence byte per
// address (0xff present, 0x00 absent) and one data byte per address,
// both streams running to the end of the highest allocated shadow page.
func encodeShadowStreams(mem *shadow.Memory) (addrStream, dataStream []byte) {
	snap := mem.Snapshot()
	if len(snap) == 0 {
		return nil, nil
	}
	var highestPage uint32
	for page := range snap {
		if page > highestPage {
			highestPage = page
		}
	}
	length := int(highestPage+1) * shadow.PageSize
	addrStream = make([]byte, length)
	dataStream = make([]byte, length)
	for page, p := range snap {
		base := int(page) * shadow.PageSize
		for i := 0; i < shadow.PageSize; i++ {
			if p.Present[i] {
				addrStream[base+i] = 0xff
				dataStream[base+i] = p.Data[i]
			}
		}
	}
	return addrStream, dataStream
}

// decodeShadowStreams is the inverse of encodeShadowStreams.
func decodeShadowStreams(addrStream, dataStream []byte) map[uint32]shadow.PageSnapshot {
	pages := make(map[uint32]shadow.PageSnapshot)
	for i := 0; i < len(addrStream) && i < len(dataStream); i++ {
		if addrStream[i] != 0xff {
			continue
		}
		pageNum := uint32(i) / shadow.PageSize
		off := uint32(i) % shadow.PageSize
		snap := pages[pageNum]
		snap.Present[off] = true
		snap.Data[off] = dataStream[i]
		pages[pageNum] = snap
	}
	return pages
}
