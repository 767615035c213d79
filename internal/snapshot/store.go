// Package snapshot holds the last register file and memory image fetched
// from the engine.
//
// Values are display strings rendered engine side in the requested format.
// The store never converts them; a format change issues a new request.
// Every refresh replaces a snapshot wholesale.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/dshills/asmstudio/internal/bridge"
)

// RegisterCount is the number of general purpose registers.
const RegisterCount = 16

// Source fetches formatted processor state.
// *bridge.Client satisfies it.
type Source interface {
	DisplayRegisters(ctx context.Context, format bridge.Format) (bridge.Registers, error)
	DisplayMemory(ctx context.Context, format bridge.Format) (bridge.Memory, error)
}

// Flags are the condition flags.
type Flags struct {
	N, Z, C, V bool
}

// Registers is a register snapshot.
type Registers struct {
	Values [RegisterCount]string
	Flags  Flags
	Format bridge.Format
}

// Memory is a memory snapshot. Bytes are ordered lowest address first.
type Memory struct {
	Bytes        []string
	StackPointer int
	Format       bridge.Format
}

// Row is four consecutive bytes of memory.
type Row struct {
	Address      int
	Bytes        []string
	StackPointer bool
}

// RegisterName returns the display name of register i.
func RegisterName(i int) string {
	switch i {
	case 13:
		return "SP"
	case 14:
		return "LR"
	case 15:
		return "PC"
	default:
		return "R" + strconv.Itoa(i)
	}
}

// Store is the snapshot store. All methods are thread-safe.
type Store struct {
	mu     sync.RWMutex
	source Source

	regFormat bridge.Format
	memFormat bridge.Format

	regs Registers
	mem  Memory
}

// NewStore creates a store reading from source with both formats unsigned.
func NewStore(source Source) *Store {
	return &Store{
		source:    source,
		regFormat: bridge.FormatUnsigned,
		memFormat: bridge.FormatUnsigned,
	}
}

// Formats returns the register and memory display formats.
func (s *Store) Formats() (registers, memory bridge.Format) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regFormat, s.memFormat
}

// SetFormats records both formats without fetching.
func (s *Store) SetFormats(registers, memory bridge.Format) {
	s.mu.Lock()
	s.regFormat = registers
	s.memFormat = memory
	s.mu.Unlock()
}

// Registers returns the current register snapshot.
func (s *Store) Registers() Registers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regs
}

// Memory returns a copy of the current memory snapshot.
func (s *Store) Memory() Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.mem
	m.Bytes = slices.Clone(s.mem.Bytes)
	return m
}

// Refresh fetches registers and then memory in the current formats.
// Both are attempted; the returned error joins any failures.
func (s *Store) Refresh(ctx context.Context) error {
	return errors.Join(s.RefreshRegisters(ctx), s.RefreshMemory(ctx))
}

// RefreshRegisters fetches the register file in the register format.
func (s *Store) RefreshRegisters(ctx context.Context) error {
	s.mu.RLock()
	format := s.regFormat
	s.mu.RUnlock()

	raw, err := s.source.DisplayRegisters(ctx, format)
	if err != nil {
		return fmt.Errorf("refresh registers: %w", err)
	}

	regs := Registers{
		Flags:  Flags{N: raw.N, Z: raw.Z, C: raw.C, V: raw.V},
		Format: format,
	}
	copy(regs.Values[:], raw.R)

	s.mu.Lock()
	s.regs = regs
	s.mu.Unlock()
	return nil
}

// RefreshMemory fetches the memory image in the memory format. The engine
// sends the highest address first; the stored order is reversed.
func (s *Store) RefreshMemory(ctx context.Context) error {
	s.mu.RLock()
	format := s.memFormat
	s.mu.RUnlock()

	raw, err := s.source.DisplayMemory(ctx, format)
	if err != nil {
		return fmt.Errorf("refresh memory: %w", err)
	}

	bytes := slices.Clone(raw.Bytes)
	slices.Reverse(bytes)

	s.mu.Lock()
	s.mem = Memory{Bytes: bytes, StackPointer: raw.StackPointer, Format: format}
	s.mu.Unlock()
	return nil
}

// SetRegisterFormat switches the register format and fetches the registers
// again. The old snapshot stays in place if the fetch fails.
func (s *Store) SetRegisterFormat(ctx context.Context, format bridge.Format) error {
	s.mu.Lock()
	s.regFormat = format
	s.mu.Unlock()
	return s.RefreshRegisters(ctx)
}

// SetMemoryFormat switches the memory format and fetches memory again.
func (s *Store) SetMemoryFormat(ctx context.Context, format bridge.Format) error {
	s.mu.Lock()
	s.memFormat = format
	s.mu.Unlock()
	return s.RefreshMemory(ctx)
}

// Rows groups memory into rows of four bytes. A row is labeled with the
// address of its first byte, counted from the top of memory, so labels
// descend. The row holding the stack pointer index is flagged.
func (s *Store) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rows(s.mem)
}

func rows(m Memory) []Row {
	n := len(m.Bytes)
	if n == 0 {
		return nil
	}
	out := make([]Row, 0, (n+3)/4)
	for i := 0; i < n; i += 4 {
		end := min(i+4, n)
		out = append(out, Row{
			Address:      n - 1 - i,
			Bytes:        slices.Clone(m.Bytes[i:end]),
			StackPointer: m.StackPointer >= i && m.StackPointer < i+4,
		})
	}
	return out
}
