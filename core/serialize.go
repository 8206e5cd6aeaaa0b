package core

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PageTableIndexer is the host-side protocol that maps opaque page-table
// handles to stable indices in a serialized stream and back.
type PageTableIndexer interface {
	Index(handle any) (uint64, error)
	Lookup(index uint64) (any, error)
}

const coreSerialVersion = 1

// Serialize writes the core's state: a page-table index, the core/timer
// identifier, and the full thread-context tuple.
func (c *Core) Serialize(w io.Writer, tables PageTableIndexer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(coreSerialVersion)); err != nil {
		return err
	}

	var index uint64
	if tables != nil {
		var err error
		if index, err = tables.Index(c.pageTable); err != nil {
			return fmt.Errorf("core %d: page table index: %w", c.id, err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, index); err != nil {
		return err
	}

	// The per-core timer is keyed by the core identifier on restore.
	if err := binary.Write(w, binary.LittleEndian, c.id); err != nil {
		return err
	}

	ctx := c.NewContext()
	if err := c.SaveContext(ctx); err != nil {
		return err
	}
	payload, err := ctx.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// Deserialize restores state written by Serialize. All derived state is
// purged first; the T and E bits are re-synced from the loaded CPSR on the
// next dispatch.
func (c *Core) Deserialize(r io.Reader, tables PageTableIndexer) error {
	c.PurgeState()

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != coreSerialVersion {
		return fmt.Errorf("core %d: unknown serial version %d", c.id, version)
	}

	var index uint64
	if err := binary.Read(r, binary.LittleEndian, &index); err != nil {
		return err
	}
	if tables != nil {
		handle, err := tables.Lookup(index)
		if err != nil {
			return fmt.Errorf("core %d: page table lookup: %w", c.id, err)
		}
		c.pageTable = handle
	}

	var id uint32
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return err
	}
	if id != c.id {
		return fmt.Errorf("core %d: stream belongs to core %d", c.id, id)
	}

	ctx := c.NewContext()
	if err := ctx.readFrom(r); err != nil {
		return err
	}
	return c.LoadContext(ctx)
}
