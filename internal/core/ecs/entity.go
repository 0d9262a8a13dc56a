package ecs

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// Generations start at 1, so a live EntityID is never zero.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// String renders the id as "<index>v<generation>".
func (id EntityID) String() string {
	return strconv.FormatUint(uint64(id.Index()), 10) + "v" + strconv.FormatUint(uint64(id.Generation()), 10)
}

// ParseEntityID accepts the "<index>v<generation>" form or a raw integer.
func ParseEntityID(s string) (EntityID, error) {
	if idx, gen, ok := strings.Cut(s, "v"); ok {
		i, err := strconv.ParseUint(idx, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("parse entity %q: %w", s, err)
		}
		g, err := strconv.ParseUint(gen, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("parse entity %q: %w", s, err)
		}
		return NewEntityID(uint32(i), uint32(g)), nil
	}
	raw, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse entity %q: %w", s, err)
	}
	return EntityID(raw), nil
}

// EntityPool manages entity allocation with generational indices and a free list.
type EntityPool struct {
	generations []uint32
	alive       []bool
	freeList    []uint32
	nextIndex   uint32
	count       int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		alive:       make([]bool, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *EntityPool) Create() EntityID {
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		p.alive[idx] = true
		p.count++
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.grow()
	p.alive[idx] = true
	p.count++
	return NewEntityID(idx, p.generations[idx])
}

// grow appends a fresh slot and returns its index.
func (p *EntityPool) grow() uint32 {
	idx := p.nextIndex
	p.nextIndex++
	p.generations = append(p.generations, 1)
	p.alive = append(p.alive, false)
	return idx
}

// Claim marks a specific id alive. It is used to rebuild a world with the
// exact identifiers a snapshot recorded; slots skipped over go to the free
// list. Claiming a live slot fails.
func (p *EntityPool) Claim(id EntityID) error {
	if id.Generation() == 0 {
		return fmt.Errorf("claim %s: zero generation", id)
	}
	idx := id.Index()
	for idx >= p.nextIndex {
		n := p.grow()
		if n != idx {
			p.freeList = append(p.freeList, n)
		}
	}
	if p.alive[idx] {
		return fmt.Errorf("claim %s: %w", id, ErrEntityExists)
	}
	for i, free := range p.freeList {
		if free == idx {
			p.freeList = append(p.freeList[:i], p.freeList[i+1:]...)
			break
		}
	}
	p.generations[idx] = id.Generation()
	p.alive[idx] = true
	p.count++
	return nil
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.alive[idx] && p.generations[idx] == id.Generation()
}

func (p *EntityPool) Destroy(id EntityID) {
	if !p.Alive(id) {
		return // already destroyed (stale reference)
	}
	idx := id.Index()
	p.generations[idx]++
	p.alive[idx] = false
	p.freeList = append(p.freeList, idx)
	p.count--
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int { return p.count }

// Each calls fn for every live entity in index order.
func (p *EntityPool) Each(fn func(EntityID)) {
	for idx := uint32(0); idx < p.nextIndex; idx++ {
		if p.alive[idx] {
			fn(NewEntityID(idx, p.generations[idx]))
		}
	}
}
