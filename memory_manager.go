package quartz

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/phanxgames/quartz/memory"
)

// MemoryManager owns the named buffers for the lifetime of a World. Buffers
// are charged against a fixed pool and never resized or released.
type MemoryManager struct {
	cfg      MemoryConfig
	buffers  [memory.NumBufferUses]*memory.Buffer
	pool     int
	reserved int
	log      *zap.Logger
}

// newMemoryManager validates cfg and allocates the startup buffers.
func newMemoryManager(cfg MemoryConfig, log *zap.Logger) (*MemoryManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mm := &MemoryManager{cfg: cfg, pool: cfg.poolBytes(), log: log}
	for _, use := range []memory.BufferUse{memory.CPUGeneric, memory.GPUInstanceData, memory.GPUVertexData} {
		if _, err := mm.CreateOrGetBuffer(use); err != nil {
			return nil, err
		}
	}
	log.Info("memory manager created",
		zap.Int("pool_bytes", mm.pool),
		zap.Int("reserved_bytes", mm.reserved))
	return mm, nil
}

// CreateOrGetBuffer returns the buffer for use, creating it from the pool on
// first request. Fails with ErrPoolExhausted when the pool cannot cover the
// use's size class, or when the use has no size class configured.
func (mm *MemoryManager) CreateOrGetBuffer(use memory.BufferUse) (*memory.Buffer, error) {
	if int(use) >= len(mm.buffers) {
		return nil, fmt.Errorf("quartz: invalid buffer use %d", use)
	}
	if b := mm.buffers[use]; b != nil {
		return b, nil
	}
	size := mm.cfg.SizeOf(use).Bytes()
	if size == 0 {
		return nil, fmt.Errorf("%w: no size class configured for %s", ErrPoolExhausted, use)
	}
	if mm.reserved+size > mm.pool {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d of %d reserved",
			ErrPoolExhausted, use, size, mm.reserved, mm.pool)
	}
	b := memory.NewBuffer(memory.BufferDesc{Name: use.String(), ByteLength: size, Use: use})
	mm.buffers[use] = b
	mm.reserved += size
	mm.log.Debug("buffer created", zap.Stringer("use", use), zap.Int("bytes", size))
	return b, nil
}

// GetBuffer returns the buffer for use, or nil if it has not been created.
func (mm *MemoryManager) GetBuffer(use memory.BufferUse) *memory.Buffer {
	if int(use) >= len(mm.buffers) {
		return nil
	}
	return mm.buffers[use]
}

// Buffers returns the created buffers in BufferUse order.
func (mm *MemoryManager) Buffers() []*memory.Buffer {
	out := make([]*memory.Buffer, 0, len(mm.buffers))
	for _, b := range mm.buffers {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// PoolBytes returns the pool capacity.
func (mm *MemoryManager) PoolBytes() int { return mm.pool }

// ReservedBytes returns the bytes charged to created buffers.
func (mm *MemoryManager) ReservedBytes() int { return mm.reserved }

// Config returns the configuration the manager was created with.
func (mm *MemoryManager) Config() MemoryConfig { return mm.cfg }

// UploadAll passes every created buffer to u in BufferUse order.
func (mm *MemoryManager) UploadAll(u memory.Uploader) error {
	for _, b := range mm.Buffers() {
		if err := b.Upload(u); err != nil {
			return fmt.Errorf("quartz: upload %s: %w", b.Name(), err)
		}
	}
	return nil
}
