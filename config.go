package quartz

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phanxgames/quartz/memory"
)

// SizeClass selects a fixed byte size for a memory buffer.
type SizeClass uint8

const (
	SizeClassNone   SizeClass = iota // buffer is not created at startup
	SizeClassTiny                    // 64 KiB
	SizeClassSmall                   // 1 MiB
	SizeClassMedium                  // 16 MiB
	SizeClassLarge                   // 64 MiB
	SizeClassHuge                    // 256 MiB
)

var sizeClassBytes = [...]int{
	SizeClassNone:   0,
	SizeClassTiny:   64 << 10,
	SizeClassSmall:  1 << 20,
	SizeClassMedium: 16 << 20,
	SizeClassLarge:  64 << 20,
	SizeClassHuge:   256 << 20,
}

var sizeClassNames = [...]string{"none", "tiny", "small", "medium", "large", "huge"}

// Bytes returns the byte count of the size class.
func (c SizeClass) Bytes() int {
	if int(c) < len(sizeClassBytes) {
		return sizeClassBytes[c]
	}
	return 0
}

func (c SizeClass) String() string {
	if int(c) < len(sizeClassNames) {
		return sizeClassNames[c]
	}
	return fmt.Sprintf("SizeClass(%d)", c)
}

// ParseSizeClass parses a size class name, case-insensitively.
func ParseSizeClass(s string) (SizeClass, error) {
	for i, name := range sizeClassNames {
		if strings.EqualFold(name, s) {
			return SizeClass(i), nil
		}
	}
	return 0, fmt.Errorf("quartz: unknown size class %q", s)
}

// MarshalYAML encodes the size class by name.
func (c SizeClass) MarshalYAML() (any, error) {
	return c.String(), nil
}

// UnmarshalYAML decodes a size class name.
func (c *SizeClass) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := ParseSizeClass(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// MemoryConfig sizes the named buffers owned by the MemoryManager.
type MemoryConfig struct {
	CPUGeneric      SizeClass `yaml:"cpu_generic"`
	GPUInstanceData SizeClass `yaml:"gpu_instance_data"`
	GPUVertexData   SizeClass `yaml:"gpu_vertex_data"`
	// UBOGeneric is materialized on first CreateOrGetBuffer, not at startup.
	UBOGeneric SizeClass `yaml:"ubo_generic"`
	// PoolBytes caps the total bytes of all buffers. Zero means the sum of
	// every configured class.
	PoolBytes int `yaml:"pool_bytes,omitempty"`
}

// SizeOf returns the configured size class for use.
func (c MemoryConfig) SizeOf(use memory.BufferUse) SizeClass {
	switch use {
	case memory.CPUGeneric:
		return c.CPUGeneric
	case memory.GPUInstanceData:
		return c.GPUInstanceData
	case memory.GPUVertexData:
		return c.GPUVertexData
	case memory.UBOGeneric:
		return c.UBOGeneric
	default:
		return SizeClassNone
	}
}

// startupBytes is the total size of the buffers created at startup.
func (c MemoryConfig) startupBytes() int {
	return c.CPUGeneric.Bytes() + c.GPUInstanceData.Bytes() + c.GPUVertexData.Bytes()
}

// poolBytes resolves PoolBytes, defaulting to every configured class.
func (c MemoryConfig) poolBytes() int {
	if c.PoolBytes > 0 {
		return c.PoolBytes
	}
	return c.startupBytes() + c.UBOGeneric.Bytes()
}

// Validate reports configuration errors that would make startup fail.
func (c MemoryConfig) Validate() error {
	if c.CPUGeneric == SizeClassNone || c.GPUInstanceData == SizeClassNone || c.GPUVertexData == SizeClassNone {
		return fmt.Errorf("quartz: cpu_generic, gpu_instance_data and gpu_vertex_data need a size class")
	}
	for _, sc := range []SizeClass{c.CPUGeneric, c.GPUInstanceData, c.GPUVertexData, c.UBOGeneric} {
		if int(sc) >= len(sizeClassBytes) {
			return fmt.Errorf("quartz: invalid size class %d", sc)
		}
	}
	if c.PoolBytes < 0 {
		return fmt.Errorf("quartz: negative pool_bytes %d", c.PoolBytes)
	}
	if need := c.startupBytes(); need > c.poolBytes() {
		return fmt.Errorf("%w: startup buffers need %d bytes, pool is %d", ErrPoolExhausted, need, c.poolBytes())
	}
	return nil
}

// Config is the top-level World configuration.
type Config struct {
	Memory MemoryConfig `yaml:"memory"`
	// ComponentCapacity overrides the maximum instance count of component
	// types by name (e.g. "Transform": 4096).
	ComponentCapacity map[string]int `yaml:"component_capacity,omitempty"`
	// Debug enables tree depth and child count warnings.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a configuration suitable for small scenes and tests.
func DefaultConfig() Config {
	return Config{
		Memory: MemoryConfig{
			CPUGeneric:      SizeClassSmall,
			GPUInstanceData: SizeClassSmall,
			GPUVertexData:   SizeClassMedium,
			UBOGeneric:      SizeClassTiny,
		},
	}
}

// Validate checks the memory configuration and component capacities.
func (c Config) Validate() error {
	if err := c.Memory.Validate(); err != nil {
		return err
	}
	for name, n := range c.ComponentCapacity {
		if n <= 0 {
			return fmt.Errorf("quartz: component capacity for %q must be positive, got %d", name, n)
		}
	}
	return nil
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("quartz: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("quartz: read config: %w", err)
	}
	return ParseConfig(data)
}
