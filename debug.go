package quartz

import (
	"time"

	"go.uber.org/zap"
)

// debugStats holds per-frame timing and scene metrics.
// Only populated when World debug mode is on.
type debugStats struct {
	updateTime   time.Duration
	rootCount    int
	nodeCount    int
	recomputed   int
	entityCount  int
	reservedByte int
}

// debugLog writes frame stats at debug level.
func (w *World) debugLog(stats debugStats) {
	if !w.debug {
		return
	}
	w.log.Debug("frame",
		zap.Uint64("frame", w.frame),
		zap.Duration("update", stats.updateTime),
		zap.Int("roots", stats.rootCount),
		zap.Int("nodes", stats.nodeCount),
		zap.Int("recomputed", stats.recomputed),
		zap.Int("entities", stats.entityCount),
		zap.Int("reserved_bytes", stats.reservedByte))
}

// debugCheckTreeDepth warns if tree depth exceeds the threshold.
const debugMaxTreeDepth = 32

func (w *World) debugCheckTreeDepth(sg *SceneGraphComponent) {
	if d := sg.Depth() + 1; d > debugMaxTreeDepth {
		w.log.Warn("scene graph tree depth exceeds threshold",
			zap.Uint32("entity", uint32(sg.entity.uid)),
			zap.Int("depth", d),
			zap.Int("threshold", debugMaxTreeDepth))
	}
}

// debugCheckChildCount warns if a node has more than 1000 children.
const debugMaxChildCount = 1000

func (w *World) debugCheckChildCount(sg *SceneGraphComponent) {
	if n := len(sg.children); n > debugMaxChildCount {
		w.log.Warn("scene graph node has many children",
			zap.Uint32("entity", uint32(sg.entity.uid)),
			zap.Int("children", n),
			zap.Int("threshold", debugMaxChildCount))
	}
}

// countDirtyNodes counts scene graph nodes whose world matrix is stale.
func (w *World) countDirtyNodes() (nodes, dirty int) {
	for _, c := range w.components.instancesOf(TIDSceneGraph) {
		sg, ok := c.(*SceneGraphComponent)
		if !ok {
			continue
		}
		nodes++
		if sg.worldDirty {
			dirty++
		}
	}
	return nodes, dirty
}
