// Command quartzbench builds a synthetic scene graph, or one described by a
// YAML scene file, and times world updates and render pass collection.
//
// Profiling:
//
//	go build ./cmd/quartzbench
//	./quartzbench -config cmd/quartzbench/bench.yaml -depth 5 -profile cpu -frames 2000
//	go tool pprof -http=":8000" ./quartzbench cpu.pprof
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/phanxgames/quartz"
)

type options struct {
	config  string
	scene   string
	depth   int
	breadth int
	frames  int
	profile string
	out     string
	verbose bool
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "", "YAML world config (defaults when empty)")
	flag.StringVar(&o.scene, "scene", "", "YAML scene description; a synthetic tree is built when empty")
	flag.IntVar(&o.depth, "depth", 3, "synthetic tree depth")
	flag.IntVar(&o.breadth, "breadth", 6, "children per synthetic node")
	flag.IntVar(&o.frames, "frames", 500, "frames to simulate")
	flag.StringVar(&o.profile, "profile", "", "profile mode: cpu, mem, allocs or empty")
	flag.StringVar(&o.out, "out", ".", "profile output directory")
	flag.BoolVar(&o.verbose, "v", false, "debug logging and per-frame stats")
	flag.Parse()

	log, err := newLogger(o.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	quartz.SetLogger(log)

	if err := run(context.Background(), o, log); err != nil {
		log.Error("quartzbench failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

func profileMode(name string) (func(*profile.Profile), error) {
	switch name {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	case "allocs":
		return profile.MemProfileAllocs, nil
	default:
		return nil, fmt.Errorf("unknown profile mode %q", name)
	}
}

func run(ctx context.Context, o options, log *zap.Logger) error {
	cfg := quartz.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = quartz.LoadConfig(o.config); err != nil {
			return err
		}
	}
	if o.verbose {
		cfg.Debug = true
	}
	w, err := quartz.NewWorld(cfg)
	if err != nil {
		return err
	}

	var roots []*quartz.Entity
	if o.scene != "" {
		roots, err = loadScene(ctx, w, o.scene)
	} else {
		roots, err = buildTree(w, o.depth, o.breadth)
	}
	if err != nil {
		return err
	}
	if err := ensureCamera(w); err != nil {
		return err
	}

	pass := w.NewRenderPass("bench")
	pass.AddEntities(roots...)
	pass.CullEnabled = true

	if o.profile != "" {
		mode, err := profileMode(o.profile)
		if err != nil {
			return err
		}
		defer profile.Start(mode, profile.ProfilePath(o.out), profile.NoShutdownHook, profile.Quiet).Stop()
	}

	rootTransforms := make([]*quartz.TransformComponent, 0, len(roots))
	for _, r := range roots {
		if t := r.Transform(); t != nil {
			rootTransforms = append(rootTransforms, t)
		}
	}

	var update, collect time.Duration
	commands := 0
	for f := 0; f < o.frames; f++ {
		angle := float32(f) * 0.01
		for _, t := range rootTransforms {
			t.SetRotation(mgl32.QuatRotate(angle, mgl32.Vec3{0, 1, 0}))
		}
		start := time.Now()
		w.Process()
		update += time.Since(start)

		start = time.Now()
		commands += len(pass.Commands())
		collect += time.Since(start)
	}

	frames := max(o.frames, 1)
	log.Info("bench done",
		zap.Int("entities", w.Entities().EntityCount()),
		zap.Int("frames", o.frames),
		zap.Duration("update_per_frame", update/time.Duration(frames)),
		zap.Duration("collect_per_frame", collect/time.Duration(frames)),
		zap.Int("commands_per_frame", commands/frames),
		zap.Int("reserved_bytes", w.Memory().ReservedBytes()),
		zap.Int("pool_bytes", w.Memory().PoolBytes()))
	return nil
}

// buildTree creates a tree of depth levels with breadth children per node.
// Leaves carry a shared box primitive.
func buildTree(w *quartz.World, depth, breadth int) ([]*quartz.Entity, error) {
	box, err := quartz.NewPrimitive(w.Memory(), quartz.BoxDesc(mgl32.Vec3{0.5, 0.5, 0.5}))
	if err != nil {
		return nil, err
	}
	var grow func(parent *quartz.Entity, level int) error
	grow = func(parent *quartz.Entity, level int) error {
		if level == depth {
			m, err := quartz.AddComponentToEntity[*quartz.MeshComponent](w.Entities(), parent)
			if err != nil {
				return err
			}
			m.AddPrimitive(box)
			return nil
		}
		for i := 0; i < breadth; i++ {
			child, err := w.CreateEntityWith(quartz.TIDTransform, quartz.TIDSceneGraph)
			if err != nil {
				return err
			}
			child.Transform().SetTranslate(mgl32.Vec3{float32(i) - float32(breadth-1)/2, -1, 0})
			child.Transform().SetScale(mgl32.Vec3{0.8, 0.8, 0.8})
			parent.SceneGraph().AddChild(child.SceneGraph())
			if err := grow(child, level+1); err != nil {
				return err
			}
		}
		return nil
	}
	root, err := w.CreateEntityWith(quartz.TIDTransform, quartz.TIDSceneGraph)
	if err != nil {
		return nil, err
	}
	w.Entities().SetEntityName(root, "bench-root")
	if err := grow(root, 0); err != nil {
		return nil, err
	}
	return []*quartz.Entity{root}, nil
}

func loadScene(ctx context.Context, w *quartz.World, path string) ([]*quartz.Entity, error) {
	desc, err := quartz.LoadSceneDesc(path)
	if err != nil {
		return nil, err
	}
	report, err := w.BuildScene(ctx, desc)
	if err != nil {
		return nil, err
	}
	if !report.OK() {
		quartz.Logger().Warn("scene loaded with failures",
			zap.Stringer("report", report.ID), zap.Error(report.Err()))
	}
	return report.Roots, nil
}

// ensureCamera adds a camera looking at the origin when the scene has none.
func ensureCamera(w *quartz.World) error {
	if w.CurrentCamera() != nil {
		return nil
	}
	e, err := w.CreateEntityWith(quartz.TIDTransform, quartz.TIDSceneGraph, quartz.TIDCamera)
	if err != nil {
		return err
	}
	e.Camera().LookAt(mgl32.Vec3{0, 4, 12}, mgl32.Vec3{0, -2, 0}, mgl32.Vec3{0, 1, 0})
	w.SetCurrentCamera(e.Camera())
	return nil
}
