// Package pass implements the Viper optimization pipeline (spec.md §4.3/C3):
// a fixed, ordered sequence of whole-module transformations run between
// verification and execution, each independently enable/disable-able via
// config (internal/config), each re-verifiable, logged with
// go.uber.org/zap the way the teacher's engine logs compilation phases
// (internal/engine/wazevo/wazevo.go's CompileModule).
package pass

import (
	"go.uber.org/zap"

	"github.com/splanck/viper-sub013/internal/il"
)

// Pass is one named, idempotent module transformation. Changed reports
// whether it modified anything, so Pipeline.Run can iterate
// fixed-point-style passes (SCCP+DCE, in particular) until a round makes
// no further progress.
type Pass interface {
	Name() string
	Run(m *il.Module) (changed bool)
}

// Config toggles individual passes on or off, loaded from the module's
// TOML config (internal/config) — spec.md §4.3: "every pass must be
// independently disable-able, for differential testing against the
// unoptimized baseline."
type Config struct {
	EnableSimplifyCFG bool
	EnableMem2Reg     bool
	EnableSCCP        bool
	EnableEarlyCSE    bool
	EnableDCE         bool
	EnableCheckOpt    bool
	EnablePeephole    bool
	EnableInline      bool

	// MaxFixedPointRounds bounds the SCCP/DCE/SimplifyCFG fixed-point loop,
	// guarding against a pathological input pinning the pipeline in an
	// infinite "changed" cycle a bug in one pass might otherwise cause.
	MaxFixedPointRounds int
}

// DefaultConfig enables every pass with a conservative round cap, the
// pipeline an embedder gets with no TOML override.
func DefaultConfig() Config {
	return Config{
		EnableSimplifyCFG:   true,
		EnableMem2Reg:       true,
		EnableSCCP:          true,
		EnableEarlyCSE:      true,
		EnableDCE:           true,
		EnableCheckOpt:      true,
		EnablePeephole:      true,
		EnableInline:        true,
		MaxFixedPointRounds: 8,
	}
}

// Pipeline runs the configured passes in a fixed order:
// Mem2Reg, then a SimplifyCFG/SCCP/EarlyCSE/DCE fixed point, then
// inlining (which can expose more constant-folding opportunity, so it
// reruns the fixed point once more), then the machine-independent
// CheckOpt and Peephole cleanups last.
type Pipeline struct {
	cfg Config
	log *zap.Logger
}

// New creates a Pipeline. log may be zap.NewNop() in tests that don't care
// about pass tracing.
func New(cfg Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Run executes every enabled pass over m in order, returning the total
// number of passes that reported a change (for tests asserting the
// pipeline reached a fixed point rather than hit the round cap).
func (p *Pipeline) Run(m *il.Module) int {
	total := 0
	log := p.log.With(zap.String("component", "pass.Pipeline"))

	if p.cfg.EnableMem2Reg {
		total += p.runOnce(m, &Mem2Reg{}, log)
	}

	total += p.runFixedPoint(m, log)

	if p.cfg.EnableInline {
		if p.runOnce(m, &Inline{}, log) > 0 {
			total += p.runFixedPoint(m, log)
		}
	}

	if p.cfg.EnableCheckOpt {
		total += p.runOnce(m, &CheckOpt{}, log)
	}
	if p.cfg.EnablePeephole {
		total += p.runOnce(m, &Peephole{}, log)
	}
	return total
}

func (p *Pipeline) runFixedPoint(m *il.Module, log *zap.Logger) int {
	total := 0
	rounds := p.cfg.MaxFixedPointRounds
	if rounds <= 0 {
		rounds = 1
	}
	for round := 0; round < rounds; round++ {
		changed := false
		if p.cfg.EnableSimplifyCFG {
			changed = p.runOnce(m, &SimplifyCFG{}, log) > 0 || changed
		}
		if p.cfg.EnableSCCP {
			changed = p.runOnce(m, &SCCP{}, log) > 0 || changed
		}
		if p.cfg.EnableEarlyCSE {
			changed = p.runOnce(m, &EarlyCSE{}, log) > 0 || changed
		}
		if p.cfg.EnableDCE {
			changed = p.runOnce(m, &DCE{}, log) > 0 || changed
		}
		if changed {
			total++
		} else {
			log.Debug("fixed point reached", zap.Int("round", round))
			break
		}
	}
	return total
}

func (p *Pipeline) runOnce(m *il.Module, ps Pass, log *zap.Logger) int {
	changed := ps.Run(m)
	log.Debug("pass ran", zap.String("pass", ps.Name()), zap.Bool("changed", changed))
	if changed {
		return 1
	}
	return 0
}
