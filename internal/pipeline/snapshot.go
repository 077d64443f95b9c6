package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sensorstats/sensorstats/internal/stats"
)

// stateSnapshot is the on-disk restore-on-boot format: each restorable
// instance's sufficient statistics keyed by sensor name. Persistence is
// deliberately limited to the aggregate's closed-form fields.
type stateSnapshot map[string]stats.InstanceSnapshot

func (p *Processor) restoreState() {
	sugar := p.logger.Sugar()

	data, err := os.ReadFile(p.stateFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			sugar.Warnw("Could not read state snapshot, starting fresh",
				"path", p.stateFile, zap.Error(err))
		}
		return
	}

	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		sugar.Warnw("State snapshot corrupted, starting fresh",
			"path", p.stateFile,
			zap.Error(fmt.Errorf("%w: %w", ErrStateSnapshotCorrupted, err)))
		return
	}

	restored := 0
	for name, instSnap := range snap {
		inst, ok := p.instances[name]
		if !ok || !p.restore[name] {
			continue
		}
		inst.RestoreState(instSnap)
		restored++
	}
	sugar.Infow("Restored aggregate state", "path", p.stateFile, "instances", restored)
}

func (p *Processor) saveState() {
	sugar := p.logger.Sugar()

	snap := make(stateSnapshot)
	for name, inst := range p.instances {
		if p.restore[name] {
			snap[name] = inst.SnapshotState()
		}
	}
	if len(snap) == 0 {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		sugar.Errorw("Could not encode state snapshot", zap.Error(err))
		return
	}
	if err := os.WriteFile(p.stateFile, data, 0o644); err != nil {
		sugar.Errorw("Could not write state snapshot",
			"path", p.stateFile, zap.Error(err))
		return
	}
	sugar.Infow("Saved aggregate state", "path", p.stateFile, "instances", len(snap))
}
