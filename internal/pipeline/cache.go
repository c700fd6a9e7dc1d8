package pipeline

import (
	"log/slog"
	"os"

	"github.com/bookforge/abridge/internal/types"
)

// cachedArtifact returns the stored condensed body for a unit, if caching is
// enabled, regeneration is not forced, and an artifact exists.
func (p *DocumentPipeline) cachedArtifact(checksum string, unitIndex int) (string, bool) {
	if p.opts.Home == nil || p.opts.ForceRegenerate || checksum == "" {
		return "", false
	}

	data, err := os.ReadFile(p.opts.Home.UnitArtifactPath(checksum, unitIndex))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// storeArtifact persists a unit's condensed body for later runs. Degraded
// outcomes are not cached: a rerun should get another chance at them.
// Cache writes are best-effort and never fail the run.
func (p *DocumentPipeline) storeArtifact(checksum string, outcome types.UnitOutcome, logger *slog.Logger) {
	if p.opts.Home == nil || checksum == "" || outcome.Degraded() {
		return
	}

	path := p.opts.Home.UnitArtifactPath(checksum, outcome.Index)
	if err := os.WriteFile(path, []byte(outcome.Body), 0o644); err != nil {
		logger.Warn("failed to cache unit artifact", "unit", outcome.Index, "error", err)
	}
}
