package pipeline

import (
	"context"
	"time"

	"github.com/Skryldev/media-ingest/config"
	"github.com/Skryldev/media-ingest/core"
)

// Normalizer builds and runs the normalization pipeline:
// orient → resize (floor, then ceiling) → resolution → strip metadata.
type Normalizer struct {
	policy config.SecurityPolicy
	floors config.FloorConfig
	output config.OutputConfig
	hooks  []core.Hook
}

// NewNormalizer returns a Normalizer for cfg.
func NewNormalizer(cfg config.Config) *Normalizer {
	return &Normalizer{policy: cfg.Policy, floors: cfg.Floors, output: cfg.Output}
}

// AddHook registers an observer for every normalization step.
func (n *Normalizer) AddHook(h core.Hook) { n.hooks = append(n.hooks, h) }

// Pipeline assembles the steps for one call.  A zero ceiling in opts falls
// back to the tighter of the policy and the delivery ceiling.
func (n *Normalizer) Pipeline(opts core.NormalizeOptions) *Pipeline {
	maxW, maxH := opts.MaxWidth, opts.MaxHeight
	if maxW <= 0 {
		maxW = min(n.policy.MaxWidth, n.output.MaxWidth)
	}
	if maxH <= 0 {
		maxH = min(n.policy.MaxHeight, n.output.MaxHeight)
	}

	p := New()
	if n.policy.AutoOrient {
		p.Use(&OrientStep{})
	}
	p.Use(
		&DimensionPolicyStep{Floors: n.floors, MaxWidth: maxW, MaxHeight: maxH},
		&ResolutionStep{DPI: n.output.DPI},
	)
	if n.policy.StripMetadata {
		p.Use(&StripMetadataStep{})
	}
	for _, h := range n.hooks {
		p.AddHook(h)
	}
	return p
}

// Normalize implements core.Normalizer.
func (n *Normalizer) Normalize(ctx context.Context, s *core.Surface, opts core.NormalizeOptions) (*core.Surface, map[string]time.Duration, error) {
	return n.Pipeline(opts).Run(ctx, s)
}

var _ core.Normalizer = (*Normalizer)(nil)
