package dev

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vango-dev/devgate/internal/compiler"
	"github.com/vango-dev/devgate/internal/compress"
	"github.com/vango-dev/devgate/internal/errors"
	"github.com/vango-dev/devgate/internal/metrics"
	"github.com/vango-dev/devgate/internal/state"
)

// SizeFunc estimates the transfer size of a buffer.
type SizeFunc func(buf []byte) (int, error)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// State receives every update. Required.
	State *state.BuildState

	// Render is called after each visible change. Nil disables rendering.
	Render func()

	// Size estimates artifact sizes. Defaults to compress.Size.
	Size SizeFunc

	// ClearErrorOnChange clears the recorded error on the next change.
	ClearErrorOnChange bool

	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Aggregator turns compiler events into BuildState updates.
type Aggregator struct {
	config AggregatorConfig
	log    zerolog.Logger
}

var _ compiler.Listener = (*Aggregator)(nil)

// NewAggregator creates an Aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	if config.Render == nil {
		config.Render = func() {}
	}
	if config.Size == nil {
		config.Size = compress.Size
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Aggregator{
		config: config,
		log:    config.Logger.With().Str("component", "aggregator").Logger(),
	}
}

// OnError records err, with its trace, as the dashboard error.
func (a *Aggregator) OnError(err error) {
	if err == nil {
		return
	}
	a.config.State.SetError(errors.Text(err))
	a.config.Metrics.BuildError()
	a.log.Debug().Err(err).Msg("build error")
	a.config.Render()
}

// OnChange marks kind as done and estimates its size in the background.
func (a *Aggregator) OnChange(kind, variant string, nodes compiler.NodeState) {
	k := state.Kind(kind)
	rec := state.Completed(k, a.config.Now())
	if !a.config.State.Replace(rec) {
		a.log.Debug().Str("kind", kind).Msg("ignoring untracked artifact")
		return
	}
	if a.config.ClearErrorOnChange {
		a.config.State.ClearError()
	}
	a.config.Metrics.ArtifactChanged(kind)
	a.config.Render()

	var buf []byte
	if node := nodes.Get(kind, variant); node != nil {
		buf = node.Buffer
	}
	if len(buf) == 0 {
		return
	}

	go func() {
		size, err := a.config.Size(buf)
		if err != nil {
			a.log.Debug().Err(err).Str("kind", kind).Msg("size estimate failed")
			size = len(buf)
		}
		a.config.State.SetSize(rec, size)
		a.config.Metrics.ArtifactSize(kind, size)
		a.config.Render()
	}()
}
