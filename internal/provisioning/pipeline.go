package provisioning

import (
	"fmt"
	"time"
)

// Pipeline is an ordered list of phases.
type Pipeline struct {
	Phases []Phase
}

// NewPipeline creates a pipeline running phases in order.
func NewPipeline(phases ...Phase) *Pipeline {
	return &Pipeline{Phases: phases}
}

// Run executes the phases sequentially. A phase error stops the pipeline;
// later phases never run.
func (p *Pipeline) Run(ctx *Context) error {
	start := time.Now()
	ctx.Observer.Printf("Starting run with %d phases...", len(p.Phases))

	for i, phase := range p.Phases {
		name := phase.Name()
		phaseStart := time.Now()
		ctx.Observer.Progress("run", i+1, len(p.Phases))
		LogPhaseStart(ctx.Observer, name)

		err := phase.Provision(ctx)
		elapsed := time.Since(phaseStart)
		ctx.Metrics.ObservePhase(name, elapsed)

		if err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			return fmt.Errorf("%s phase failed: %w", name, err)
		}
		LogPhaseComplete(ctx.Observer, name, elapsed)
	}

	ctx.Observer.Printf("Run completed in %s", FormatElapsed(time.Since(start)))
	return nil
}

// FormatElapsed renders d as m:ss.
func FormatElapsed(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
