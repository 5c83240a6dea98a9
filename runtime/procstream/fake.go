package procstream

import (
	"context"
	"time"
)

// FakeLine is one scripted line of stdout, optionally delayed before being
// emitted (used to exercise liveness/timing properties such as "first event
// observable within 1.5s").
type FakeLine struct {
	Text  string
	Delay time.Duration
}

// FakeScenario scripts a deterministic child process for end-to-end tests:
// a sequence of stdout lines (with optional inter-line delays) followed by
// an exit code.
type FakeScenario struct {
	Lines    []FakeLine
	ExitCode int
}

// Fake is a Spawner that plays back a fixed FakeScenario instead of
// launching a real process. It honors context cancellation the same way
// Exec does: a cancelled context stops emission and the completion channel
// reports context.Canceled.
type Fake struct {
	Scenario FakeScenario
}

// Spawn implements Spawner.
func (f Fake) Spawn(ctx context.Context, _ Spec) (*Handle, error) {
	lines := make(chan Line, 32)
	completion := make(chan Outcome, 1)

	go func() {
		defer close(lines)
		for _, line := range f.Scenario.Lines {
			if line.Delay > 0 {
				select {
				case <-time.After(line.Delay):
				case <-ctx.Done():
					completion <- Outcome{Err: ctx.Err()}
					close(completion)
					return
				}
			}
			select {
			case lines <- Line{Bytes: []byte(line.Text)}:
			case <-ctx.Done():
				completion <- Outcome{Err: ctx.Err()}
				close(completion)
				return
			}
		}
		completion <- Outcome{ExitCode: f.Scenario.ExitCode}
		close(completion)
	}()

	return &Handle{Lines: lines, Completion: completion}, nil
}
