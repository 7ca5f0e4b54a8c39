package quiescence_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/crosstalk/pkg/quiescence"
)

// scriptedObserver replays a fixed sequence of snapshots, repeating the
// last one forever.
type scriptedObserver struct {
	samples []string
	i       int
}

func (o *scriptedObserver) Observe(_ context.Context) (string, error) {
	if o.i < len(o.samples) {
		s := o.samples[o.i]
		o.i++
		return s, nil
	}
	return o.samples[len(o.samples)-1], nil
}

var _ quiescence.Observer = (*scriptedObserver)(nil)

func fastSettings() quiescence.Settings {
	return quiescence.Settings{
		Interval:      time.Millisecond,
		MinGrowth:     50,
		StableSamples: 4,
		Timeout:       time.Second,
		MinLineLength: 10,
	}
}

func TestWait_GrowthThenStability(t *testing.T) {
	t.Parallel()

	baseline := strings.Repeat("b", 100)
	short := baseline + strings.Repeat("x", 40) // length 140: below the growth threshold
	full := baseline + "\nThis is the complete new answer produced by the target agent."

	obs := &scriptedObserver{samples: []string{baseline, short, full, full, full, full, full}}
	det := quiescence.NewDetector(obs, fastSettings())

	got, err := det.Wait(context.Background(), baseline)
	if err != nil {
		t.Fatalf("Wait: unexpected error: %v", err)
	}
	want := "This is the complete new answer produced by the target agent."
	if got != want {
		t.Errorf("Wait = %q, want %q", got, want)
	}
}

func TestWait_SampleAtLength140DoesNotEndGrowthPhase(t *testing.T) {
	t.Parallel()

	baseline := strings.Repeat("b", 100)
	at140 := baseline + strings.Repeat("y", 40)
	at170 := baseline + "here is an actual reply that is long enough to count and then some padding"

	// If 140 ended phase 1, the four consecutive identical at140 samples
	// would satisfy phase 2 and Wait would return the short diff.
	obs := &scriptedObserver{samples: []string{
		at140, at140, at140, at140, at140,
		at170, at170, at170, at170, at170,
	}}
	det := quiescence.NewDetector(obs, fastSettings())

	got, err := det.Wait(context.Background(), baseline)
	if err != nil {
		t.Fatalf("Wait: unexpected error: %v", err)
	}
	if !strings.Contains(got, "actual reply") {
		t.Errorf("Wait = %q, want content from the 170-length sample", got)
	}
}

func TestWait_MidStreamPauseTolerated(t *testing.T) {
	t.Parallel()

	baseline := "prompt echo"
	part := baseline + "\nThe agent starts answering here with a good amount of text already"
	done := part + " and then finishes the thought completely."

	// Three identical partial samples (a pause shorter than the stability
	// window), then the stream resumes.
	obs := &scriptedObserver{samples: []string{
		part, part, part,
		done, done, done, done, done,
	}}
	det := quiescence.NewDetector(obs, fastSettings())

	got, err := det.Wait(context.Background(), baseline)
	if err != nil {
		t.Fatalf("Wait: unexpected error: %v", err)
	}
	if !strings.Contains(got, "finishes the thought completely") {
		t.Errorf("Wait = %q, want the full reply, not the paused partial", got)
	}
}

func TestWait_Timeout(t *testing.T) {
	t.Parallel()

	baseline := "nothing ever happens"
	obs := &scriptedObserver{samples: []string{baseline}}
	settings := fastSettings()
	settings.Timeout = 20 * time.Millisecond

	det := quiescence.NewDetector(obs, settings)
	if _, err := det.Wait(context.Background(), baseline); !errors.Is(err, quiescence.ErrTimeout) {
		t.Fatalf("Wait = %v, want ErrTimeout", err)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	t.Parallel()

	baseline := "idle"
	obs := &scriptedObserver{samples: []string{baseline}}
	det := quiescence.NewDetector(obs, fastSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := det.Wait(ctx, baseline); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
}

func TestWait_ShortLinesFiltered(t *testing.T) {
	t.Parallel()

	baseline := strings.Repeat("b", 20)
	final := baseline + "\nCopy\nRetry\nA real paragraph of new content from the agent.\nOK"

	obs := &scriptedObserver{samples: []string{final, final, final, final, final}}
	settings := fastSettings()
	settings.MinGrowth = 10

	det := quiescence.NewDetector(obs, settings)
	got, err := det.Wait(context.Background(), baseline)
	if err != nil {
		t.Fatalf("Wait: unexpected error: %v", err)
	}
	if got != "A real paragraph of new content from the agent." {
		t.Errorf("Wait = %q, want short interface labels filtered out", got)
	}
}
