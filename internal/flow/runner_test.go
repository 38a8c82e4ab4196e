package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/CampaignPipe/internal/email"
	"github.com/BTreeMap/CampaignPipe/internal/models"
	"github.com/BTreeMap/CampaignPipe/internal/store"
)

func testNow() time.Time {
	return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
}

func TestBuildInitialState(t *testing.T) {
	now := testNow()
	state := BuildInitialState("U001", "A sweater under 5000", now)

	if state.UserID != "U001" {
		t.Errorf("unexpected user id: %q", state.UserID)
	}
	if state.Event.Type != models.EventTypeUserInterest {
		t.Errorf("unexpected event type: %q", state.Event.Type)
	}
	if state.Event.Value != "A sweater under 5000" {
		t.Errorf("unexpected event value: %q", state.Event.Value)
	}
	if !state.Event.Timestamp.Equal(now) {
		t.Errorf("unexpected event timestamp: %v", state.Event.Timestamp)
	}
	if state.Intent != "" || state.ImageURL != "" {
		t.Errorf("expected downstream fields empty, got %+v", state)
	}
}

func TestRunnerTriggerCompletesRun(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := NewEngine(st, NewPipeline(testDeps(email.NewMockSender())))
	runner := NewRunner(engine, st)

	runner.Trigger("U001", "A sweater under 5000")
	runner.Wait()

	cp, err := st.GetCheckpoint("U001")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if cp == nil {
		t.Fatal("expected checkpoint after run")
	}
	if cp.Status != models.RunStatusCompleted {
		t.Errorf("expected completed run, got %s", cp.Status)
	}
	if cp.State.Intent == "" || cp.State.MessageContent == "" {
		t.Errorf("expected populated final state, got %+v", cp.State)
	}
}

func TestRunnerSerializesSameThread(t *testing.T) {
	st := store.NewInMemoryStore()

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	engine := NewEngine(st, []Stage{
		{Name: "slow", Run: func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return models.StateDelta{}, nil
		}},
	})
	runner := NewRunner(engine, st)

	for i := 0; i < 5; i++ {
		runner.Trigger("U001", "sweater")
	}
	runner.Wait()

	if maxInFlight != 1 {
		t.Errorf("expected runs for one thread to be serialized, saw %d concurrent", maxInFlight)
	}
}

func TestRunnerTimeoutFailsRun(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := NewEngine(st, []Stage{
		{Name: "stall", Run: func(ctx context.Context, state models.CampaignState) (models.StateDelta, error) {
			<-ctx.Done()
			return models.StateDelta{}, ctx.Err()
		}},
	})
	runner := NewRunner(engine, st, WithRunTimeout(10*time.Millisecond))

	runner.Trigger("U001", "sweater")
	runner.Wait()

	cp, _ := st.GetCheckpoint("U001")
	if cp == nil || cp.Status != models.RunStatusFailed {
		t.Errorf("expected failed checkpoint after timeout, got %+v", cp)
	}
}

func TestRecoverIncompleteDoesNotFail(t *testing.T) {
	st := store.NewInMemoryStore()
	st.SaveCheckpoint(models.Checkpoint{ThreadID: "U001", Stage: StageBuildStrategy, Status: models.RunStatusRunning})
	st.SaveCheckpoint(models.Checkpoint{ThreadID: "U002", Stage: StageSendEmail, Status: models.RunStatusCompleted})
	st.SaveCheckpoint(models.Checkpoint{ThreadID: "U003", Stage: StageExtractIntent, Status: models.RunStatusFailed, LastError: "model unavailable"})

	engine := NewEngine(st, NewPipeline(testDeps(email.NewMockSender())))
	runner := NewRunner(engine, st)

	// Sweep is observability only; it must neither mutate nor delete checkpoints.
	runner.RecoverIncomplete()

	cps, _ := st.ListCheckpoints()
	if len(cps) != 3 {
		t.Errorf("expected checkpoints untouched by sweep, got %d", len(cps))
	}
}
