package service

import (
	"context"
	"testing"

	"RepoChat/backend/go/internal/models"
)

func TestConnectionManager_FanOutAndTerminalClose(t *testing.T) {
	m := NewConnectionManager()
	a, cancelA := m.Subscribe("run-1")
	defer cancelA()
	b, cancelB := m.Subscribe("run-1")
	defer cancelB()
	other, cancelOther := m.Subscribe("run-2")
	defer cancelOther()

	_ = m.Report(context.Background(), models.ProgressEvent{RunID: "run-1", Status: models.RunStatusRunning, Stage: "load"})
	_ = m.Report(context.Background(), models.ProgressEvent{RunID: "run-1", Status: models.RunStatusSucceeded})

	for name, ch := range map[string]<-chan models.ProgressEvent{"a": a, "b": b} {
		var got []models.RunStatus
		for ev := range ch {
			got = append(got, ev.Status)
		}
		if len(got) != 2 || got[1] != models.RunStatusSucceeded {
			t.Errorf("subscriber %s: unexpected events %v", name, got)
		}
	}
	if m.Subscribers("run-1") != 0 {
		t.Errorf("terminal event must drop the run's subscribers")
	}
	select {
	case ev := <-other:
		t.Errorf("run-2 subscriber received %+v", ev)
	default:
	}
}

func TestConnectionManager_CancelIsIdempotent(t *testing.T) {
	m := NewConnectionManager()
	ch, cancel := m.Subscribe("run-1")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Errorf("channel must be closed after cancel")
	}
	// A terminal event after cancel must not panic on a closed channel.
	_ = m.Report(context.Background(), models.ProgressEvent{RunID: "run-1", Status: models.RunStatusFailed})
}
