package ui

import (
	"testing"

	"github.com/lumipallolabs/qrlens/internal/capture"
)

func TestSpinnerAdvancesWithTicks(t *testing.T) {
	a := App{spinnerArmed: true}
	a.state.Permission = capture.PermissionChecking

	before := a.placeholder()
	model, cmd := a.Update(spinnerTickMsg{})
	a = model.(App)
	if cmd == nil {
		t.Fatal("tick not re-armed while the placeholder animates")
	}
	if a.spinner != 1 {
		t.Errorf("spinner frame = %d, want 1", a.spinner)
	}
	if got := a.placeholder(); got == before {
		t.Errorf("placeholder unchanged after a tick: %q", got)
	}
}

func TestSpinnerChainRetiresWhenIdle(t *testing.T) {
	a := App{spinnerArmed: true}

	model, cmd := a.Update(spinnerTickMsg{})
	a = model.(App)
	if cmd != nil {
		t.Error("tick re-armed with nothing animating")
	}
	if a.spinnerArmed {
		t.Error("spinner chain still marked armed")
	}
	// The next animated event starts exactly one fresh chain.
	if first := a.armSpinner(); first == nil {
		t.Error("spinner did not re-arm after retiring")
	}
	if second := a.armSpinner(); second != nil {
		t.Error("second arm started a duplicate chain")
	}
}
