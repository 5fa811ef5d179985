package explorer

import (
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/controls"
)

// KeyDown handles a pressed action. Flight controls are held until KeyUp;
// everything else fires once. Repeats of held keys are ignored upstream.
func (a *App) KeyDown(action controls.Action) {
	if action.IsFlight() {
		a.input.Press(action)
		return
	}
	switch action {
	case controls.StartStop:
		if a.phase == PhaseReady {
			a.ToggleFlight()
		}
	case controls.Reset:
		a.ResetFlight()
	case controls.Reload:
		if err := a.Reload(a.ctx); err != nil {
			a.log.Error("reload failed", zap.Error(err))
		}
	case controls.CyclePart:
		if a.phase == PhaseReady {
			a.CyclePart()
		}
	case controls.FreeView:
		a.focus.EnableFreeControl()
	case controls.OpenModel:
		a.openModel()
	}
}

// KeyUp releases a held flight control.
func (a *App) KeyUp(action controls.Action) {
	if action.IsFlight() {
		a.input.Release(action)
	}
}

func (a *App) openModel() {
	if a.open == nil {
		return
	}
	mesh, ok := a.open()
	if !ok {
		return
	}
	if err := a.LoadModel(a.ctx, mesh); err != nil {
		a.log.Error("open model failed", zap.String("mesh", mesh), zap.Error(err))
	}
}
