// Package policy implements the risk gate for automatic command dispatch.
package policy

import "shellpilot/internal/types"

// Settings mirrors the user-facing execution configuration. AutoRun is the
// master switch; MaxAutoRisk is the highest risk label the gate will pass.
type Settings struct {
	AutoRun     bool
	MaxAutoRisk types.RiskLevel
}

// CanAutoExecute reports whether a command with the given declared risk may
// be dispatched without manual confirmation. Stateless and side-effect-free;
// safe to call once per command or once per block.
func CanAutoExecute(s Settings, risk types.RiskLevel) bool {
	if !s.AutoRun {
		return false
	}
	return risk <= s.MaxAutoRisk
}

// MaxRisk returns the highest risk carried by any command in the batch.
// An empty batch is RiskLow so that an analysis-only step is never blocked.
func MaxRisk(cmds []types.Command) types.RiskLevel {
	max := types.RiskLow
	for _, c := range cmds {
		if c.Risk > max {
			max = c.Risk
		}
	}
	return max
}
