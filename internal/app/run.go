package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vk/intentflow/internal/audit"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/engine"
	"github.com/vk/intentflow/internal/executor"
	"github.com/vk/intentflow/internal/intent"
	"github.com/vk/intentflow/internal/permission"
	"github.com/vk/intentflow/internal/result"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.appCfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.appCfg.HealthcheckPort)
	}

	in, err := intent.LoadFile(a.appCfg.IntentPath)
	if err != nil {
		return fmt.Errorf("failed to load intent: %w", err)
	}
	a.logger.Info("Intent loaded.", "category", in.Category, "confidence", in.Confidence, "sub_intents", len(in.SubIntents))

	eng := engine.New(
		a.config,
		a.registry,
		permission.NewPolicyGate(a.config),
		permission.StaticConfirmer(a.appCfg.AutoConfirm),
		audit.NewSlogSink(),
		executor.Options{
			MaxConcurrent: a.appCfg.MaxConcurrent,
			SafetyFactor:  a.appCfg.SafetyFactor,
		},
	)

	res, err := eng.PlanAndExecute(ctx, in, a.appCfg.Deadline)
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	if err := a.printResult(res); err != nil {
		return fmt.Errorf("rendering result: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	if res.Status == result.StatusFailure {
		return fmt.Errorf("plan '%s' failed: no action succeeded", res.PlanID)
	}
	return nil
}

// printResult writes the aggregated execution result as indented JSON.
func (a *App) printResult(res *result.ExecutionResult) error {
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
