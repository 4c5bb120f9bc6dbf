// Package main is a viam module serving a swerve drive base.
package main

import (
	"context"

	goutils "go.viam.com/utils"

	"go.viam.com/rdk/components/base"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
)

var model = resource.NewModel("owatonnarobotics", "swerve", "base")

// Version number
var version = "1.0.0"

func main() {
	goutils.ContextualMain(mainWithArgs, logging.NewDebugLogger("swerveBaseModule"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	registerBase()
	swerveModule, err := module.NewModuleFromArgs(ctx, logger)
	if err != nil {
		return err
	}
	if err := swerveModule.AddModelFromRegistry(ctx, base.API, model); err != nil {
		return err
	}

	err = swerveModule.Start(ctx)
	defer swerveModule.Close(ctx)
	if err != nil {
		return err
	}
	logger.Infow("swerve base module started", "version", version, "model", model.String())
	<-ctx.Done()
	return nil
}

// registerBase adds the base's constructor and config to the component registry.
func registerBase() {
	resource.RegisterComponent(
		base.API,
		model,
		resource.Registration[base.Base, *Config]{Constructor: newBase})
}
