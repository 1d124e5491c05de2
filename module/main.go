// Package main is a module with a navigation scenario runner service model.
package main

import (
	"context"
	"strings"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/utils"

	viamnavtest "github.com/viam-modules/viam-navtest"
)

// Versioning variables which are replaced by LD flags.
var (
	Version     = "development"
	GitRevision = ""
)

func main() {
	utils.ContextualMain(mainWithArgs, module.NewLoggerFromArgs("navtestModule"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var versionFields []interface{}
	if Version != "" {
		versionFields = append(versionFields, "version", Version)
	}
	if GitRevision != "" {
		versionFields = append(versionFields, "git_rev", GitRevision)
	}
	if len(versionFields) != 0 {
		logger.Infow(viamnavtest.Model.String(), versionFields...)
	} else {
		logger.Info(viamnavtest.Model.String() + " built from source; version unknown")
	}

	if len(args) == 2 && strings.HasSuffix(args[1], "-version") {
		return nil
	}

	navtestModule, err := module.NewModuleFromArgs(ctx, logger)
	if err != nil {
		return err
	}

	if err = navtestModule.AddModelFromRegistry(ctx, generic.API, viamnavtest.Model); err != nil {
		return err
	}

	err = navtestModule.Start(ctx)
	defer navtestModule.Close(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
