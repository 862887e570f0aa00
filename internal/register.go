package internal

import (
	"github.com/teambrains/teambrains-backend/internal/handler"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

// registerManagers instantiates every manager the handler package
// collected at init time.
func registerManagers(conf *handler.RegisterConfig) []handler.Manager {
	var managers []handler.Manager
	for _, register := range handler.Registers {
		manager := register(conf)
		managers = append(managers, manager)
		logutils.Log.Infof("Registered manager: %s", manager.GetName())
	}
	return managers
}
