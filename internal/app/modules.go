package app

import (
	"github.com/vk/intentflow/internal/registry"
	"github.com/vk/intentflow/modules/browser"
	"github.com/vk/intentflow/modules/device"
	"github.com/vk/intentflow/modules/httpapi"
	"github.com/vk/intentflow/modules/matheval"
	"github.com/vk/intentflow/modules/memory"
	"github.com/vk/intentflow/modules/respond"
	"github.com/vk/intentflow/modules/script"
	"github.com/vk/intentflow/modules/speak"
)

// coreModules is the definitive list of all capability modules that are
// compiled into the intentflow binary.
var coreModules = []registry.Module{
	&memory.Module{},
	&httpapi.Module{},
	&matheval.Module{},
	&script.Module{},
	&device.Module{},
	&browser.Module{},
	&respond.Module{},
	&speak.Module{},
}
