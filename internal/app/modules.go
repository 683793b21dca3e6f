package app

import (
	"io"

	"github.com/vk/configurator/internal/registry"
	"github.com/vk/configurator/modules/basic"
	"github.com/vk/configurator/modules/env_vars"
	"github.com/vk/configurator/modules/http_client"
	prnt "github.com/vk/configurator/modules/print"
	"github.com/vk/configurator/modules/s3"
	"github.com/vk/configurator/modules/socketio"
)

// coreModules is the definitive list of component types compiled into the
// binary. The print types write to outW.
func coreModules(outW io.Writer) []registry.Plugin {
	return []registry.Plugin{
		basic.Plugin{},
		&prnt.Plugin{Out: outW},
		&env_vars.Plugin{},
		&http_client.Plugin{},
		&s3.Plugin{},
		&socketio.Plugin{},
	}
}
