package registry

import (
	"log/slog"

	install_action "github.com/unearth4334/vast-api-sub001/pkg/actions/install"
	reboot_action "github.com/unearth4334/vast-api-sub001/pkg/actions/reboot"
	run_command_action "github.com/unearth4334/vast-api-sub001/pkg/actions/run_command"
	sync_media_action "github.com/unearth4334/vast-api-sub001/pkg/actions/sync_media"
	test_connection_action "github.com/unearth4334/vast-api-sub001/pkg/actions/test_connection"
	"github.com/unearth4334/vast-api-sub001/pkg/remote"
)

// Default builds a registry with every action kind of the closed vocabulary.
func Default(logger *slog.Logger, client *remote.Client) *Registry {
	r := NewRegistry(logger)

	r.Register(test_connection_action.NewFactory(client))
	r.Register(run_command_action.NewFactory(client))
	r.Register(install_action.NewFactory(client))
	r.Register(sync_media_action.NewFactory(client))
	r.Register(reboot_action.NewFactory(client))

	return r
}
