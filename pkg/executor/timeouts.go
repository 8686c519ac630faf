package executor

import (
	"time"

	install_action "github.com/unearth4334/vast-api-sub001/pkg/actions/install"
	reboot_action "github.com/unearth4334/vast-api-sub001/pkg/actions/reboot"
	run_command_action "github.com/unearth4334/vast-api-sub001/pkg/actions/run_command"
	sync_media_action "github.com/unearth4334/vast-api-sub001/pkg/actions/sync_media"
	test_connection_action "github.com/unearth4334/vast-api-sub001/pkg/actions/test_connection"
	"github.com/unearth4334/vast-api-sub001/pkg/models"
)

// DefaultTimeout returns the per-kind budget: short status checks get tight
// budgets, long installs and syncs generous ones.
func DefaultTimeout(kind models.ActionKind) time.Duration {
	switch kind {
	case models.ActionTestConnection:
		return test_connection_action.DefaultTimeout
	case models.ActionRunCommand:
		return run_command_action.DefaultTimeout
	case models.ActionInstall:
		return install_action.DefaultTimeout
	case models.ActionSyncMedia:
		return sync_media_action.DefaultTimeout
	case models.ActionReboot:
		return reboot_action.DefaultTimeout
	default:
		return run_command_action.DefaultTimeout
	}
}
