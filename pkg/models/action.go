package models

// ActionKind selects which concrete remote operation a step invokes. The
// vocabulary is closed: unknown kinds are rejected when a submission is
// parsed, never at dispatch time.
type ActionKind string

const (
	ActionTestConnection ActionKind = "test_connection"
	ActionRunCommand     ActionKind = "run_command"
	ActionInstall        ActionKind = "install"
	ActionSyncMedia      ActionKind = "sync_media"
	ActionReboot         ActionKind = "reboot"
)

// Known reports whether the kind belongs to the closed action vocabulary.
func (k ActionKind) Known() bool {
	switch k {
	case ActionTestConnection, ActionRunCommand, ActionInstall, ActionSyncMedia, ActionReboot:
		return true
	default:
		return false
	}
}
