package model

// Permission represents a string code for a specific proctor action.
type Permission string

const (
	// PermissionExamsRead allows viewing exams and their answer keys.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows creating exams and authoring questions.
	PermissionExamsWrite Permission = "exams:write"

	// PermissionExamsPublish allows publishing exams to make them available to students.
	PermissionExamsPublish Permission = "exams:publish"

	// PermissionSessionsManage allows opening, starting and ending proctored sessions.
	PermissionSessionsManage Permission = "sessions:manage"

	// PermissionSessionsMonitor allows reading activity logs and the live monitor.
	PermissionSessionsMonitor Permission = "sessions:monitor"

	// PermissionGradesRead allows viewing exam results.
	PermissionGradesRead Permission = "grades:read"

	// PermissionGradesOverride allows assigning manual scores.
	PermissionGradesOverride Permission = "grades:override"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionExamsRead,
	PermissionExamsWrite,
	PermissionExamsPublish,
	PermissionSessionsManage,
	PermissionSessionsMonitor,
	PermissionGradesRead,
	PermissionGradesOverride,
}

// PermissionCodes returns the string form of perms.
func PermissionCodes(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
