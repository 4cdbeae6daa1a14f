package realtime

// Built-in group names. Membership is derived from the connection identity at
// register time and rebuilt from scratch on every new connection.
const (
	GroupAllUsers     = "AllUsers"
	GroupAdmins       = "Admins"
	GroupRegularUsers = "RegularUsers"
)

// UserGroup returns the per-user group name for a user id.
func UserGroup(userID string) string {
	return "User_" + userID
}
