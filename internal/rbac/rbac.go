package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// write covers edits, reassignment, completion and seen marks. correct may
// lower balances and is admin only.
const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionCredit  Action = "credit"
	ActionCorrect Action = "correct"
	ActionDestroy Action = "destroy"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAgent:
		return action == ActionRead || action == ActionWrite || action == ActionCredit
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleAgent, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
