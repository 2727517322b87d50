package audit

import (
	"net/http"
	"strings"
)

// Verb is the kind of operation recorded in an action name.
type Verb string

const (
	VerbCreate Verb = "CREATE"
	VerbUpdate Verb = "UPDATE"
	VerbDelete Verb = "DELETE"
	VerbList   Verb = "LIST"
	VerbView   Verb = "VIEW"
)

// Session actions. They are stored verbatim (lower case) and expire sooner than
// everything else.
const (
	ActionLogin       = "login"
	ActionLogout      = "logout"
	ActionLoginFailed = "login_failed"
)

var sessionActions = []string{ActionLogin, ActionLogout, ActionLoginFailed}

// SessionActions returns the actions governed by the short retention window.
func SessionActions() []string {
	out := make([]string, len(sessionActions))
	copy(out, sessionActions)
	return out
}

// IsSessionAction reports whether action is one of SessionActions.
func IsSessionAction(action string) bool {
	for _, a := range sessionActions {
		if a == action {
			return true
		}
	}
	return false
}

// VerbForMethod maps a mutating HTTP method to its verb. Read-only and unknown
// methods report false.
func VerbForMethod(method string) (Verb, bool) {
	switch strings.ToUpper(method) {
	case http.MethodPost:
		return VerbCreate, true
	case http.MethodPut, http.MethodPatch:
		return VerbUpdate, true
	case http.MethodDelete:
		return VerbDelete, true
	default:
		return "", false
	}
}

// Action builds the stored action name, e.g. Action("user", VerbCreate) == "USER_CREATE".
func Action(entityType string, verb Verb) string {
	return strings.ToUpper(entityType) + "_" + string(verb)
}
