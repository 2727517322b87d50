package audit

import "testing"

func TestVerbForMethod(t *testing.T) {
	tests := []struct {
		method string
		want   Verb
		ok     bool
	}{
		{"POST", VerbCreate, true},
		{"PUT", VerbUpdate, true},
		{"PATCH", VerbUpdate, true},
		{"DELETE", VerbDelete, true},
		{"delete", VerbDelete, true},
		{"GET", "", false},
		{"HEAD", "", false},
		{"OPTIONS", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := VerbForMethod(tt.method)
		if got != tt.want || ok != tt.ok {
			t.Errorf("VerbForMethod(%q) = (%q, %v), want (%q, %v)", tt.method, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAction(t *testing.T) {
	tests := []struct {
		entity string
		verb   Verb
		want   string
	}{
		{"user", VerbCreate, "USER_CREATE"},
		{"user", VerbList, "USER_LIST"},
		{"event", VerbUpdate, "EVENT_UPDATE"},
		{"Order", VerbDelete, "ORDER_DELETE"},
		{"user", VerbView, "USER_VIEW"},
	}
	for _, tt := range tests {
		if got := Action(tt.entity, tt.verb); got != tt.want {
			t.Errorf("Action(%q, %q) = %q, want %q", tt.entity, tt.verb, got, tt.want)
		}
	}
}

func TestSessionActions(t *testing.T) {
	for _, a := range []string{"login", "logout", "login_failed"} {
		if !IsSessionAction(a) {
			t.Errorf("IsSessionAction(%q) = false, want true", a)
		}
	}
	for _, a := range []string{"USER_CREATE", "LOGIN", ""} {
		if IsSessionAction(a) {
			t.Errorf("IsSessionAction(%q) = true, want false", a)
		}
	}

	got := SessionActions()
	if len(got) != 3 {
		t.Fatalf("SessionActions() len = %d, want 3", len(got))
	}
	got[0] = "mutated"
	if !IsSessionAction("login") {
		t.Error("SessionActions() must return a copy")
	}
}
