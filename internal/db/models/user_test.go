package models

import "testing"

func TestUser_IsAdmin(t *testing.T) {
	var nilUser *User
	if nilUser.IsAdmin() {
		t.Error("nil user must not be admin")
	}
	if (&User{Role: RoleArtist}).IsAdmin() {
		t.Error("artist must not be admin")
	}
	if !(&User{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin role should be admin")
	}
}

func TestUser_SnapshotOmitsCredentials(t *testing.T) {
	u := &User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: RoleArtist, PasswordHash: "$2a$hash"}
	snap := u.Snapshot()
	if _, ok := snap["password_hash"]; ok {
		t.Error("snapshot must not contain the password hash")
	}
	if snap["name"] != "Ana" || snap["role"] != RoleArtist {
		t.Errorf("snapshot = %v", snap)
	}
	var nilUser *User
	if nilUser.Snapshot() != nil {
		t.Error("nil user snapshot should be nil")
	}
}
