package model

import "testing"

func TestUpgradeNeverRegresses(t *testing.T) {
	cases := []struct {
		cur, next, want Status
	}{
		{StatusPending, StatusSent, StatusSent},
		{StatusSent, StatusDelivered, StatusDelivered},
		{StatusDelivered, StatusRead, StatusRead},
		{StatusRead, StatusDelivered, StatusRead},
		{StatusRead, StatusSent, StatusRead},
		{StatusSent, StatusPending, StatusSent},
		{StatusSent, StatusFailed, StatusSent},
		{StatusFailed, StatusSent, StatusSent},
		{StatusPending, StatusFailed, StatusPending},
	}
	for _, c := range cases {
		if got := Upgrade(c.cur, c.next); got != c.want {
			t.Errorf("Upgrade(%s, %s) = %s, want %s", c.cur, c.next, got, c.want)
		}
	}
}

func TestTempIDs(t *testing.T) {
	id := NewTempID()
	if !IsTempID(id) {
		t.Errorf("NewTempID() = %q, not recognized as temp", id)
	}
	if id == NewTempID() {
		t.Error("two temp ids collided")
	}
	if IsTempID("srv-123") {
		t.Error("server id classified as temp")
	}
}

func TestIsLocalConversation(t *testing.T) {
	if !IsLocalConversation("local-draft-1") {
		t.Error("local- prefix not recognized")
	}
	if IsLocalConversation("conv-1") {
		t.Error("server conversation classified as local")
	}
}
