package chatws

import "testing"

func TestParseConversationPath(t *testing.T) {
	cases := []struct {
		path   string
		wantID int64
		wantOK bool
	}{
		{"/ws/chat/42", 42, true},
		{"/ws/chat/0", 0, true},
		{"/ws/chat/999999", 999999, true},
		{"/ws/chat/abc", 0, false},
		{"/ws/chat/", 0, false},
		{"/ws/chat", 0, false},
		{"/ws/chat/42/extra", 0, false},
		{"/ws/chat/-1", 0, false},
		{"/ws/other/42", 0, false},
		{"/api/chat/42", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		id, err := ParseConversationPath(tc.path)
		if tc.wantOK {
			if err != nil {
				t.Errorf("%q: unexpected error %v", tc.path, err)
				continue
			}
			if id != tc.wantID {
				t.Errorf("%q: expected id %d, got %d", tc.path, tc.wantID, id)
			}
			continue
		}
		if err == nil {
			t.Errorf("%q: expected rejection, got id %d", tc.path, id)
		}
	}
}
