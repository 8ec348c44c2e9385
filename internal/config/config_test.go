package config

import "testing"

func TestParseReminderTime(t *testing.T) {
	tests := []struct {
		raw     string
		want    ReminderTime
		wantErr bool
	}{
		{"", ReminderTime{Hour: 18}, false},
		{"18:00", ReminderTime{Hour: 18}, false},
		{"07:30", ReminderTime{Hour: 7, Minute: 30}, false},
		{"0:00", ReminderTime{}, false},
		{"23:59", ReminderTime{Hour: 23, Minute: 59}, false},
		{"18", ReminderTime{}, true},
		{"24:00", ReminderTime{}, true},
		{"18:60", ReminderTime{}, true},
		{"aa:bb", ReminderTime{}, true},
		{"18:00:00", ReminderTime{}, true},
	}

	for _, tt := range tests {
		got, err := ParseReminderTime(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseReminderTime(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseReminderTime(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseReminderTime(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}
