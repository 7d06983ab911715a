package mqtt

import (
	"testing"
)

func TestTopicsData(t *testing.T) {
	topics := Topics{Main: "kpm33b", SetTimePrefix: "MQTT_SETTIME_"}

	tests := []struct {
		name    string
		meterID string
		kind    string
		want    string
	}{
		{
			name:    "seconds",
			meterID: "33B1225950027",
			kind:    KindSeconds,
			want:    "kpm33b/33B1225950027/seconds",
		},
		{
			name:    "minutes",
			meterID: "33B1225950027",
			kind:    KindMinutes,
			want:    "kpm33b/33B1225950027/minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topics.Data(tt.meterID, tt.kind)
			if got != tt.want {
				t.Errorf("Data() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTopicsDiscoverySubscription(t *testing.T) {
	topics := Topics{Main: "kpm33b"}
	if got := topics.DiscoverySubscription(); got != "kpm33b/+/seconds" {
		t.Errorf("DiscoverySubscription() = %q, want %q", got, "kpm33b/+/seconds")
	}
}

func TestTopicsSetTime(t *testing.T) {
	topics := Topics{SetTimePrefix: "MQTT_SETTIME_"}
	if got := topics.SetTime("33B1225950028"); got != "MQTT_SETTIME_25950028" {
		t.Errorf("SetTime() = %q, want %q", got, "MQTT_SETTIME_25950028")
	}
}

func TestMeterAddress(t *testing.T) {
	tests := []struct {
		meterID string
		want    string
	}{
		{"33B1225950027", "25950027"},
		{"12345678", "12345678"},
		{"short", "short"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MeterAddress(tt.meterID); got != tt.want {
			t.Errorf("MeterAddress(%q) = %q, want %q", tt.meterID, got, tt.want)
		}
	}
}

func TestMeterIDFromData(t *testing.T) {
	tests := []struct {
		name   string
		topic  string
		want   string
		wantOK bool
	}{
		{
			name:   "plain data topic",
			topic:  "kpm33b/33B1225950027/seconds",
			want:   "33B1225950027",
			wantOK: true,
		},
		{
			name:   "too few segments",
			topic:  "kpm33b/seconds",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MeterIDFromData(tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("MeterIDFromData(%q) ok = %v, want %v", tt.topic, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("MeterIDFromData(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}
