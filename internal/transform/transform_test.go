package transform

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func decodeRaw(t *testing.T, body string) Raw {
	t.Helper()
	var raw Raw
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("decoding test body: %v", err)
	}
	return raw
}

func TestRate(t *testing.T) {
	raw := decodeRaw(t, `{"id":"33B1225950027","time":"20260112163900","zyggl":6.6905,"isend":"1"}`)

	rec, err := Rate(raw)
	if err != nil {
		t.Fatalf("Rate() error = %v", err)
	}

	if rec.ID != "33B1225950027" {
		t.Errorf("ID = %v, want 33B1225950027", rec.ID)
	}
	if rec.Time != "20260112163900" {
		t.Errorf("Time = %v, want 20260112163900", rec.Time)
	}
	if rec.ActivePower != 6.6905 {
		t.Errorf("ActivePower = %v, want 6.6905", rec.ActivePower)
	}
}

func TestRate_OutputFieldSet(t *testing.T) {
	raw := decodeRaw(t, `{"id":"33B1225950027","time":"20260112163900","zyggl":6.6905,"isend":"1","extra":"dropped"}`)

	rec, err := Rate(raw)
	if err != nil {
		t.Fatalf("Rate() error = %v", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshalling record: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshalling record: %v", err)
	}

	want := map[string]any{
		"id":           "33B1225950027",
		"time":         "20260112163900",
		"active_power": 6.6905,
	}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("output = %v, want exactly %v", out, want)
	}
}

func TestRate_MissingMeasurement(t *testing.T) {
	// Partial telemetry (missing measurement, present id/time) is valid;
	// the absent field becomes an explicit null.
	raw := decodeRaw(t, `{"id":"33B1225950027","time":"20260112163900","isend":"1"}`)

	rec, err := Rate(raw)
	if err != nil {
		t.Fatalf("Rate() error = %v", err)
	}
	if rec.ActivePower != nil {
		t.Errorf("ActivePower = %v, want nil", rec.ActivePower)
	}

	data, _ := json.Marshal(rec)
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshalling record: %v", err)
	}
	if v, present := out["active_power"]; !present || v != nil {
		t.Errorf("active_power = %v (present=%v), want explicit null", v, present)
	}
}

func TestRate_SplitPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "isend missing", body: `{"id":"33B1225950027","time":"20260112163900","zyggl":1.0}`},
		{name: "isend zero", body: `{"id":"33B1225950027","isend":"0"}`},
		{name: "isend numeric", body: `{"id":"33B1225950027","isend":1}`},
		{name: "isend other", body: `{"id":"33B1225950027","isend":"2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rate(decodeRaw(t, tt.body))
			if !errors.Is(err, ErrSplitPayload) {
				t.Errorf("Rate() error = %v, want ErrSplitPayload", err)
			}
		})
	}
}

func TestCumulative(t *testing.T) {
	raw := decodeRaw(t, `{"id":"33B1225950027","time":"20260112164000","zygsz":1234.56,"isend":"1"}`)

	rec, err := Cumulative(raw)
	if err != nil {
		t.Fatalf("Cumulative() error = %v", err)
	}

	if rec.ActiveEnergy != 1234.56 {
		t.Errorf("ActiveEnergy = %v, want 1234.56", rec.ActiveEnergy)
	}

	data, _ := json.Marshal(rec)
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshalling record: %v", err)
	}
	if len(out) != 3 {
		t.Errorf("output has %d fields %v, want 3", len(out), out)
	}
	if _, present := out["active_energy"]; !present {
		t.Error("output missing active_energy")
	}
}

func TestCumulative_SplitPayload(t *testing.T) {
	raw := decodeRaw(t, `{"id":"33B1225950027","zygsz":1234.56,"isend":"0"}`)
	if _, err := Cumulative(raw); !errors.Is(err, ErrSplitPayload) {
		t.Errorf("Cumulative() error = %v, want ErrSplitPayload", err)
	}
}

func TestDeviceID(t *testing.T) {
	tests := []struct {
		name string
		id   any
		want string
	}{
		{name: "string id", id: "33B1225950027", want: "33B1225950027"},
		{name: "nil id", id: nil, want: "unknown"},
		{name: "empty id", id: "", want: "unknown"},
		{name: "numeric id", id: 42.0, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeviceID(tt.id); got != tt.want {
				t.Errorf("DeviceID(%v) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}
