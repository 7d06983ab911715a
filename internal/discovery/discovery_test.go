package discovery

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func testBuilder() Builder {
	return Builder{
		Prefix:                 "homeassistant",
		BaseTopic:              "kpm33b",
		UploadFrequencySeconds: 5,
		UploadFrequencyMinutes: 1,
	}
}

func TestTopic(t *testing.T) {
	b := testBuilder()

	tests := []struct {
		sensor string
		want   string
	}{
		{SensorPower, "homeassistant/sensor/kpm33b_33B1225950027/power/config"},
		{SensorEnergy, "homeassistant/sensor/kpm33b_33B1225950027/energy/config"},
	}

	for _, tt := range tests {
		if got := b.Topic("33B1225950027", tt.sensor); got != tt.want {
			t.Errorf("Topic(%q) = %q, want %q", tt.sensor, got, tt.want)
		}
	}
}

func TestPower(t *testing.T) {
	b := testBuilder()

	topic, payload := b.Power("33B1225950027", "")

	if topic != "homeassistant/sensor/kpm33b_33B1225950027/power/config" {
		t.Errorf("topic = %q", topic)
	}
	if payload.Name != "Active Power" {
		t.Errorf("Name = %q, want Active Power", payload.Name)
	}
	if payload.UniqueID != "kpm33b_33B1225950027_power" {
		t.Errorf("UniqueID = %q", payload.UniqueID)
	}
	if payload.StateTopic != "kpm33b/33B1225950027/seconds" {
		t.Errorf("StateTopic = %q", payload.StateTopic)
	}
	if payload.DeviceClass != "power" || payload.StateClass != "measurement" || payload.UnitOfMeasurement != "kW" {
		t.Errorf("class triple = %q/%q/%q, want power/measurement/kW",
			payload.DeviceClass, payload.StateClass, payload.UnitOfMeasurement)
	}
	if payload.ValueTemplate != "{{ value_json.active_power }}" {
		t.Errorf("ValueTemplate = %q", payload.ValueTemplate)
	}
}

func TestEnergy(t *testing.T) {
	b := testBuilder()

	topic, payload := b.Energy("33B1225950027", "")

	if topic != "homeassistant/sensor/kpm33b_33B1225950027/energy/config" {
		t.Errorf("topic = %q", topic)
	}
	if payload.UniqueID != "kpm33b_33B1225950027_energy" {
		t.Errorf("UniqueID = %q", payload.UniqueID)
	}
	if payload.StateTopic != "kpm33b/33B1225950027/minutes" {
		t.Errorf("StateTopic = %q", payload.StateTopic)
	}
	if payload.DeviceClass != "energy" || payload.StateClass != "total_increasing" || payload.UnitOfMeasurement != "kWh" {
		t.Errorf("class triple = %q/%q/%q, want energy/total_increasing/kWh",
			payload.DeviceClass, payload.StateClass, payload.UnitOfMeasurement)
	}
	if payload.ValueTemplate != "{{ value_json.active_energy }}" {
		t.Errorf("ValueTemplate = %q", payload.ValueTemplate)
	}
}

func TestExpireAfter(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		minutes int
		power   int
		energy  int
	}{
		{name: "five second upload", seconds: 5, minutes: 1, power: 8, energy: 90},
		{name: "even factor", seconds: 10, minutes: 2, power: 15, energy: 180},
		{name: "odd seconds", seconds: 7, minutes: 3, power: 11, energy: 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBuilder()
			b.UploadFrequencySeconds = tt.seconds
			b.UploadFrequencyMinutes = tt.minutes

			_, power := b.Power("33B1225950027", "")
			if power.ExpireAfter != tt.power {
				t.Errorf("power ExpireAfter = %d, want %d", power.ExpireAfter, tt.power)
			}

			_, energy := b.Energy("33B1225950027", "")
			if energy.ExpireAfter != tt.energy {
				t.Errorf("energy ExpireAfter = %d, want %d", energy.ExpireAfter, tt.energy)
			}
		})
	}
}

func TestDeviceBlockSharedAcrossSensors(t *testing.T) {
	b := testBuilder()

	_, power := b.Power("33B1225950027", "building1/floor2")
	_, energy := b.Energy("33B1225950027", "building1/floor2")

	if !reflect.DeepEqual(power.Device, energy.Device) {
		t.Errorf("device blocks differ:\npower  = %+v\nenergy = %+v", power.Device, energy.Device)
	}
}

func TestDeviceBlock_ContextAsName(t *testing.T) {
	b := testBuilder()

	_, payload := b.Power("33B1225950027", "building1/floor2")

	if payload.Device.Name != "building1/floor2" {
		t.Errorf("Device.Name = %q, want context label", payload.Device.Name)
	}
	if payload.StateTopic != "kpm33b/building1/floor2/33B1225950027/seconds" {
		t.Errorf("StateTopic = %q, want context segment", payload.StateTopic)
	}
}

func TestDeviceBlock_DefaultName(t *testing.T) {
	b := testBuilder()

	_, payload := b.Energy("33B1225950027", "")

	if payload.Device.Name != "KPM33B 33B1225950027" {
		t.Errorf("Device.Name = %q, want generic label", payload.Device.Name)
	}
	if got := payload.Device.Identifiers; len(got) != 1 || got[0] != "kpm33b_33B1225950027" {
		t.Errorf("Identifiers = %v", got)
	}
	if payload.Device.Manufacturer != Manufacturer || payload.Device.Model != Model {
		t.Errorf("manufacturer/model = %q/%q", payload.Device.Manufacturer, payload.Device.Model)
	}
}

func TestPayloadJSONKeys(t *testing.T) {
	b := testBuilder()
	_, payload := b.Power("33B1225950027", "")

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshalling payload: %v", err)
	}

	for _, key := range []string{
		`"name"`, `"unique_id"`, `"state_topic"`, `"device_class"`,
		`"state_class"`, `"unit_of_measurement"`, `"value_template"`,
		`"suggested_display_precision"`, `"expire_after"`, `"device"`,
		`"identifiers"`, `"manufacturer"`, `"model"`,
	} {
		if !strings.Contains(string(data), key) {
			t.Errorf("payload JSON missing %s: %s", key, data)
		}
	}
}
