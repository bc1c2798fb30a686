package ha

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/golang/glog"
	mqttIface "github.com/tetragramaton/rak13015-go/internal/interface/mqtt"
)

// TopicRoot prefixes every device topic: <root>/<device>/state, <root>/<device>/meta.
const TopicRoot = "rak13015"

const manufacturer = "RAKwireless"

// Meta is the retained announcement of a device and the capabilities it
// publishes on its state topic.
type Meta struct {
	DeviceID string            `json:"device_id"`
	Model    string            `json:"model,omitempty"`
	Area     string            `json:"area,omitempty"`
	Caps     []string          `json:"caps"`
	Units    map[string]string `json:"units,omitempty"`
}

type Device struct {
	Identifiers   []string `json:"identifiers,omitempty"`
	Manufacturer  string   `json:"manufacturer,omitempty"`
	Model         string   `json:"model,omitempty"`
	Name          string   `json:"name,omitempty"`
	SuggestedArea string   `json:"suggested_area,omitempty"`
}

type SensorConfig struct {
	Name         string                 `json:"name"`
	UniqueID     string                 `json:"unique_id"`
	StateTopic   string                 `json:"state_topic"`
	ValueTpl     string                 `json:"value_template,omitempty"`
	DeviceClass  string                 `json:"device_class,omitempty"`
	StateClass   string                 `json:"state_class,omitempty"`
	UnitOfMeas   string                 `json:"unit_of_measurement,omitempty"`
	Device       *Device                `json:"device,omitempty"`
	QoS          int                    `json:"qos,omitempty"`
	Availability []map[string]string    `json:"availability,omitempty"`
	Extra        map[string]interface{} `json:"-"`
}

func (c *SensorConfig) Marshal() ([]byte, error) {
	type alias SensorConfig
	a := alias(*c)
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	if c.Extra != nil {
		var base map[string]interface{}
		if err := json.Unmarshal(b, &base); err != nil {
			return nil, err
		}
		for k, v := range c.Extra {
			base[k] = v
		}
		return json.Marshal(base)
	}
	return b, nil
}

func TopicSensorConfig(cap, unique string) string {
	return fmt.Sprintf("homeassistant/sensor/%s/%s/config", unique, cap)
}

func StateTopic(deviceID string) string { return TopicRoot + "/" + deviceID + "/state" }
func MetaTopic(deviceID string) string  { return TopicRoot + "/" + deviceID + "/meta" }

// MetaFilter matches the meta topic of every device.
const MetaFilter = TopicRoot + "/+/meta"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func Sanitize(s string) string {
	return strings.ToLower(unsafeChars.ReplaceAllString(s, "_"))
}

func deviceClass(unit string) string {
	switch unit {
	case "mA", "A":
		return "current"
	case "V":
		return "voltage"
	case "°C":
		return "temperature"
	}
	return ""
}

// SensorConfigs builds one discovery config per capability of meta, keyed by
// its discovery topic.
func SensorConfigs(meta Meta) map[string]*SensorConfig {
	unique := Sanitize(meta.DeviceID)
	device := &Device{
		Identifiers:   []string{meta.DeviceID},
		Manufacturer:  manufacturer,
		Model:         meta.Model,
		Name:          meta.DeviceID,
		SuggestedArea: meta.Area,
	}
	out := make(map[string]*SensorConfig, len(meta.Caps))
	for _, c := range meta.Caps {
		capID := Sanitize(c)
		unit := meta.Units[c]
		out[TopicSensorConfig(capID, unique)] = &SensorConfig{
			Name:        fmt.Sprintf("%s %s", meta.DeviceID, strings.ReplaceAll(c, ".", " ")),
			UniqueID:    unique + "_" + capID,
			StateTopic:  StateTopic(meta.DeviceID),
			ValueTpl:    fmt.Sprintf(`{{ value_json.value if value_json.cap == %q }}`, c),
			DeviceClass: deviceClass(unit),
			StateClass:  "measurement",
			UnitOfMeas:  unit,
			Device:      device,
			QoS:         1,
		}
	}
	return out
}

// PublishDiscovery publishes the retained discovery configs of meta.
func PublishDiscovery(pub mqttIface.Publisher, meta Meta) error {
	var failed int
	for topic, cfg := range SensorConfigs(meta) {
		b, err := cfg.Marshal()
		if err != nil {
			glog.Errorf("ha: marshal %s: %v", topic, err)
			failed++
			continue
		}
		if err := pub.PublishEvent(mqttIface.Message{
			Topic:   topic,
			Payload: b,
			QoS:     1,
			Retain:  true,
		}); err != nil {
			glog.Errorf("ha: publish %s: %v", topic, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("ha: %d of %d discovery configs not published", failed, len(meta.Caps))
	}
	glog.Infof("ha: discovery published for %s (%v)", meta.DeviceID, meta.Caps)
	return nil
}
