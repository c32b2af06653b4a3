package influx

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/zberg/go-flexismart/internal/coordinator"
	"github.com/zberg/go-flexismart/internal/health"
	"github.com/zberg/go-flexismart/pkg/flexismart"
)

const (
	MeasurementModule = "flexismart_module"
	MeasurementHealth = "flexismart_health"
)

// PointWriter accepts points. *Client implements it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Recorder turns coordinator updates into points.
type Recorder struct {
	w   PointWriter
	now func() time.Time
}

// NewRecorder returns a recorder writing to w.
func NewRecorder(w PointWriter) *Recorder {
	return &Recorder{w: w, now: time.Now}
}

// AttachDevice records every poll of dc: a module point after a successful
// poll and a health point after every poll.
func (r *Recorder) AttachDevice(dc *coordinator.DeviceCoordinator) {
	dc.Subscribe(func() {
		ts := r.now()
		if dc.LastUpdateSuccess() {
			if data, ok := dc.Data(); ok && data != nil {
				r.w.WritePoint(ModulePoint(data, ts))
			}
		}
		r.w.WritePoint(HealthPoint(dc.Key(), dc.Health(), ts))
	})
}

func moduleTags(zone, module int) map[string]string {
	return map[string]string{
		"zone":   strconv.Itoa(zone),
		"module": strconv.Itoa(module),
	}
}

// ModulePoint is the telemetry of one module poll.
func ModulePoint(data *flexismart.ModuleData, ts time.Time) *write.Point {
	tags := moduleTags(data.Zone, data.Module)
	tags["identifier"] = data.Identifier

	fields := map[string]any{
		"current_temperature":   data.CurrentTemperature,
		"target_temperature":    data.TargetTemperature,
		"temperature_offset":    data.TemperatureOffset,
		"boost_active":          data.BoostActive,
		"boost_minutes_left":    int64(data.BoostTimeLeft / time.Minute),
		"window_open_detection": data.WindowOpenDetection,
	}
	if data.Extended {
		fields["anti_freeze_temperature"] = data.AntiFreezeTemperature
		fields["holiday_active"] = data.Holiday.Active
	}
	return write.NewPoint(MeasurementModule, tags, fields, ts)
}

// HealthPoint is the availability state of one module after a poll.
func HealthPoint(key coordinator.ModuleKey, snap health.Snapshot, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementHealth, moduleTags(key.Zone, key.Module), map[string]any{
		"consecutive_failures": int64(snap.ConsecutiveFailures),
		"available":            snap.Available,
		"next_delay_seconds":   snap.NextDelay.Seconds(),
	}, ts)
}
