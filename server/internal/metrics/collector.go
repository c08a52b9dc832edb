package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/compute"
	"github.com/buoywatch/buoywatch/server/internal/status"
)

const namespace = "buoywatch"

// Metric family names.
const (
	IngestsTotal       = namespace + "_ingests_total"
	AlertsTotal        = namespace + "_alerts_total"
	CyclesTotal        = namespace + "_status_cycles_total"
	CycleFailuresTotal = namespace + "_status_station_failures_total"
	StationWQI         = namespace + "_station_wqi"
	StationOnline      = namespace + "_station_online"
	StationMissing     = namespace + "_station_sensors_missing"
)

type alertKey struct {
	category types.Category
	severity types.Severity
}

// Collector accumulates observations. It is safe for concurrent use.
type Collector struct {
	mu              sync.Mutex
	ingests         map[string]float64
	alerts          map[alertKey]float64
	cycles          map[string]float64 // by result: "ok" or "skipped"
	stationFailures float64
	wqi             map[string]float64
	online          map[string]float64
	missing         map[string]float64
}

// New creates an empty Collector.
func New() *Collector {
	return &Collector{
		ingests: make(map[string]float64),
		alerts:  make(map[alertKey]float64),
		cycles:  make(map[string]float64),
		wqi:     make(map[string]float64),
		online:  make(map[string]float64),
		missing: make(map[string]float64),
	}
}

// ObserveIngest counts a completed ingest and records the station's index.
func (c *Collector) ObserveIngest(stationID string, score compute.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingests[stationID]++
	c.wqi[stationID] = score.Index
}

// ObserveAlert counts one recorded alert. It matches alerts.Listener.
func (c *Collector) ObserveAlert(a types.AlertEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts[alertKey{a.Category, a.Severity}]++
}

// ObserveStation records the latest connectivity snapshot of a station.
func (c *Collector) ObserveStation(snap types.StatusSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := 0.0
	if snap.State == types.StateOnline {
		v = 1
	}
	c.online[snap.StationID] = v
	c.missing[snap.StationID] = float64(len(snap.Missing))
}

// ObserveCycle counts a scheduler cycle.
func (c *Collector) ObserveCycle(res status.CycleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res.Skipped {
		c.cycles["skipped"]++
		return
	}
	c.cycles["ok"]++
	c.stationFailures += float64(res.StationsFailed)
}

// Gather returns every metric family, sorted by name.
func (c *Collector) Gather() []*dto.MetricFamily {
	c.mu.Lock()
	defer c.mu.Unlock()

	fams := []*dto.MetricFamily{
		perLabel(IngestsTotal, "Readings accepted per station.", dto.MetricType_COUNTER, "station", c.ingests),
		c.alertFamily(),
		perLabel(CyclesTotal, "Status scheduler cycles by result.", dto.MetricType_COUNTER, "result", c.cycles),
		{
			Name:   proto.String(CycleFailuresTotal),
			Help:   proto.String("Stations that failed during a status cycle."),
			Type:   dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(c.stationFailures)}}},
		},
		perLabel(StationWQI, "Most recent water quality index per station.", dto.MetricType_GAUGE, "station", c.wqi),
		perLabel(StationOnline, "1 when the station was online at the last status cycle.", dto.MetricType_GAUGE, "station", c.online),
		perLabel(StationMissing, "Expected parameters not reporting on time.", dto.MetricType_GAUGE, "station", c.missing),
	}
	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// ServeHTTP writes the text exposition.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range c.Gather() {
		if len(mf.Metric) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}

func (c *Collector) alertFamily() *dto.MetricFamily {
	keys := make([]alertKey, 0, len(c.alerts))
	for k := range c.alerts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		return keys[i].severity < keys[j].severity
	})

	mf := &dto.MetricFamily{
		Name: proto.String(AlertsTotal),
		Help: proto.String("Alerts recorded by category and severity."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range keys {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: []*dto.LabelPair{
				{Name: proto.String("category"), Value: proto.String(string(k.category))},
				{Name: proto.String("severity"), Value: proto.String(string(k.severity))},
			},
			Counter: &dto.Counter{Value: proto.Float64(c.alerts[k])},
		})
	}
	return mf
}

// perLabel builds a family with one series per map key.
func perLabel(name, help string, typ dto.MetricType, label string, values map[string]float64) *dto.MetricFamily {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: typ.Enum(),
	}
	for _, k := range keys {
		m := &dto.Metric{
			Label: []*dto.LabelPair{{Name: proto.String(label), Value: proto.String(k)}},
		}
		if typ == dto.MetricType_COUNTER {
			m.Counter = &dto.Counter{Value: proto.Float64(values[k])}
		} else {
			m.Gauge = &dto.Gauge{Value: proto.Float64(values[k])}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}
