package hotspot

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/kitchen360/catalog/internal/hotspot"

type metrics struct {
	resyncs     metric.Int64Counter
	rendered    metric.Int64Counter
	requested   metric.Int64Counter
	created     metric.Int64Counter
	selections  metric.Int64Counter
	lookupMiss  metric.Int64Counter
	duplicates  metric.Int64Counter
	fatalErrors metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&out.resyncs, "hotspot.resyncs", "Full marker rebuilds"},
		{&out.rendered, "hotspot.markers.rendered", "Markers added during rebuilds"},
		{&out.requested, "hotspot.creations.requested", "Panorama clicks that opened a creation request"},
		{&out.created, "hotspot.creations.completed", "Entities created through the controller"},
		{&out.selections, "hotspot.selections", "Marker selections resolved to an entity"},
		{&out.lookupMiss, "hotspot.lookup.misses", "Marker selections with no matching entity"},
		{&out.duplicates, "hotspot.markers.duplicates", "Duplicate marker ids skipped during rebuilds"},
		{&out.fatalErrors, "hotspot.fatal", "Mount and image load failures"},
	}
	for _, c := range counters {
		*c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}
	return &out, nil
}
