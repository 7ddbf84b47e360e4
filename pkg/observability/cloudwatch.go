package observability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	dto "github.com/prometheus/client_model/go"

	"mindboard/pkg/clock"
)

// maxDatumsPerPut is the PutMetricData batch limit.
const maxDatumsPerPut = 1000

// CloudWatchAPI is the part of the CloudWatch client the exporter needs.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchExporter publishes the collector's counters to CloudWatch where
// nothing scrapes the Prometheus endpoint. Each Flush sends the increase
// since the previous one. A nil *CloudWatchExporter is valid and sends
// nothing.
type CloudWatchExporter struct {
	client    CloudWatchAPI
	namespace string
	collector *Collector
	clock     clock.Clock

	mu   sync.Mutex
	last map[string]float64
}

// NewCloudWatchExporter creates an exporter for collector.
func NewCloudWatchExporter(client CloudWatchAPI, namespace string, collector *Collector, clk clock.Clock) *CloudWatchExporter {
	if clk == nil {
		clk = clock.Real()
	}
	return &CloudWatchExporter{
		client:    client,
		namespace: namespace,
		collector: collector,
		clock:     clk,
		last:      make(map[string]float64),
	}
}

// Flush sends counter and histogram increases recorded since the last
// successful flush.
func (e *CloudWatchExporter) Flush(ctx context.Context) error {
	if e == nil || e.collector == nil {
		return nil
	}
	families, err := e.collector.Registry().Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	pending := make(map[string]float64)
	var data []cwtypes.MetricDatum
	add := func(name string, labels []*dto.LabelPair, value float64, unit cwtypes.StandardUnit) {
		key := seriesKey(name, labels)
		delta := value - e.last[key]
		if delta <= 0 {
			return
		}
		pending[key] = value
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dimensions(labels),
			Value:      aws.Float64(delta),
			Unit:       unit,
			Timestamp:  aws.Time(now),
		})
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				add(mf.GetName(), m.GetLabel(), m.GetCounter().GetValue(), cwtypes.StandardUnitCount)
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				add(mf.GetName()+"_count", m.GetLabel(), float64(h.GetSampleCount()), cwtypes.StandardUnitCount)
				add(mf.GetName()+"_sum", m.GetLabel(), h.GetSampleSum(), cwtypes.StandardUnitSeconds)
			}
		}
	}

	for start := 0; start < len(data); start += maxDatumsPerPut {
		end := start + maxDatumsPerPut
		if end > len(data) {
			end = len(data)
		}
		_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(e.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			return fmt.Errorf("put metric data: %w", err)
		}
		for _, d := range data[start:end] {
			key := seriesKey(aws.ToString(d.MetricName), labelsOf(d.Dimensions))
			e.last[key] = pending[key]
		}
	}
	return nil
}

func dimensions(labels []*dto.LabelPair) []cwtypes.Dimension {
	if len(labels) == 0 {
		return nil
	}
	out := make([]cwtypes.Dimension, 0, len(labels))
	for _, l := range labels {
		out = append(out, cwtypes.Dimension{
			Name:  aws.String(l.GetName()),
			Value: aws.String(l.GetValue()),
		})
	}
	return out
}

func labelsOf(dims []cwtypes.Dimension) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(dims))
	for _, d := range dims {
		out = append(out, &dto.LabelPair{Name: d.Name, Value: d.Value})
	}
	return out
}

func seriesKey(name string, labels []*dto.LabelPair) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.GetName()+"="+l.GetValue())
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}
