package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mindboard/pkg/clock"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cloudwatch.PutMetricDataOutput)
	return out, args.Error(1)
}

func datum(in *cloudwatch.PutMetricDataInput, name string, dims map[string]string) (cwtypes.MetricDatum, bool) {
	for _, d := range in.MetricData {
		if aws.ToString(d.MetricName) != name || len(d.Dimensions) != len(dims) {
			continue
		}
		match := true
		for _, dim := range d.Dimensions {
			if dims[aws.ToString(dim.Name)] != aws.ToString(dim.Value) {
				match = false
			}
		}
		if match {
			return d, true
		}
	}
	return cwtypes.MetricDatum{}, false
}

func TestCloudWatchExporter_SendsIncreases(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	collector := NewCollector("mindboard")
	client := &mockCloudWatch{}
	exporter := NewCloudWatchExporter(client, "Mindboard/test", collector, clock.NewFake(at))

	var sent []*cloudwatch.PutMetricDataInput
	client.On("PutMetricData", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = append(sent, args.Get(1).(*cloudwatch.PutMetricDataInput)) }).
		Return(&cloudwatch.PutMetricDataOutput{}, nil)

	collector.RecordCommand("AddNode", nil)
	collector.RecordCommand("AddNode", nil)
	collector.RecordPlacement("grid")
	require.NoError(t, exporter.Flush(context.Background()))

	require.Len(t, sent, 1)
	assert.Equal(t, "Mindboard/test", aws.ToString(sent[0].Namespace))
	d, ok := datum(sent[0], "mindboard_commands_total", map[string]string{"command": "AddNode", "status": "success"})
	require.True(t, ok)
	assert.Equal(t, 2.0, aws.ToFloat64(d.Value))
	assert.Equal(t, cwtypes.StandardUnitCount, d.Unit)
	assert.Equal(t, at, aws.ToTime(d.Timestamp))

	collector.RecordCommand("AddNode", nil)
	require.NoError(t, exporter.Flush(context.Background()))

	require.Len(t, sent, 2)
	d, ok = datum(sent[1], "mindboard_commands_total", map[string]string{"command": "AddNode", "status": "success"})
	require.True(t, ok)
	assert.Equal(t, 1.0, aws.ToFloat64(d.Value), "only the increase is sent")
	_, ok = datum(sent[1], "mindboard_placements_total", map[string]string{"strategy": "grid"})
	assert.False(t, ok, "unchanged series are skipped")
}

func TestCloudWatchExporter_FailedPutIsResent(t *testing.T) {
	collector := NewCollector("mindboard")
	client := &mockCloudWatch{}
	exporter := NewCloudWatchExporter(client, "Mindboard/test", collector, clock.NewFake(time.Unix(0, 0)))

	collector.RecordGenerated(3)
	client.On("PutMetricData", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()
	require.Error(t, exporter.Flush(context.Background()))

	var resent *cloudwatch.PutMetricDataInput
	client.On("PutMetricData", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { resent = args.Get(1).(*cloudwatch.PutMetricDataInput) }).
		Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()
	require.NoError(t, exporter.Flush(context.Background()))

	require.NotNil(t, resent)
	d, ok := datum(resent, "mindboard_nodes_generated_total", nil)
	require.True(t, ok)
	assert.Equal(t, 3.0, aws.ToFloat64(d.Value))
	client.AssertExpectations(t)
}

func TestCloudWatchExporter_NilIsSafe(t *testing.T) {
	var e *CloudWatchExporter
	assert.NoError(t, e.Flush(context.Background()))
}
