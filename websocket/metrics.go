// Package websocket - websocket/metrics.go
// file: websocket/metrics.go

package websocket

import (
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"

	"classpulse/logger"
)

// Namespace for all ClassPulse metrics
var metricsNamespace = "ClassPulse"

// Publishing is opt-in; without the flag every publish call is a cheap no-op,
// so the coordinator can call these unconditionally.
var metricsEnabled = os.Getenv("ENABLE_CLOUDWATCH_METRICS") == "true"

// Reuse a single CloudWatch client for all metrics calls, created on first use.
var (
	cwClient *cloudwatch.CloudWatch
	cwOnce   sync.Once
)

func client() *cloudwatch.CloudWatch {
	cwOnce.Do(func() {
		cwClient = cloudwatch.New(session.Must(session.NewSession()))
	})
	return cwClient
}

// PublishStudentConnections pushes the current active student count.
func PublishStudentConnections(count int) {
	putMetric("StudentConnections", float64(count), "Count")
}

// PublishResponseLatency pushes latency from poll creation to a response (in ms).
func PublishResponseLatency(latencyMs float64) {
	putMetric("ResponseLatencyMs", latencyMs, "Milliseconds")
}

// PublishBroadcastBacklog pushes a gauge for broadcast queue depth.
func PublishBroadcastBacklog(depth int) {
	putMetric("BroadcastQueueDepth", float64(depth), "Count")
}

// -----------------------------------------------------------
// internal helper function to package up CloudWatch calls
// -----------------------------------------------------------
func putMetric(metricName string, value float64, unit string) {
	if !metricsEnabled {
		return
	}
	_, err := client().PutMetricData(&cloudwatch.PutMetricDataInput{
		Namespace: aws.String(metricsNamespace),
		MetricData: []*cloudwatch.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Dimensions: []*cloudwatch.Dimension{
					{
						Name:  aws.String("Application"),
						Value: aws.String("classpulse"),
					},
				},
				Timestamp: aws.Time(time.Now()),
				Value:     aws.Float64(value),
				Unit:      aws.String(unit),
			},
		},
	})

	if err != nil {
		logger.Error.Printf("[putMetric] CloudWatch metric failed (%s): %v", metricName, err)
	}
}
