package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type venueStat struct {
	restCalls  int64
	wsMessages int64
	reconnects int64
	fills      int64
	errors     int64
	warns      int64
}

var venues sync.Map // map[string]*venueStat

func venueStats(exchange string) *venueStat {
	v, _ := venues.LoadOrStore(exchange, &venueStat{})
	return v.(*venueStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&venueStats(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&venueStats(component).errors, 1)
}

// IncrementRestCall counts one outbound REST call for the exchange.
func IncrementRestCall(exchange string) {
	atomic.AddInt64(&venueStats(exchange).restCalls, 1)
}

// IncrementStreamMessage counts one inbound websocket message.
func IncrementStreamMessage(exchange string) {
	atomic.AddInt64(&venueStats(exchange).wsMessages, 1)
}

// IncrementReconnect counts one websocket reconnect attempt.
func IncrementReconnect(exchange string) {
	atomic.AddInt64(&venueStats(exchange).reconnects, 1)
}

// IncrementFill counts one confirmed order fill.
func IncrementFill(exchange string) {
	atomic.AddInt64(&venueStats(exchange).fills, 1)
}

// StartReport begins periodic logging of per-exchange counters and runtime
// statistics, with a CloudWatch publish when the client is configured.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	perVenue := map[string]map[string]int64{}
	venues.Range(func(k, v any) bool {
		name := k.(string)
		vs := v.(*venueStat)
		perVenue[name] = map[string]int64{
			"rest_calls":  atomic.LoadInt64(&vs.restCalls),
			"ws_messages": atomic.LoadInt64(&vs.wsMessages),
			"reconnects":  atomic.LoadInt64(&vs.reconnects),
			"fills":       atomic.LoadInt64(&vs.fills),
			"errors":      atomic.LoadInt64(&vs.errors),
			"warns":       atomic.LoadInt64(&vs.warns),
		}
		return true
	})

	fields := Fields{
		"goroutines": runtime.NumGoroutine(),
		"heap_mb":    int64(memStats.HeapAlloc) / 1024 / 1024,
		"exchanges":  perVenue,
	}
	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(runtime.NumGoroutine()))},
		cwtypes.MetricDatum{MetricName: aws.String("HeapMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.HeapAlloc) / 1024 / 1024)},
	)
	for name, stats := range perVenue {
		dims := []cwtypes.Dimension{{Name: aws.String("Exchange"), Value: aws.String(name)}}
		for metric, value := range map[string]int64{
			"RestCalls":        stats["rest_calls"],
			"StreamMessages":   stats["ws_messages"],
			"StreamReconnects": stats["reconnects"],
			"OrderFills":       stats["fills"],
			"Errors":           stats["errors"],
			"Warns":            stats["warns"],
		} {
			data = append(data, cwtypes.MetricDatum{
				MetricName: aws.String(metric),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
				Value:      aws.Float64(float64(value)),
			})
		}
	}

	publishMetrics(ctx, data)
}
