package main

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"
)

// InfluxSink writes reports as points through the asynchronous write API
type InfluxSink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPI
	measurement string
	sourceHost  string
}

// NewInfluxSink creates the client and starts logging write errors
func NewInfluxSink(config *Config, log logrus.FieldLogger) *InfluxSink {
	options := influxdb2.DefaultOptions()
	options.SetBatchSize(config.InfluxDB.BatchSize)
	options.SetRetryInterval(5000) // Retry every 5 seconds
	options.SetMaxRetries(5)

	client := influxdb2.NewClientWithOptions(config.InfluxURL(), config.InfluxDB.Token, options)
	writeAPI := client.WriteAPI(config.InfluxDB.Org, config.InfluxDB.Bucket)

	s := &InfluxSink{
		client:      client,
		writeAPI:    writeAPI,
		measurement: config.InfluxDB.Measurement,
		sourceHost:  config.LinkMon.SourceHost,
	}

	// The errors channel must be drained or writes block
	errs := writeAPI.Errors()
	go func() {
		for err := range errs {
			log.WithError(err).Warn("InfluxDB write failed")
		}
	}()

	return s
}

func (s *InfluxSink) tags(r Report) map[string]string {
	return map[string]string{
		"source": s.sourceHost,
		"device": r.Device,
	}
}

// WriteSummary implements Sink
func (s *InfluxSink) WriteSummary(_ context.Context, r Report, rec SummaryRecord) error {
	s.writeAPI.WritePoint(influxdb2.NewPoint(
		s.measurement,
		s.tags(r),
		map[string]interface{}{
			"min_dbm": int64(rec.Min),
			"max_dbm": int64(rec.Max),
			"avg_dbm": int64(rec.Average),
			"samples": int64(rec.Count),
		},
		r.Time,
	))
	return nil
}

// WriteChange implements Sink
func (s *InfluxSink) WriteChange(_ context.Context, r Report, change SignalChange) error {
	s.writeAPI.WritePoint(influxdb2.NewPoint(
		s.measurement+"_change",
		s.tags(r),
		map[string]interface{}{
			"previous_dbm": int64(change.Previous),
			"current_dbm":  int64(change.Current),
		},
		r.Time,
	))
	return nil
}

// WriteWatermark implements Sink
func (s *InfluxSink) WriteWatermark(_ context.Context, r Report, minFree uint64) error {
	s.writeAPI.WritePoint(influxdb2.NewPoint(
		s.measurement+"_memory",
		s.tags(r),
		map[string]interface{}{
			"min_free_bytes": minFree,
		},
		r.Time,
	))
	return nil
}

// Close flushes pending points and shuts the client down
func (s *InfluxSink) Close() error {
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}
