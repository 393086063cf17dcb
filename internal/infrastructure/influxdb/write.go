package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStats counts points handed to the client.
type WriteStats struct {
	Written uint64 // queued for the next batch
	Dropped uint64 // written after Close
	Failed  uint64 // async batch errors reported by the server
}

// WritePoint queues a point stamped with the current time. It never blocks
// on the network; failures surface through SetOnError and Stats.
//
//	c.WritePoint("mqtt_publish",
//	    map[string]string{"client_id": "client_1"},
//	    map[string]interface{}{"latency_ms": 3.2, "ok": true})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if c.writeAPI == nil || c.closed.Load() {
		c.dropped.Add(1)
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
	c.written.Add(1)
}

// Stats returns write counters since Connect.
func (c *Client) Stats() WriteStats {
	return WriteStats{
		Written: c.written.Load(),
		Dropped: c.dropped.Load(),
		Failed:  c.failed.Load(),
	}
}
