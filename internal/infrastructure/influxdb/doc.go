// Package influxdb exports client telemetry to an InfluxDB v2 bucket.
//
// Points are batched by the official influxdb-client-go write API and sent
// in the background, so WritePoint is safe to call from hot paths such as
// Publish. telemetry.InfluxSink is the only producer.
//
//	c, err := influxdb.Connect(ctx, cfg.Telemetry.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	monitor.AddSink(telemetry.NewInfluxSink(c, clientID))
package influxdb
