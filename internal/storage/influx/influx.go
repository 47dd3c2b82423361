// Package influx stores paper trading history in InfluxDB 2.x.
package influx

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"strategy-lab/internal/observability"
)

// NewClient connects to InfluxDB and checks that the server reports a passing health status.
func NewClient(ctx context.Context, url, token string) (influxdb2.Client, error) {
	client := influxdb2.NewClient(url, token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx health check: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influx not healthy: %+v", health)
	}
	return client, nil
}

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`)
	return `"` + r.Replace(s) + `"`
}

func observe(operation string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		observability.RecordDBQuery("influx", operation, time.Since(start).Seconds(), *errp)
	}
}
