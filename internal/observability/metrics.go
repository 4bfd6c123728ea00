package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutSettledGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "workout_service",
		Subsystem: "settlement",
		Name:      "last_workout_settled_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout settled to the store.",
	})
	pointsAwardedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workout_service",
		Subsystem: "settlement",
		Name:      "points_awarded_total",
		Help:      "Total points awarded across all settlements.",
	})
)

func init() {
	prometheus.MustRegister(workoutSettledGauge, pointsAwardedCounter)
}

// RecordWorkoutSettled updates the settlement watermark gauge.
func RecordWorkoutSettled(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workoutSettledGauge.Set(float64(ts.Unix()))
}

// RecordPointsAwarded counts points granted by a settlement.
func RecordPointsAwarded(points int) {
	if points <= 0 {
		return
	}
	pointsAwardedCounter.Add(float64(points))
}
