// Package metrics exposes Prometheus instruments for the proximity engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every engine instrument. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	NotificationsSent            prometheus.Counter
	NotificationFailures         prometheus.Counter
	TicksSkipped                 prometheus.Counter
	LoopExits                    *prometheus.CounterVec
	GeofenceResyncs              prometheus.Counter
	GeofenceRegistrationFailures prometheus.Counter
	GeofenceRemovalFailures      prometheus.Counter
	LocationFixes                prometheus.Counter
	DeactivatedReminders         prometheus.Counter
	ActiveReminders              prometheus.Gauge
	EngineState                  prometheus.Gauge
}

// New registers the instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		NotificationsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "georemind_notifications_sent_total",
			Help: "Total number of status notifications emitted by the notification loop",
		}),
		NotificationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "georemind_notification_failures_total",
			Help: "Total number of status notifications the notifier rejected",
		}),
		TicksSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "georemind_loop_ticks_skipped_total",
			Help: "Total number of loop ticks that emitted nothing because the active count was out of range",
		}),
		LoopExits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "georemind_loop_exits_total",
			Help: "Total number of notification loop exits by reason",
		}, []string{"reason"}),
		GeofenceResyncs: f.NewCounter(prometheus.CounterOpts{
			Name: "georemind_geofence_resyncs_total",
			Help: "Total number of full geofence resyncs",
		}),
		GeofenceRegistrationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "georemind_geofence_registration_failures_total",
			Help: "Total number of geofences the registry rejected",
		}),
		GeofenceRemovalFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "georemind_geofence_removal_failures_total",
			Help: "Total number of failed attempts to clear the geofence registry",
		}),
		LocationFixes: f.NewCounter(prometheus.CounterOpts{
			Name: "georemind_location_fixes_total",
			Help: "Total number of location fixes processed",
		}),
		DeactivatedReminders: f.NewCounter(prometheus.CounterOpts{
			Name: "georemind_reminders_deactivated_total",
			Help: "Total number of reminders the engine marked completed",
		}),
		ActiveReminders: f.NewGauge(prometheus.GaugeOpts{
			Name: "georemind_active_reminders",
			Help: "Current number of active reminders tracked by the engine",
		}),
		EngineState: f.NewGauge(prometheus.GaugeOpts{
			Name: "georemind_engine_state",
			Help: "Current engine run state (0 starting, 1 running, 2 stopping, 3 stopped)",
		}),
	}
}

// ObserveResync records the outcome of one geofence resync.
func (m *Metrics) ObserveResync(registered, failed int, removeFailed bool) {
	if m == nil {
		return
	}
	m.GeofenceResyncs.Inc()
	m.GeofenceRegistrationFailures.Add(float64(failed))
	if removeFailed {
		m.GeofenceRemovalFailures.Inc()
	}
}

// NotificationSent counts one emitted notification.
func (m *Metrics) NotificationSent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}

// NotificationFailed counts one rejected notification.
func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationFailures.Inc()
}

// TickSkipped counts one silent tick.
func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.TicksSkipped.Inc()
}

// LoopExited counts a loop exit.
func (m *Metrics) LoopExited(reason string) {
	if m == nil {
		return
	}
	m.LoopExits.WithLabelValues(reason).Inc()
}

// FixReceived counts one processed location fix.
func (m *Metrics) FixReceived() {
	if m == nil {
		return
	}
	m.LocationFixes.Inc()
}

// ReminderDeactivated counts one engine-driven completion.
func (m *Metrics) ReminderDeactivated() {
	if m == nil {
		return
	}
	m.DeactivatedReminders.Inc()
}

// SetActiveReminders sets the active reminder gauge.
func (m *Metrics) SetActiveReminders(n int) {
	if m == nil {
		return
	}
	m.ActiveReminders.Set(float64(n))
}

// SetEngineState sets the run state gauge.
func (m *Metrics) SetEngineState(state int) {
	if m == nil {
		return
	}
	m.EngineState.Set(float64(state))
}
