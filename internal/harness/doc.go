// Package harness runs scripted proximity scenarios against a real
// controller and records a per-step trace for golden comparison.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: nearest_within_radius
//	description: "The nearest reminder inside its geofence reads 0.00 km"
//	origin: {latitude: 45.4642, longitude: 9.19}
//	config:
//	  radius_meters: 100
//	reminders:
//	  - {id: bakery, title: Bakery, north: 50}
//	  - {id: florist, title: Florist, north: 400}
//	steps:
//	  - action: fix
//	    north: 0
//	    expect: {nearest: bakery, distance: 0}
//	  - action: tick
//	    expect: {notification: "Bakery · after · 0.00 km."}
//
// Positions are given in meters north of the origin so distances can be
// reasoned about by hand.
//
// # Actions
//
//   - fix: deliver a location fix (dropped when not subscribed)
//   - tick: advance the notification loop by count ticks
//   - deactivate: ask the controller to deactivate id
//   - add, complete, activate, delete, clear_completed, delete_all: mutate the
//     reminder store directly
//   - fail_source, recover_source: make the reminder stream fail or recover
//   - grant_permission: grant location permission for the next start
//   - start: restart an exhausted loop or retry the location subscription
//   - stop: stop the controller and wait for it to finish
//
// # Determinism
//
// Ticks come from manual tickers and every step waits until the controller
// has processed everything the step caused. The store is an in-memory
// SQLite database, fresh per run. Identical scenarios produce identical
// traces.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/early_exit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
