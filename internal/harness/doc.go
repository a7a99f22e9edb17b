// Package harness replays scripted questionnaire sessions against the
// form synchronizer and records what reached the local store and the
// remote.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	session_key: test-session-001
//	steps:
//	  - submit: identite
//	    values: { nom: Durand }
//	    expect: { outcome: ok, form_id: form-1 }
//	  - remote: fail
//	    count: 1
//	  - submit: maladie
//	    values: { organeForm: C22 }
//	    expect: { outcome: sync_error, code: UPDATE_FAILED }
//	assertions:
//	  - type: remote_count
//	    op: create
//	    count: 1
//	  - type: final_snapshot
//	    expect: { nom: Durand }
//
// # Step Types
//
//   - submit: SubmitPage with values; expect checks the outcome
//   - remote: inject a remote failure ("fail" for count calls, or
//     "lose_response" for the next call)
//   - local: "fail_writes" makes local writes fail until "recover"
//   - reset: clear the local store
//
// # Assertion Types
//
//   - remote_count: number of remote calls of op (create, update)
//   - remote_forms: number of forms that exist remotely
//   - final_snapshot: subset match on the local snapshot
//   - form_identifier: the stored form identifier ("" for none)
//   - outcome_count: number of submits that ended with outcome
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store, a
// recording remote with sequential ids and a fixed session key, so
// traces are identical across runs and can be compared with golden
// files.
package harness
