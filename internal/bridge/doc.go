// Package bridge connects one hub session to an MQTT broker.
//
// It translates in both directions:
//
//	┌──────────────┐          ┌──────────────┐   HTTP   ┌──────────────┐
//	│  Controllers │   MQTT   │    Bridge    │◄────────►│   UC Remote  │
//	│ (HA, Node-R) │◄────────►│  (this pkg)  │          │     hub      │
//	└──────────────┘          └──────────────┘          └──────────────┘
//
// # Responsibilities
//
//   - Publish retained hub, activity and dock state after every refresh,
//     skipping payloads that did not change and clearing topics of objects
//     that disappeared
//   - Accept commands on ucremote/command/{hub}, run them through the
//     dispatcher and publish an ack carrying the result or error code
//   - Publish retained health on ucremote/health/{hub}
//   - Forward hub samples and dispatch results to an optional telemetry sink
//
// # Command payload
//
//	{"id":"c1","command":"activity_start","activity":"Watch TV"}
//	{"id":"c2","command":"button","button":"VOLUME_UP","repeat":3}
//	{"id":"c3","command":"ir","device":"Samsung TV","code":"POWER_TOGGLE","dock":"Living Room"}
//	{"id":"c4","command":"dock_charging","dock":"Living Room","enabled":true}
//	{"id":"c5","command":"system","system":"STANDBY"}
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package bridge
