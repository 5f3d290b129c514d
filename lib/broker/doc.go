// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker implements the forwarding broker that live-share
// sessions meet at. It listens on four ports and runs two independent
// forwarders:
//
//   - the edit bus: every message received on the publisher port is
//     sent, unmodified, to every subscriber connected to the listener
//     port, including the sender's own subscription;
//   - the sync router: every request received on the sync receiver port
//     is handed to one responder connected to the sync sender port
//     (round robin), and the responder's reply is routed back to the
//     requester.
//
// The broker keeps no state beyond its live connections. A peer that
// disconnects simply stops sending or receiving; a subscriber that
// falls behind loses messages once its bounded queue fills.
package broker
