// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus provides the sockets live-share sessions use to reach the
// forwarding broker. Every socket is a websocket connection carrying
// binary frames; the broker assigns each of its four ports one role.
//
//   - [Publisher] sends edit messages to the publisher port.
//   - [Subscriber] receives every edit message published by anyone,
//     from the listener port.
//   - [Requester] sends catch-up requests to the sync receiver port and
//     waits for the reply.
//   - [Responder] receives routed catch-up requests from the sync sender
//     port and replies to them.
//
// Subscribers and responders wait for the broker's zero-length
// registration frame before their constructor returns, so a message
// published after [DialSubscriber] returns is guaranteed to be
// delivered. Zero-length frames are otherwise keepalives and are never
// surfaced to callers.
//
// An edit message is [EncodeMessage]'s framing of a session identity and
// one encoded edit record. Sync traffic between broker and responders is
// wrapped in a CBOR [Envelope] carrying the route the reply must take.
package bus
