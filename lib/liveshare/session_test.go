// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveshare

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opendcc/liveshare/lib/broker"
	"github.com/opendcc/liveshare/lib/bus"
	"github.com/opendcc/liveshare/lib/edit"
	"github.com/opendcc/liveshare/lib/layer"
	"github.com/opendcc/liveshare/lib/testutil"
	"github.com/opendcc/liveshare/lib/value"
)

const testTimeout = 10 * time.Second

// startBroker runs a broker on ephemeral loopback ports and returns
// settings pointing at it.
func startBroker(t *testing.T) ConnectionSettings {
	t.Helper()
	b := broker.New(broker.Config{Host: "127.0.0.1"})
	if err := b.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, testTimeout, "broker shutdown")
	})
	return ConnectionSettings{
		Hostname:         "127.0.0.1",
		ListenerPort:     b.Port(broker.RoleListener),
		PublisherPort:    b.Port(broker.RolePublisher),
		SyncSenderPort:   b.Port(broker.RoleSyncSender),
		SyncReceiverPort: b.Port(broker.RoleSyncReceiver),
	}
}

// peer is one process's view: a registry with a scene layer and the
// session sharing it.
type peer struct {
	registry *layer.Registry
	scene    *layer.Layer
	session  *Session
	notices  *int
}

// startPeer starts a session and waits until it is ready. setup, if
// given, edits the scene before the session hooks the registry, so
// those edits are local-only.
func startPeer(t *testing.T, settings ConnectionSettings, sceneID string, options Options, setup ...func(*layer.Layer) error) peer {
	t.Helper()
	registry := layer.NewRegistry()
	scene := registry.Open(sceneID)
	notices := new(int)
	registry.OnChanged(func(layer.Notice) { *notices++ })
	for _, step := range setup {
		if err := step(scene); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	options.Settings = settings
	options.DialInitialInterval = 10 * time.Millisecond
	session := New(registry, options)
	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(session.Stop)
	testutil.RequireClosed(t, session.Ready(), testTimeout, "session ready")
	return peer{registry: registry, scene: scene, session: session, notices: notices}
}

func TestIdentity(t *testing.T) {
	id := NewIdentity(4242, 7)
	if id.PID() != 4242 || id.Counter() != 7 || uint64(id) != 4242<<32|7 {
		t.Fatalf("NewIdentity(4242, 7) = %#x", uint64(id))
	}
	if id.String() != "4242.7" {
		t.Fatalf("String() = %q", id.String())
	}

	source := NewIdentitySource(4242)
	first, second := source.Next(), source.Next()
	if first.Counter() != 1 || second.Counter() != 2 || first.PID() != 4242 {
		t.Fatalf("identities %v, %v", first, second)
	}
	// Same counter, different processes.
	if NewIdentitySource(1).Next() == NewIdentitySource(2).Next() {
		t.Fatal("identities from different processes collide")
	}
	if NextIdentity() == NextIdentity() {
		t.Fatal("NextIdentity repeated")
	}
}

func TestBatchReplicatesAtomicallyInOrder(t *testing.T) {
	settings := startBroker(t)
	a := startPeer(t, settings, "scene.usda", Options{})
	b := startPeer(t, settings, "scene.usda", Options{})
	*b.notices = 0

	err := a.registry.ChangeBlock(func() error {
		if err := a.scene.CreateSpec("/World", value.SpecTypePrim, false); err != nil {
			return err
		}
		if err := a.scene.PushChild("/", layer.FieldPrimChildren, value.Of(value.Token("World"))); err != nil {
			return err
		}
		for _, radius := range []float64{1, 2, 3} {
			if err := a.scene.SetField("/World", "radius", value.Of(radius)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, testTimeout, func() bool {
		b.session.Process()
		return b.scene.HasSpec("/World")
	}, "waiting for the batch on the second session")

	if !b.scene.ContentEqual(a.scene) {
		t.Fatal("replicated content differs")
	}
	radius, _ := b.scene.Field("/World", "radius")
	if !value.Equal(radius, value.Of(3.0)) {
		t.Fatalf("radius = %v, want the last staged value", radius)
	}
	if *b.notices != 1 {
		t.Fatalf("second session saw %d change notices, want 1", *b.notices)
	}
	if stats := b.session.Stats(); stats.Batches != 1 || stats.Received != 6 {
		t.Fatalf("receiver stats = %+v", stats)
	}
}

func TestSeparateBlocksArriveAsSeparateBatches(t *testing.T) {
	settings := startBroker(t)
	a := startPeer(t, settings, "scene.usda", Options{})
	b := startPeer(t, settings, "scene.usda", Options{})
	*b.notices = 0

	// Outside a change block every mutation is its own transaction.
	if err := a.scene.CreateSpec("/A", value.SpecTypePrim, false); err != nil {
		t.Fatal(err)
	}
	if err := a.scene.CreateSpec("/B", value.SpecTypePrim, false); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, testTimeout, func() bool {
		b.session.Process()
		return b.scene.HasSpec("/B")
	}, "waiting for /B")
	if !b.scene.HasSpec("/A") || *b.notices != 2 {
		t.Fatalf("has /A = %v, notices = %d", b.scene.HasSpec("/A"), *b.notices)
	}
}

func TestSelfEchoIsDropped(t *testing.T) {
	settings := startBroker(t)
	a := startPeer(t, settings, "scene.usda", Options{})

	if err := a.scene.CreateSpec("/World", value.SpecTypePrim, false); err != nil {
		t.Fatal(err)
	}
	// CreateSpec plus its boundary.
	testutil.Eventually(t, testTimeout, func() bool {
		stats := a.session.Stats()
		return stats.SelfEchoDropped == 2 && stats.Published == 2
	}, "waiting for the echo")
	if n := a.session.Process(); n != 0 {
		t.Fatalf("Process ran %d tasks for the session's own edits", n)
	}
	if stats := a.session.Stats(); stats.Received != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestAppliedEditsAreNotRepublished(t *testing.T) {
	settings := startBroker(t)
	a := startPeer(t, settings, "scene.usda", Options{})
	b := startPeer(t, settings, "scene.usda", Options{})

	if err := a.scene.CreateSpec("/World", value.SpecTypePrim, false); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, testTimeout, func() bool {
		b.session.Process()
		return b.scene.HasSpec("/World")
	}, "waiting for /World")

	b.session.stagedMu.Lock()
	staged := len(b.session.staged)
	b.session.stagedMu.Unlock()
	if staged != 0 || b.session.Stats().Published != 0 {
		t.Fatalf("receiver staged %d records and published %d", staged, b.session.Stats().Published)
	}

	// A local edit on the receiver is still shared.
	if err := b.scene.SetField("/World", "kind", value.Of(value.Token("group"))); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, testTimeout, func() bool {
		a.session.Process()
		_, ok := a.scene.Field("/World", "kind")
		return ok
	}, "waiting for the reply edit")
}

func TestEditsForUnknownLayersAreSkipped(t *testing.T) {
	settings := startBroker(t)
	a := startPeer(t, settings, "scene.usda", Options{})
	b := startPeer(t, settings, "other.usda", Options{})
	*b.notices = 0

	err := a.registry.ChangeBlock(func() error {
		return a.scene.CreateSpec("/World", value.SpecTypePrim, false)
	})
	if err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, testTimeout, func() bool {
		return b.session.Process() > 0
	}, "waiting for the batch")
	if b.registry.Find("scene.usda") != nil || *b.notices != 0 {
		t.Fatalf("unknown layer created or notified (%d notices)", *b.notices)
	}
}

func TestCatchUp(t *testing.T) {
	settings := startBroker(t)
	dir := testutil.TransferDir(t)

	// The first session builds content before sharing and stages it.
	registry := layer.NewRegistry()
	scene := registry.Open("scene.usda")
	for _, step := range []func() error{
		func() error { return scene.CreateSpec("/World", value.SpecTypePrim, false) },
		func() error { return scene.PushChild("/", layer.FieldPrimChildren, value.Of(value.Token("World"))) },
		func() error { return scene.SetField("/World", "radius", value.Of(5.0)) },
		func() error { return scene.SetTimeSample("/World", 12, value.Of(int32(4))) },
	} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	first := New(registry, Options{Settings: settings, TransferDir: dir})
	manifest, err := first.StageTransfer()
	if err != nil {
		t.Fatalf("StageTransfer: %v", err)
	}
	if len(manifest) != 1 {
		t.Fatalf("manifest = %v", manifest)
	}
	if err := first.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(first.Stop)
	testutil.RequireClosed(t, first.Ready(), testTimeout, "first session ready")

	// The second session has a stale local copy.
	joiner := startPeer(t, settings, "scene.usda", Options{}, func(stale *layer.Layer) error {
		return stale.CreateSpec("/Stale", value.SpecTypePrim, false)
	})
	*joiner.notices = 0

	if n := joiner.session.Process(); n != 1 {
		t.Fatalf("Process ran %d tasks, want the catch-up task", n)
	}
	if !joiner.scene.ContentEqual(scene) {
		t.Fatal("caught-up content differs from the staged layer")
	}
	if *joiner.notices != 1 {
		t.Fatalf("catch-up produced %d notices, want 1", *joiner.notices)
	}

	// The transfer itself is not republished as edits.
	joiner.session.stagedMu.Lock()
	staged := len(joiner.session.staged)
	joiner.session.stagedMu.Unlock()
	if staged != 0 || joiner.session.Stats().Published != 0 {
		t.Fatalf("catch-up staged %d records", staged)
	}

	// Catching up again against the unchanged manifest yields the same
	// content. Both sessions now answer requests in turn and the joiner
	// answers empty, so two attempts always reach the first session.
	ran := 0
	for attempt := 0; attempt < 2 && ran == 0; attempt++ {
		joiner.session.catchUp()
		ran = joiner.session.Process()
	}
	if ran != 1 {
		t.Fatalf("second catch-up ran %d tasks", ran)
	}
	if !joiner.scene.ContentEqual(scene) {
		t.Fatal("second catch-up changed the content")
	}
}

func TestCatchUpWithoutPeers(t *testing.T) {
	settings := startBroker(t)
	a := startPeer(t, settings, "scene.usda", Options{})
	if n := a.session.Process(); n != 0 {
		t.Fatalf("Process ran %d tasks with no peer to catch up from", n)
	}
}

func TestAnswer(t *testing.T) {
	s := New(layer.NewRegistry(), Options{TransferDir: "/tmp/ls-transfer"})
	if got := s.answer(bus.EncodeRequest(bus.RequestTransferDirectory)); string(got) != "/tmp/ls-transfer" {
		t.Fatalf("answer = %q", got)
	}
	if got := s.answer(bus.EncodeRequest(2)); len(got) != 0 {
		t.Fatalf("unknown code answered %q", got)
	}
	if got := s.answer([]byte{1}); len(got) != 0 {
		t.Fatalf("malformed request answered %q", got)
	}

	long := New(layer.NewRegistry(), Options{TransferDir: "/" + strings.Repeat("x", bus.MaxReplyLength)})
	if got := long.answer(bus.EncodeRequest(bus.RequestTransferDirectory)); len(got) != 0 {
		t.Fatalf("oversized path answered %d bytes", len(got))
	}

	none := New(layer.NewRegistry(), Options{})
	if got := none.answer(bus.EncodeRequest(bus.RequestTransferDirectory)); len(got) != 0 {
		t.Fatalf("session without transfer dir answered %q", got)
	}
	if _, err := none.StageTransfer(); err == nil {
		t.Fatal("StageTransfer without a directory succeeded")
	}
}

func TestDecodeFailuresAreCounted(t *testing.T) {
	settings := startBroker(t)
	a := startPeer(t, settings, "scene.usda", Options{})

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	publisher, err := bus.DialPublisher(ctx, settings.publisherAddress(), bus.DialOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer publisher.Close()

	unknown := bus.EncodeMessage(1, []byte{99, 0, 0, 0, 0, 0, 0, 0})
	truncated, err := edit.Encode(a.session.codec, edit.DeleteSpec{Layer: "scene.usda", Path: "/x"})
	if err != nil {
		t.Fatal(err)
	}
	for _, message := range [][]byte{{1, 2, 3}, unknown, bus.EncodeMessage(1, truncated[:len(truncated)-1])} {
		if err := publisher.Publish(message); err != nil {
			t.Fatal(err)
		}
	}
	testutil.Eventually(t, testTimeout, func() bool {
		return a.session.Stats().DecodeFailures == 3
	}, "waiting for decode failures")
	if n := a.session.Process(); n != 0 {
		t.Fatalf("Process ran %d tasks after undecodable input", n)
	}
}

func TestStopWithoutBroker(t *testing.T) {
	closed := testutil.FreePort(t)
	s := New(layer.NewRegistry(), Options{Settings: ConnectionSettings{
		Hostname:         "127.0.0.1",
		ListenerPort:     closed,
		PublisherPort:    closed,
		SyncSenderPort:   closed,
		SyncReceiverPort: closed,
	}})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != ErrAlreadyStarted {
		t.Fatalf("second Start = %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	testutil.RequireClosed(t, stopped, testTimeout, "Stop while dialing")
	s.Stop()

	select {
	case <-s.Ready():
		t.Fatal("Ready closed without a broker")
	default:
	}
}

func TestStopBeforeStart(t *testing.T) {
	s := New(layer.NewRegistry(), Options{})
	s.Stop()
	s.Stop()
}

func TestStopUnhooksRegistry(t *testing.T) {
	settings := startBroker(t)
	a := startPeer(t, settings, "scene.usda", Options{})
	a.session.Stop()

	if err := a.scene.CreateSpec("/After", value.SpecTypePrim, false); err != nil {
		t.Fatal(err)
	}
	a.session.stagedMu.Lock()
	defer a.session.stagedMu.Unlock()
	if len(a.session.staged) != 0 {
		t.Fatalf("stopped session staged %d records", len(a.session.staged))
	}
}
