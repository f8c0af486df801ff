package netrelay_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/aerodome-usa/rpcmoq/moq"
	"github.com/aerodome-usa/rpcmoq/moq/memrelay"
	"github.com/aerodome-usa/rpcmoq/moq/netrelay"
)

func startServer(t *testing.T) (addr string, closeFn func()) {
	t.Helper()
	hub := memrelay.NewHub()
	srv := netrelay.NewServer(hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr = ln.Addr().String()
	ln.Close()

	go func() {
		if err := srv.ListenAndServe(addr); err != nil {
			_ = err // listener closed at test end
		}
	}()
	time.Sleep(20 * time.Millisecond)

	return addr, func() { srv.Close() }
}

func TestClientPublishAndSubscribe(t *testing.T) {
	addr, closeFn := startServer(t)
	defer closeFn()

	producerSide, err := netrelay.Dial(addr)
	if err != nil {
		t.Fatalf("dial producer: %v", err)
	}
	defer producerSide.Close()

	consumerSide, err := netrelay.Dial(addr)
	if err != nil {
		t.Fatalf("dial consumer: %v", err)
	}
	defer consumerSide.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	announced := consumerSide.Announced()

	producer := producerSide.CreateBroadcast("rpcmoq/client-1/drone.EchoService/Echo")
	if producer == nil {
		t.Fatal("CreateBroadcast returned nil")
	}

	ann, err := announced.Announced(ctx)
	if err != nil {
		t.Fatalf("Announced: %v", err)
	}
	if ann.Path != "rpcmoq/client-1/drone.EchoService/Echo" || ann.Broadcast == nil {
		t.Fatalf("unexpected announcement: %+v", ann)
	}

	track := producer.CreateTrack("requests")
	consumerTrack := ann.Broadcast.SubscribeTrack("requests")

	if err := track.WriteFrame([]byte("hello")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	group, err := consumerTrack.NextGroup(ctx)
	if err != nil {
		t.Fatalf("NextGroup: %v", err)
	}
	frame, err := group.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(frame) != "hello" {
		t.Fatalf("got frame %q, want %q", frame, "hello")
	}

	if err := track.Close(); err != nil {
		t.Fatalf("Close track: %v", err)
	}
	if _, err := group.ReadFrame(ctx); err != io.EOF {
		t.Fatalf("ReadFrame after close = %v, want io.EOF", err)
	}
	if _, err := consumerTrack.NextGroup(ctx); err != io.EOF {
		t.Fatalf("NextGroup after close = %v, want io.EOF", err)
	}
}

func TestTrackAbortSurfacesAppError(t *testing.T) {
	addr, closeFn := startServer(t)
	defer closeFn()

	producerSide, err := netrelay.Dial(addr)
	if err != nil {
		t.Fatalf("dial producer: %v", err)
	}
	defer producerSide.Close()

	consumerSide, err := netrelay.Dial(addr)
	if err != nil {
		t.Fatalf("dial consumer: %v", err)
	}
	defer consumerSide.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	announced := consumerSide.Announced()
	producer := producerSide.CreateBroadcast("rpcmoq/client-2/drone.EchoService/Echo")
	ann, err := announced.Announced(ctx)
	if err != nil {
		t.Fatalf("Announced: %v", err)
	}

	track := producer.CreateTrack("requests")
	consumerTrack := ann.Broadcast.SubscribeTrack("requests")

	track.Abort(3)

	group, err := consumerTrack.NextGroup(ctx)
	if err != nil {
		t.Fatalf("NextGroup: %v", err)
	}
	_, err = group.ReadFrame(ctx)
	appErr, ok := err.(*moq.AppError)
	if !ok {
		t.Fatalf("ReadFrame after abort = %v, want *moq.AppError", err)
	}
	if appErr.Code != 3 {
		t.Fatalf("AppError.Code = %d, want 3", appErr.Code)
	}
}

func TestAnnouncedObservesDeparture(t *testing.T) {
	addr, closeFn := startServer(t)
	defer closeFn()

	producerSide, err := netrelay.Dial(addr)
	if err != nil {
		t.Fatalf("dial producer: %v", err)
	}
	defer producerSide.Close()

	consumerSide, err := netrelay.Dial(addr)
	if err != nil {
		t.Fatalf("dial consumer: %v", err)
	}
	defer consumerSide.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	announced := consumerSide.Announced()
	producer := producerSide.CreateBroadcast("rpcmoq/client-3/drone.EchoService/Echo")

	if _, err := announced.Announced(ctx); err != nil {
		t.Fatalf("Announced (appear): %v", err)
	}

	if err := producer.Close(); err != nil {
		t.Fatalf("Close broadcast: %v", err)
	}

	dep, err := announced.Announced(ctx)
	if err != nil {
		t.Fatalf("Announced (depart): %v", err)
	}
	if dep.Broadcast != nil {
		t.Fatalf("expected a departure announcement, got %+v", dep)
	}
}
