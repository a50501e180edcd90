package trafficlight_test

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fujiwara/trafficlight"
)

func TestBlockingQueueFIFO(t *testing.T) {
	q := trafficlight.NewBlockingQueue[int]()
	for i := 1; i <= 100; i++ {
		q.Send(i)
	}
	if q.Len() != 100 {
		t.Fatalf("len = %d want 100", q.Len())
	}
	for i := 1; i <= 100; i++ {
		if v := q.Receive(); v != i {
			t.Fatalf("receive = %d want %d", v, i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("len = %d want 0", q.Len())
	}
}

func TestBlockingQueueNoLossNoDuplication(t *testing.T) {
	q := trafficlight.NewBlockingQueue[int]()
	const n = 10000
	go func() {
		for i := 0; i < n; i++ {
			q.Send(i)
		}
	}()
	for i := 0; i < n; i++ {
		if v := q.Receive(); v != i {
			t.Fatalf("receive = %d want %d", v, i)
		}
	}
}

func TestBlockingQueueReceiveBlocks(t *testing.T) {
	q := trafficlight.NewBlockingQueue[string]()
	const delay = 50 * time.Millisecond
	start := time.Now()
	go func() {
		time.Sleep(delay)
		q.Send("x")
	}()
	v := q.Receive()
	if elapsed := time.Since(start); elapsed < delay {
		t.Fatalf("receive returned after %s, before the send at %s", elapsed, delay)
	}
	if v != "x" {
		t.Fatalf("receive = %q want x", v)
	}
}

func TestBlockingQueueReceiveContextCancel(t *testing.T) {
	q := trafficlight.NewBlockingQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	v, err := q.ReceiveContext(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v want %v", err, context.DeadlineExceeded)
	}
	if v != 0 {
		t.Fatalf("v = %d want zero value", v)
	}

	// a value sent after the cancellation is still delivered to the next receiver
	q.Send(7)
	if v := q.Receive(); v != 7 {
		t.Fatalf("receive = %d want 7", v)
	}
}

func TestBlockingQueueReceiveContextPrefersQueuedValue(t *testing.T) {
	q := trafficlight.NewBlockingQueue[int]()
	q.Send(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v, err := q.ReceiveContext(ctx)
	if err != nil || v != 1 {
		t.Fatalf("receive = (%d,%v) want (1,nil)", v, err)
	}
}

func TestBlockingQueueCancelOneOfManyWaiters(t *testing.T) {
	q := trafficlight.NewBlockingQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, err := q.ReceiveContext(ctx)
		canceled <- err
	}()
	got := make(chan int, 1)
	go func() {
		got <- q.Receive()
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-canceled; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v want %v", err, context.Canceled)
	}
	select {
	case v := <-got:
		t.Fatalf("uncanceled receiver returned %d before any send", v)
	case <-time.After(20 * time.Millisecond):
	}
	q.Send(42)
	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("receive = %d want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("uncanceled receiver was not woken by send")
	}
}

func TestBlockingQueueConcurrentProducers(t *testing.T) {
	q := trafficlight.NewBlockingQueue[int]()
	producers := runtime.GOMAXPROCS(0) * 4
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Send(p*perProducer + i)
			}
		}(p)
	}

	total := producers * perProducer
	got := make([]int, 0, total)
	lastByProducer := make(map[int]int)
	for i := 0; i < total; i++ {
		v := q.Receive()
		p := v / perProducer
		if last, ok := lastByProducer[p]; ok && v <= last {
			t.Fatalf("producer %d out of order: %d after %d", p, v, last)
		}
		lastByProducer[p] = v
		got = append(got, v)
	}
	wg.Wait()

	sort.Ints(got)
	for i := 0; i < total; i++ {
		if got[i] != i {
			t.Fatalf("missing or duplicate value: got[%d]=%d", i, got[i])
		}
	}
	if q.Len() != 0 {
		t.Fatalf("len = %d want 0", q.Len())
	}
}

func TestBlockingQueueConcurrentReceivers(t *testing.T) {
	q := trafficlight.NewBlockingQueue[int]()
	receivers := runtime.GOMAXPROCS(0) * 2
	const total = 1000

	results := make(chan int, total)
	var wg sync.WaitGroup
	for r := 0; r < receivers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
				v, err := q.ReceiveContext(ctx)
				cancel()
				if err != nil {
					return
				}
				results <- v
			}
		}()
	}
	for i := 0; i < total; i++ {
		q.Send(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool, total)
	for v := range results {
		if seen[v] {
			t.Fatalf("value %d delivered twice", v)
		}
		seen[v] = true
	}
	if len(seen) != total {
		t.Fatalf("received %d distinct values want %d", len(seen), total)
	}
}
