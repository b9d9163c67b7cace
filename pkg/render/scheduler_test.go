package render

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/bugwork/pkg/router"
)

type swapLog struct {
	mu    sync.Mutex
	swaps []string
}

func (l *swapLog) Swap(selector string, f Fragment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.swaps = append(l.swaps, selector+"="+f.View())
	return nil
}

func (l *swapLog) got() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.swaps...)
}

func delayed(d time.Duration, text string) Producer {
	return func(ctx context.Context) (Fragment, error) {
		time.Sleep(d)
		return Text(text), nil
	}
}

func TestSubmit_SlowFirstJobStillSwapsFirst(t *testing.T) {
	host := &swapLog{}
	s := NewScheduler(host)

	first := s.Submit(context.Background(), Content, delayed(50*time.Millisecond, "slow"))
	second := s.Submit(context.Background(), Content, delayed(0, "fast"))

	if err := second.Wait(); err != nil {
		t.Fatal(err)
	}
	if err := first.Wait(); err != nil {
		t.Fatal(err)
	}

	want := []string{"#content=slow", "#content=fast"}
	if got := host.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("swaps = %v, want %v", got, want)
	}
}

func TestSubmit_FailedProducerDoesNotBlockQueue(t *testing.T) {
	host := &swapLog{}
	s := NewScheduler(host)

	boom := errors.New("template missing")
	bad := s.Submit(context.Background(), Content, func(context.Context) (Fragment, error) {
		return nil, boom
	})
	good := s.Submit(context.Background(), Content, delayed(0, "after"))

	if err := bad.Wait(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := good.Wait(); err != nil {
		t.Fatalf("job after failure: %v", err)
	}
	if got := host.got(); !reflect.DeepEqual(got, []string{"#content=after"}) {
		t.Errorf("swaps = %v", got)
	}
}

func TestSubmit_PanickingProducerRecovers(t *testing.T) {
	host := &swapLog{}
	s := NewScheduler(host)

	bad := s.Submit(context.Background(), Content, func(context.Context) (Fragment, error) {
		panic("boom")
	})
	good := s.Submit(context.Background(), Content, delayed(0, "ok"))

	if err := bad.Wait(); err == nil {
		t.Fatal("expected error from panicking producer")
	}
	if err := good.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestSubmit_NilFragmentFails(t *testing.T) {
	s := NewScheduler(&swapLog{})
	job := s.Submit(context.Background(), Content, func(context.Context) (Fragment, error) { return nil, nil })
	if err := job.Wait(); err == nil {
		t.Fatal("expected error for nil fragment")
	}
}

func TestStep_ContinuesAfterSwapAndStopsOnFailure(t *testing.T) {
	host := &swapLog{}
	s := NewScheduler(host)

	ok := s.Step(Content, ViewFunc(func(ctx context.Context, nav *router.Context) (Fragment, error) {
		return Text("bug " + nav.Param("id")), nil
	}))
	nav := &router.Context{Path: "/bug/3", Params: map[string]string{"id": "3"}}
	if res := ok(context.Background(), nav); res.Stopped() {
		t.Fatalf("expected Next, got %v", res)
	}
	if got := host.got(); !reflect.DeepEqual(got, []string{"#content=bug 3"}) {
		t.Errorf("swaps = %v", got)
	}

	failing := s.Step(Content, ViewFunc(func(context.Context, *router.Context) (Fragment, error) {
		return nil, errors.New("nope")
	}))
	if res := failing(context.Background(), nav); !res.Stopped() || res.Err() != nil {
		t.Errorf("expected silent stop, got %v", res)
	}
}

func TestIdle_WaitsForQueue(t *testing.T) {
	host := &swapLog{}
	s := NewScheduler(host)
	for i := 0; i < 5; i++ {
		s.Submit(context.Background(), Content, delayed(5*time.Millisecond, fmt.Sprint(i)))
	}
	s.Idle()
	if n := len(host.got()); n != 5 {
		t.Errorf("expected 5 swaps after Idle, got %d", n)
	}
}

func TestSubmit_OrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		delays := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 8).Draw(t, "delays")

		host := &swapLog{}
		s := NewScheduler(host)
		want := make([]string, len(delays))
		for i, d := range delays {
			text := fmt.Sprint(i)
			want[i] = Content + "=" + text
			s.Submit(context.Background(), Content, delayed(time.Duration(d)*time.Millisecond, text))
		}
		s.Idle()

		if got := host.got(); !reflect.DeepEqual(got, want) {
			t.Fatalf("swaps = %v, want %v", got, want)
		}
	})
}

func TestSubmit_NeverConcurrent(t *testing.T) {
	s := NewScheduler(&swapLog{})

	var mu sync.Mutex
	running, maxRunning := 0, 0
	for i := 0; i < 10; i++ {
		s.Submit(context.Background(), Content, func(context.Context) (Fragment, error) {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return Text("x"), nil
		})
	}
	s.Idle()
	if maxRunning != 1 {
		t.Errorf("expected at most one producer at a time, saw %d", maxRunning)
	}
}
