package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/desertthunder/crowdq/internal/shared"
)

func TestClassify(t *testing.T) {
	tc := []struct {
		description string
		want        Category
	}{
		{"switch playback to active playlist", Critical},
		{"Resume playback", Critical},
		{"transfer playback to device", Critical},
		{"fetch liked songs page 3", LongRunning},
		{"scan library", LongRunning},
		{"add track to active playlist", Default},
		{"search tracks", Default},
	}

	for _, tt := range tc {
		t.Run(tt.description, func(t *testing.T) {
			if got := Classify(tt.description); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTimeouts(t *testing.T) {
	timeouts := Timeouts{Critical: time.Second}
	if got := timeouts.For(Critical); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}
	if got := timeouts.For(Default); got != 10*time.Second {
		t.Errorf("expected default fallback 10s, got %v", got)
	}
	if got := timeouts.For(LongRunning); got != 30*time.Second {
		t.Errorf("expected long-running fallback 30s, got %v", got)
	}
}

func TestQueue(t *testing.T) {
	t.Run("Submit Returns Value", func(t *testing.T) {
		q := NewQueue(Opts{})
		defer q.Close()

		res := q.Submit(context.Background(), "search tracks", func(context.Context) (any, error) {
			return 42, nil
		})
		if !res.Success() {
			t.Fatalf("expected success, got %v", res.Err)
		}
		if res.Value != 42 || res.Category != Default || res.ID == "" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("Do Converts Values", func(t *testing.T) {
		q := NewQueue(Opts{})
		defer q.Close()

		v, err := Do(context.Background(), q, "get track", func(context.Context) (string, error) {
			return "ok", nil
		})
		if err != nil || v != "ok" {
			t.Errorf("expected ok, got %q, %v", v, err)
		}

		_, err = Do(context.Background(), q, "get track", func(context.Context) (string, error) {
			return "", shared.ErrTrackNotFound
		})
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("At Most One Non-Critical Operation Runs", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			q := NewQueue(Opts{})
			defer q.Close()

			var running, peak atomic.Int32
			var wg sync.WaitGroup
			for range 5 {
				wg.Go(func() {
					q.Submit(context.Background(), "add track", func(context.Context) (any, error) {
						n := running.Add(1)
						for {
							p := peak.Load()
							if n <= p || peak.CompareAndSwap(p, n) {
								break
							}
						}
						time.Sleep(100 * time.Millisecond)
						running.Add(-1)
						return nil, nil
					})
				})
			}
			wg.Wait()

			if peak.Load() != 1 {
				t.Errorf("expected peak concurrency 1, got %d", peak.Load())
			}
		})
	})

	t.Run("Critical Bypasses Queue", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			q := NewQueue(Opts{})
			defer q.Close()

			release := make(chan struct{})
			go q.Submit(context.Background(), "add track", func(ctx context.Context) (any, error) {
				select {
				case <-release:
				case <-ctx.Done():
				}
				return nil, nil
			})
			synctest.Wait()

			start := time.Now()
			res := q.Submit(context.Background(), "switch playback", func(context.Context) (any, error) {
				return "switched", nil
			})
			if !res.Success() || res.Category != Critical {
				t.Fatalf("expected critical success, got %+v", res)
			}
			if time.Since(start) != 0 {
				t.Errorf("expected critical op to run without waiting, took %v", time.Since(start))
			}
			close(release)
		})
	})

	t.Run("Category Override", func(t *testing.T) {
		q := NewQueue(Opts{})
		defer q.Close()

		res := q.Submit(context.Background(), "add track", func(context.Context) (any, error) {
			return nil, nil
		}, WithCategory(LongRunning))
		if !res.Success() || res.Category != LongRunning {
			t.Errorf("expected long-running success, got %+v", res)
		}
	})

	t.Run("Priority Is Prepended Not Preemptive", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			q := NewQueue(Opts{})
			defer q.Close()

			var mu sync.Mutex
			var order []string
			record := func(name string) Task {
				return func(context.Context) (any, error) {
					mu.Lock()
					order = append(order, name)
					mu.Unlock()
					time.Sleep(10 * time.Millisecond)
					return nil, nil
				}
			}

			var wg sync.WaitGroup
			wg.Go(func() { q.Submit(context.Background(), "first", record("first")) })
			synctest.Wait()
			wg.Go(func() { q.Submit(context.Background(), "second", record("second")) })
			synctest.Wait()
			wg.Go(func() { q.Submit(context.Background(), "third", record("third")) })
			synctest.Wait()
			wg.Go(func() { q.Submit(context.Background(), "urgent", record("urgent"), WithPriority()) })
			synctest.Wait()
			wg.Wait()

			want := []string{"first", "urgent", "second", "third"}
			if len(order) != len(want) {
				t.Fatalf("expected %v, got %v", want, order)
			}
			for i := range want {
				if order[i] != want[i] {
					t.Fatalf("expected %v, got %v", want, order)
				}
			}
		})
	})

	t.Run("Timeout Does Not Block Worker", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			q := NewQueue(Opts{Timeouts: Timeouts{Default: time.Second}})
			defer q.Close()

			var slow, fast Result
			var wg sync.WaitGroup
			wg.Go(func() {
				slow = q.Submit(context.Background(), "stuck call", func(ctx context.Context) (any, error) {
					time.Sleep(time.Hour)
					return nil, nil
				})
			})
			synctest.Wait()
			wg.Go(func() {
				fast = q.Submit(context.Background(), "next call", func(context.Context) (any, error) {
					return "done", nil
				})
			})
			wg.Wait()

			if !errors.Is(slow.Err, shared.ErrTimeout) {
				t.Errorf("expected ErrTimeout, got %v", slow.Err)
			}
			if slow.Elapsed != time.Second {
				t.Errorf("expected timeout after 1s, got %v", slow.Elapsed)
			}
			if !fast.Success() || fast.Value != "done" {
				t.Errorf("expected next op to succeed, got %+v", fast)
			}
			time.Sleep(time.Hour)
		})
	})

	t.Run("Context Aware Task Timeout", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			q := NewQueue(Opts{Timeouts: Timeouts{Critical: 5 * time.Second}})
			defer q.Close()

			res := q.Submit(context.Background(), "resume playback", func(ctx context.Context) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})
			if !errors.Is(res.Err, shared.ErrTimeout) {
				t.Errorf("expected ErrTimeout, got %v", res.Err)
			}
		})
	})

	t.Run("Panics Become Results", func(t *testing.T) {
		q := NewQueue(Opts{})
		defer q.Close()

		res := q.Submit(context.Background(), "bad op", func(context.Context) (any, error) {
			panic("boom")
		})
		if !errors.Is(res.Err, shared.ErrOperationPanic) {
			t.Errorf("expected ErrOperationPanic, got %v", res.Err)
		}
	})

	t.Run("Canceled Caller Is Skipped", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			q := NewQueue(Opts{})
			defer q.Close()

			release := make(chan struct{})
			go q.Submit(context.Background(), "blocker", func(context.Context) (any, error) {
				<-release
				return nil, nil
			})
			synctest.Wait()

			var ran atomic.Bool
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan Result, 1)
			go func() {
				done <- q.Submit(ctx, "skipped", func(context.Context) (any, error) {
					ran.Store(true)
					return nil, nil
				})
			}()
			synctest.Wait()
			cancel()

			res := <-done
			if !errors.Is(res.Err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", res.Err)
			}
			close(release)
			q.Submit(context.Background(), "after", func(context.Context) (any, error) { return nil, nil })
			if ran.Load() {
				t.Error("expected canceled op to be skipped")
			}
		})
	})

	t.Run("Close Fails Pending", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			q := NewQueue(Opts{})

			release := make(chan struct{})
			go q.Submit(context.Background(), "blocker", func(context.Context) (any, error) {
				<-release
				return nil, nil
			})
			synctest.Wait()

			done := make(chan Result, 1)
			go func() {
				done <- q.Submit(context.Background(), "pending", func(context.Context) (any, error) { return nil, nil })
			}()
			synctest.Wait()
			if q.Pending() != 1 {
				t.Fatalf("expected 1 pending, got %d", q.Pending())
			}

			go func() {
				synctest.Wait()
				close(release)
			}()
			q.Close()

			if res := <-done; !errors.Is(res.Err, shared.ErrQueueClosed) {
				t.Errorf("expected ErrQueueClosed, got %v", res.Err)
			}

			res := q.Submit(context.Background(), "late", func(context.Context) (any, error) { return nil, nil })
			if !errors.Is(res.Err, shared.ErrQueueClosed) {
				t.Errorf("expected ErrQueueClosed after close, got %v", res.Err)
			}
		})
	})

	t.Run("Rate Limit Spaces Operations", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			q := NewQueue(Opts{RateLimit: 2, Burst: 1})
			defer q.Close()

			start := time.Now()
			for range 3 {
				q.Submit(context.Background(), "get track", func(context.Context) (any, error) { return nil, nil })
			}
			if elapsed := time.Since(start); elapsed != time.Second {
				t.Errorf("expected 1s for 3 ops at 2/s, got %v", elapsed)
			}
		})
	})

	t.Run("Notify Receives Results", func(t *testing.T) {
		notify := make(chan Result, 1)
		q := NewQueue(Opts{Notify: notify})
		defer q.Close()

		q.Submit(context.Background(), "first", func(context.Context) (any, error) { return nil, nil })
		q.Submit(context.Background(), "dropped", func(context.Context) (any, error) { return nil, nil })

		res := <-notify
		if res.Description != "first" {
			t.Errorf("expected first result, got %s", res.Description)
		}
	})
}
