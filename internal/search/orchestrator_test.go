package search

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

type clientFunc func(ctx context.Context, query string) (string, error)

func (f clientFunc) Fetch(ctx context.Context, query string) (string, error) { return f(ctx, query) }

type recorder[T any] struct {
	mu   sync.Mutex
	vals []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vals = append(r.vals, v)
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.vals...)
}

func (r *recorder[T]) last() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if len(r.vals) == 0 {
		return zero
	}
	return r.vals[len(r.vals)-1]
}

func page(names ...string) string {
	s := "<html>"
	for _, n := range names {
		s += `<img src="https://msp.c.yimg.jp/` + n + `.jpg">`
	}
	return s + "</html>"
}

func thumb(name string) string { return "https://msp.c.yimg.jp/" + name + ".jpg" }

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for search result")
		return Result{}
	}
}

func TestOrchestrator_InitialState(t *testing.T) {
	o := New(clientFunc(func(context.Context, string) (string, error) { return "", nil }))
	defer o.Close()

	s := o.Snapshot()
	if s.SearchWord != "" || s.Loading || s.ButtonEnabled || s.Err != nil {
		t.Errorf("unexpected initial state %+v", s)
	}
	if s.Items == nil || len(s.Items) != 0 {
		t.Errorf("expected empty items, got %v", s.Items)
	}

	var items recorder[[]string]
	cancel := o.SubscribeItems(items.add)
	defer cancel()
	if got := items.all(); len(got) != 1 || len(got[0]) != 0 {
		t.Errorf("expected replay of empty items, got %v", got)
	}
}

func TestOrchestrator_ButtonEnabled(t *testing.T) {
	o := New(clientFunc(func(context.Context, string) (string, error) { return "", nil }))
	defer o.Close()

	var enabled recorder[bool]
	cancel := o.SubscribeButtonEnabled(enabled.add)
	defer cancel()

	tests := []struct {
		word string
		want bool
	}{
		{"a", false},
		{"ab", false},
		{"abc", true},
		{"abcd", true},
		{"猫猫", false},
		{"猫猫猫", true},
		{"👍🏽👍🏽", false},
		{"👍🏽👍🏽👍🏽", true},
		{"e\u0301e\u0301", false},
		{"e\u0301e\u0301e", true},
		{"🇯🇵🇺🇸", false},
		{"🇯🇵🇺🇸🇫🇷", true},
		{"", false},
	}
	for _, tt := range tests {
		o.SetSearchWord(tt.word)
		if got := enabled.last(); got != tt.want {
			t.Errorf("word %q: expected enabled=%v, got %v", tt.word, tt.want, got)
		}
		if got := o.Snapshot().ButtonEnabled; got != tt.want {
			t.Errorf("word %q: snapshot expected enabled=%v, got %v", tt.word, tt.want, got)
		}
	}

	// One replay plus one delivery per change.
	if n := len(enabled.all()); n != len(tests)+1 {
		t.Errorf("expected %d deliveries, got %d", len(tests)+1, n)
	}
}

func TestOrchestrator_LoadingOnSuccess(t *testing.T) {
	release := make(chan struct{})
	var gotQuery string
	client := clientFunc(func(_ context.Context, q string) (string, error) {
		gotQuery = q
		<-release
		return page("a/b", "c", "a/b"), nil
	})

	results := make(chan Result, 1)
	o := New(client, WithOnResult(func(r Result) { results <- r }))
	defer o.Close()

	var loading recorder[bool]
	cancel := o.SubscribeLoading(loading.add)
	defer cancel()

	o.SetSearchWord("cats")
	if err := o.Trigger(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !o.Snapshot().Loading {
		t.Fatal("expected loading=true synchronously after Trigger")
	}
	if got := loading.all(); !reflect.DeepEqual(got, []bool{false, true}) {
		t.Fatalf("expected [false true] before the fetch resolves, got %v", got)
	}

	close(release)
	res := waitResult(t, results)

	if gotQuery != "cats" {
		t.Errorf("expected fetch for %q, got %q", "cats", gotQuery)
	}
	if !res.OK() || res.ID == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if got := loading.all(); !reflect.DeepEqual(got, []bool{false, true, false}) {
		t.Errorf("expected [false true false], got %v", got)
	}

	s := o.Snapshot()
	want := []string{thumb("a/b"), thumb("c")}
	if !reflect.DeepEqual(s.Items, want) {
		t.Errorf("expected items %v, got %v", want, s.Items)
	}
	if s.Err != nil {
		t.Errorf("expected no error, got %v", s.Err)
	}
}

func TestOrchestrator_FailureKeepsItems(t *testing.T) {
	fail := false
	client := clientFunc(func(context.Context, string) (string, error) {
		if fail {
			return "", errors.New("connection reset")
		}
		return page("keep"), nil
	})

	results := make(chan Result, 2)
	o := New(client, WithOnResult(func(r Result) { results <- r }))
	defer o.Close()

	var loading recorder[bool]
	var errs recorder[error]
	defer o.SubscribeLoading(loading.add)()
	defer o.SubscribeError(errs.add)()

	o.SetSearchWord("first")
	_ = o.Trigger()
	waitResult(t, results)

	fail = true
	_ = o.Trigger()
	res := waitResult(t, results)
	if res.OK() {
		t.Fatal("expected failed result")
	}

	s := o.Snapshot()
	if !reflect.DeepEqual(s.Items, []string{thumb("keep")}) {
		t.Errorf("expected items to survive the failure, got %v", s.Items)
	}
	if s.Err == nil || s.Err.Error() == "" {
		t.Errorf("expected a non-empty error, got %v", s.Err)
	}
	if s.Loading {
		t.Error("expected loading=false after failure")
	}
	if got := loading.all(); !reflect.DeepEqual(got, []bool{false, true, false, true, false}) {
		t.Errorf("unexpected loading sequence %v", got)
	}
	if last := errs.last(); last == nil || last.Error() != "connection reset" {
		t.Errorf("expected published client error, got %v", last)
	}
}

func TestOrchestrator_ErrorIsSticky(t *testing.T) {
	fail := true
	client := clientFunc(func(context.Context, string) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return page("ok"), nil
	})

	results := make(chan Result, 2)
	o := New(client, WithOnResult(func(r Result) { results <- r }))
	defer o.Close()

	var errs recorder[error]
	defer o.SubscribeError(errs.add)()

	o.SetSearchWord("word")
	_ = o.Trigger()
	waitResult(t, results)

	fail = false
	_ = o.Trigger()
	waitResult(t, results)

	s := o.Snapshot()
	if !reflect.DeepEqual(s.Items, []string{thumb("ok")}) {
		t.Errorf("expected success items, got %v", s.Items)
	}
	if s.Err == nil || s.Err.Error() != "boom" {
		t.Errorf("expected stale error to remain after success, got %v", s.Err)
	}
	// Replay of nil, then the failure. The success publishes nothing here.
	if n := len(errs.all()); n != 2 {
		t.Errorf("expected 2 error deliveries, got %d", n)
	}
}

func TestOrchestrator_StaleResultRace(t *testing.T) {
	gates := map[string]chan struct{}{
		"slow": make(chan struct{}),
		"fast": make(chan struct{}),
	}
	client := clientFunc(func(_ context.Context, q string) (string, error) {
		<-gates[q]
		return page(q), nil
	})

	results := make(chan Result, 2)
	o := New(client, WithOnResult(func(r Result) { results <- r }))
	defer o.Close()

	o.SetSearchWord("slow")
	_ = o.Trigger()
	o.SetSearchWord("fast")
	_ = o.Trigger()

	// The later-triggered search resolves first.
	close(gates["fast"])
	if r := waitResult(t, results); r.Query != "fast" {
		t.Fatalf("expected fast result first, got %q", r.Query)
	}
	s := o.Snapshot()
	if !reflect.DeepEqual(s.Items, []string{thumb("fast")}) {
		t.Errorf("expected fast items, got %v", s.Items)
	}
	if s.Loading {
		t.Error("expected loading=false once the latest search resolved")
	}

	// The earlier, slower search lands last and wins.
	close(gates["slow"])
	waitResult(t, results)
	o.Wait()

	s = o.Snapshot()
	if !reflect.DeepEqual(s.Items, []string{thumb("slow")}) {
		t.Errorf("expected completion order to win with slow items, got %v", s.Items)
	}
	if s.Loading {
		t.Error("expected loading=false")
	}
}

func TestOrchestrator_LoadingTracksLatestTrigger(t *testing.T) {
	gates := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	client := clientFunc(func(_ context.Context, q string) (string, error) {
		<-gates[q]
		return page(q), nil
	})

	results := make(chan Result, 2)
	o := New(client, WithOnResult(func(r Result) { results <- r }))
	defer o.Close()

	o.SetSearchWord("first")
	_ = o.Trigger()
	o.SetSearchWord("second")
	_ = o.Trigger()

	close(gates["first"])
	waitResult(t, results)
	s := o.Snapshot()
	if !s.Loading {
		t.Error("expected loading=true while the latest search is outstanding")
	}
	if !reflect.DeepEqual(s.Items, []string{thumb("first")}) {
		t.Errorf("expected first items applied, got %v", s.Items)
	}

	close(gates["second"])
	waitResult(t, results)
	if o.Snapshot().Loading {
		t.Error("expected loading=false after the latest search resolved")
	}
}

func TestOrchestrator_ItemsRepublishedOnEverySuccess(t *testing.T) {
	client := clientFunc(func(context.Context, string) (string, error) { return page("same"), nil })
	results := make(chan Result, 2)
	o := New(client, WithOnResult(func(r Result) { results <- r }))
	defer o.Close()

	var items recorder[[]string]
	defer o.SubscribeItems(items.add)()

	o.SetSearchWord("same")
	_ = o.Trigger()
	waitResult(t, results)
	_ = o.Trigger()
	waitResult(t, results)

	if n := len(items.all()); n != 3 {
		t.Errorf("expected replay plus 2 publishes, got %d", n)
	}
}

func TestOrchestrator_Close(t *testing.T) {
	release := make(chan struct{})
	client := clientFunc(func(context.Context, string) (string, error) {
		<-release
		return page("late"), nil
	})
	o := New(client)

	var loading recorder[bool]
	var items recorder[[]string]
	o.SubscribeLoading(loading.add)
	o.SubscribeItems(items.add)

	o.SetSearchWord("word")
	if err := o.Trigger(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o.Close()
	o.Close()

	if err := o.Trigger(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	o.SetSearchWord("ignored")

	close(release)
	o.Wait()

	if got := loading.all(); !reflect.DeepEqual(got, []bool{false, true}) {
		t.Errorf("expected no loading deliveries after Close, got %v", got)
	}
	if n := len(items.all()); n != 1 {
		t.Errorf("expected no item deliveries after Close, got %d", n)
	}
	if o.Snapshot().SearchWord != "word" {
		t.Errorf("expected search word unchanged after Close")
	}
}

func TestOrchestrator_FetchContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "base")

	var got any
	client := clientFunc(func(ctx context.Context, _ string) (string, error) {
		got = ctx.Value(key{})
		return "", nil
	})
	o := New(client, WithContext(ctx))
	defer o.Close()

	o.SetSearchWord("word")
	_ = o.Trigger()
	o.Wait()

	if got != "base" {
		t.Errorf("expected fetch to run under the base context, got %v", got)
	}
}

func TestOrchestrator_NilClient(t *testing.T) {
	results := make(chan Result, 1)
	o := New(nil, WithOnResult(func(r Result) { results <- r }))
	defer o.Close()

	o.SetSearchWord("cats")
	if err := o.Trigger(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := waitResult(t, results)
	if !errors.Is(res.Err, ErrNoClient) {
		t.Fatalf("expected ErrNoClient, got %v", res.Err)
	}

	s := o.Snapshot()
	if s.Loading || !errors.Is(s.Err, ErrNoClient) {
		t.Errorf("expected idle state carrying ErrNoClient, got %+v", s)
	}
}

func TestOrchestrator_WaitDuringTrigger(t *testing.T) {
	var fetches sync.WaitGroup
	client := clientFunc(func(context.Context, string) (string, error) {
		defer fetches.Done()
		return page("a"), nil
	})
	o := New(client)
	defer o.Close()
	o.SetSearchWord("cats")

	const n = 50
	fetches.Add(n)
	stop := make(chan struct{})
	waiting := make(chan struct{})
	go func() {
		defer close(waiting)
		for {
			select {
			case <-stop:
				return
			default:
				o.Wait()
			}
		}
	}()

	for i := 0; i < n; i++ {
		if err := o.Trigger(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	fetches.Wait()
	o.Wait()
	close(stop)
	<-waiting

	s := o.Snapshot()
	if s.Loading {
		t.Error("expected loading to be false once every cycle has been applied")
	}
	if !reflect.DeepEqual(s.Items, []string{thumb("a")}) {
		t.Errorf("unexpected items %v", s.Items)
	}
}

func TestCycle(t *testing.T) {
	ok := clientFunc(func(context.Context, string) (string, error) {
		return page("x", "y", "x"), nil
	})
	res := Cycle(context.Background(), ok, "query")
	if !res.OK() || res.Query != "query" || res.ID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !reflect.DeepEqual(res.Items, []string{thumb("x"), thumb("y")}) {
		t.Errorf("unexpected items %v", res.Items)
	}

	boom := errors.New("boom")
	bad := clientFunc(func(context.Context, string) (string, error) { return "", boom })
	res = Cycle(context.Background(), bad, "query")
	if !errors.Is(res.Err, boom) || res.Items != nil {
		t.Errorf("expected failure carrying the client error, got %+v", res)
	}

	res = Cycle(context.Background(), nil, "query")
	if !errors.Is(res.Err, ErrNoClient) {
		t.Errorf("expected ErrNoClient without a client, got %v", res.Err)
	}
}

func TestCycle_Clock(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	calls := 0
	now := func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * time.Second)
	}

	client := clientFunc(func(context.Context, string) (string, error) { return "", nil })
	res := runCycle(context.Background(), client, "q", now)

	if !res.StartedAt.Equal(base) {
		t.Errorf("expected start %v, got %v", base, res.StartedAt)
	}
	if res.Duration != time.Second {
		t.Errorf("expected 1s duration, got %v", res.Duration)
	}
	if res.Items == nil {
		t.Error("expected non-nil items on success")
	}
}
