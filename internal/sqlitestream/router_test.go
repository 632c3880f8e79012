package sqlitestream

import (
	"errors"
	"testing"
)

func newTestRouter(cfg Config) *router {
	return &router{
		cfg:           cfg,
		usableSize:    512,
		ddl:           newDDLCache(cfg.ColumnCacheSize),
		bufferedPages: make(map[uint32]page),
		processors:    make(map[uint32]processor),
	}
}

func TestRouterBuffersUnclaimedPages(t *testing.T) {
	rt := newTestRouter(Config{})

	if err := rt.feed(page{Num: 5, Bytes: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if _, ok := rt.bufferedPages[5]; !ok {
		t.Error("page 5 should be buffered until a processor claims it")
	}
}

func TestRouterDispatchOnAlreadyBufferedPage(t *testing.T) {
	rt := newTestRouter(Config{})
	if err := rt.feed(page{Num: 5, Bytes: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("feed() error = %v", err)
	}

	called := false
	err := rt.dispatch(5, func(rt *router) error {
		called = true
		if rt.current.Num != 5 {
			t.Errorf("processor saw page %d, want 5", rt.current.Num)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}
	if !called {
		t.Error("dispatch() on an already-buffered page should run the processor immediately")
	}
	if _, ok := rt.bufferedPages[5]; ok {
		t.Error("page 5 should be removed from the buffer once claimed")
	}
}

func TestRouterDispatchBeforeArrival(t *testing.T) {
	rt := newTestRouter(Config{})

	called := false
	if err := rt.dispatch(7, func(rt *router) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("dispatch() error = %v", err)
	}
	if called {
		t.Fatal("processor ran before its page arrived")
	}

	if err := rt.feed(page{Num: 7, Bytes: []byte{9, 9}}); err != nil {
		t.Fatalf("feed() error = %v", err)
	}
	if !called {
		t.Error("feeding the awaited page should have run the registered processor")
	}
}

func TestRouterFinishFailsWithUnclaimedPages(t *testing.T) {
	rt := newTestRouter(Config{})
	if err := rt.feed(page{Num: 3, Bytes: []byte{0}}); err != nil {
		t.Fatalf("feed() error = %v", err)
	}

	err := rt.finish()
	if !errors.Is(err, ErrUnusedPage) {
		t.Errorf("finish() error = %v, want ErrUnusedPage", err)
	}
}

func TestRouterFinishSucceedsWhenEmpty(t *testing.T) {
	rt := newTestRouter(Config{})
	if err := rt.finish(); err != nil {
		t.Errorf("finish() error = %v, want nil", err)
	}
}

func TestRouterBufferSizeExceeded(t *testing.T) {
	rt := newTestRouter(Config{BufferSize: 5})

	err := rt.feed(page{Num: 1, Bytes: make([]byte, 10)})
	if !errors.Is(err, ErrBufferExceeded) {
		t.Errorf("feed() error = %v, want ErrBufferExceeded", err)
	}
}

func TestRouterDispatchToPageZeroIsNoop(t *testing.T) {
	rt := newTestRouter(Config{})
	called := false
	if err := rt.dispatch(0, func(rt *router) error { called = true; return nil }); err != nil {
		t.Fatalf("dispatch(0, ...) error = %v", err)
	}
	if called {
		t.Error("dispatch(0, ...) should never run, page 0 does not exist")
	}
	if len(rt.processors) != 0 {
		t.Error("dispatch(0, ...) should not register a pending processor either")
	}
}
