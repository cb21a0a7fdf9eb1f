package state

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func waiters(s *Serializer, chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.chats[chatID]
	if !ok {
		return 0
	}
	return l.waiters
}

func TestDoSerializesSameChat(t *testing.T) {
	s := NewSerializer()
	entered := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var order []string
	add := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = s.Do(7, func() error {
			close(entered)
			<-release
			add("first")
			return nil
		})
	}()

	<-entered
	if !s.Busy(7) {
		t.Fatalf("chat should report busy while a turn runs")
	}

	go func() {
		defer wg.Done()
		_ = s.Do(7, func() error {
			add("second")
			return nil
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for waiters(s, 7) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("second turn never queued")
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v", order)
	}
	if s.Busy(7) {
		t.Fatalf("chat still busy after both turns finished")
	}
}

func TestDifferentChatsProceedIndependently(t *testing.T) {
	s := NewSerializer()
	hold := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Do(1, func() error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- s.Do(2, func() error { return nil })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("other chat's turn: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("other chat blocked behind a busy one")
	}

	close(hold)
	wg.Wait()
}

func TestDoReturnsFnError(t *testing.T) {
	s := NewSerializer()
	want := errors.New("boom")
	if got := s.Do(3, func() error { return want }); !errors.Is(got, want) {
		t.Fatalf("err = %v, expected %v", got, want)
	}
	if s.Busy(3) {
		t.Fatalf("chat left busy after an error")
	}
}

func TestBusyUnknownChat(t *testing.T) {
	if NewSerializer().Busy(99) {
		t.Fatalf("unknown chat reported busy")
	}
}
