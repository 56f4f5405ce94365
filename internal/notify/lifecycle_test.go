package notify

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Lifecycle", func() {
	var lifecycle *Lifecycle

	BeforeEach(func() {
		lifecycle = NewLifecycle()
	})

	It("starts uninitialized", func() {
		Expect(lifecycle.State()).To(Equal(StateUninitialized))
		Expect(lifecycle.State().String()).To(Equal("uninitialized"))
	})

	It("rejects skipping authentication", func() {
		Expect(lifecycle.Transition(StateReady, nil)).NotTo(Succeed())
		Expect(lifecycle.State()).To(Equal(StateUninitialized))
	})

	When("authentication succeeds", func() {
		BeforeEach(func() {
			Expect(lifecycle.Transition(StateAwaitingAuth, nil)).To(Succeed())
			Expect(lifecycle.Transition(StateReady, nil)).To(Succeed())
		})

		It("releases WaitReady", func() {
			Expect(lifecycle.WaitReady(context.Background())).To(Succeed())
		})

		It("can later fail", func() {
			Expect(lifecycle.Transition(StateFailed, ErrClosed)).To(Succeed())
			Expect(lifecycle.WaitReady(context.Background())).To(MatchError(ErrClosed))
		})
	})

	When("authentication fails", func() {
		var cause error

		BeforeEach(func() {
			cause = errors.New("bad token")
			Expect(lifecycle.Transition(StateAwaitingAuth, nil)).To(Succeed())
			Expect(lifecycle.Transition(StateFailed, cause)).To(Succeed())
		})

		It("returns the failure from WaitReady", func() {
			Expect(lifecycle.WaitReady(context.Background())).To(MatchError(cause))
			Expect(lifecycle.Err()).To(MatchError(cause))
		})

		It("is terminal", func() {
			Expect(lifecycle.Transition(StateReady, nil)).NotTo(Succeed())
		})
	})

	When("still awaiting authentication", func() {
		BeforeEach(func() {
			Expect(lifecycle.Transition(StateAwaitingAuth, nil)).To(Succeed())
		})

		It("honours the context deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			Expect(lifecycle.WaitReady(ctx)).To(MatchError(context.DeadlineExceeded))
		})

		It("wakes waiters when it settles", func() {
			done := make(chan error, 1)
			go func() { done <- lifecycle.WaitReady(context.Background()) }()
			Consistently(done, 20*time.Millisecond).ShouldNot(Receive())
			Expect(lifecycle.Transition(StateReady, nil)).To(Succeed())
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
