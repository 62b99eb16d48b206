package navigation

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func TestDispatchDeliversExactlyOneReply(t *testing.T) {
	g := NewWithT(t)
	f := newFixture(t, "m0", "m1", "m2")

	var reply Reply
	g.Eventually(f.machine.Dispatch(context.Background(), Action{Event: RunTest})).Should(Receive(&reply))
	assert.NoError(t, reply.Err)
	assert.Equal(t, FirstResult, reply.Outcome.To)

	replies := f.machine.Dispatch(context.Background(), Action{Event: ShowNext})
	g.Eventually(replies, time.Second).Should(Receive(&reply))
	g.Eventually(replies).Should(BeClosed())
	assert.Equal(t, InterResult, reply.Outcome.To)
}

func TestDispatchReportsRejection(t *testing.T) {
	g := NewWithT(t)
	f := newFixture(t)

	var reply Reply
	g.Eventually(f.machine.Dispatch(context.Background(), Action{Event: ShowPrevious})).Should(Receive(&reply))

	assert.ErrorIs(t, reply.Err, ErrInvalidTransition)
	assert.Equal(t, EditSingle, f.machine.State())
}

func TestDispatchSerialisesConcurrentActions(t *testing.T) {
	g := NewWithT(t)
	f := newFixture(t)

	replies := make([]<-chan Reply, 0, 10)
	for iteration := 0; iteration < 10; iteration++ {
		replies = append(replies, f.machine.Dispatch(context.Background(), Action{Event: AddFormula, Text: "x"}))
	}
	for _, r := range replies {
		var reply Reply
		g.Eventually(r).Should(Receive(&reply))
		g.Expect(reply.Err).NotTo(HaveOccurred())
	}

	assert.Equal(t, 11, f.document.Count())
	assert.Equal(t, EditMultiple, f.machine.State())
}

func TestApplyUnknownEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.machine.Apply(context.Background(), Action{Event: Event(42)})

	assert.ErrorIs(t, err, ErrInvalidTransition)
}
