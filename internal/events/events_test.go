package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var got []string
	bus.Subscribe(func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.OwnerID)
		return errors.New("boom")
	}, ServiceChanged)
	bus.Subscribe(func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.OwnerID)
		assert.False(t, e.CreatedAt.IsZero())
		return nil
	}, ServiceChanged, EmployeeChanged)

	bus.Publish(context.Background(), Event{Kind: ServiceChanged, OwnerID: "haircut"})
	bus.Publish(context.Background(), Event{Kind: EmployeeChanged, OwnerID: "anna"})
	bus.Publish(context.Background(), Event{Kind: ConfigApplied})

	assert.Equal(t, []string{"first:haircut", "second:haircut", "second:anna"}, got)
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Kind: ServiceChanged})
	})
}
