package graph

import (
	"github.com/baidu/anyflow/channel"
	"github.com/baidu/anyflow/value"
)

// DeclareChannel turns the slot name (already produced by some vertex's
// Emit, wired through the Builder like any other Data) into a streaming
// edge: instead of a single Commit, producers call PublishChannel any
// number of times and ProducerDone exactly once, and any number of
// consumers can Read/ReadRange it independently of the readiness protocol
// the rest of Data uses.
//
// producers is the number of producer vertices that share this slot; the
// topic closes once that many have called ProducerDone.
func (g *Graph) DeclareChannel(name string, producers int) *channel.Topic[value.Value] {
	d, ok := g.data[name]
	if !ok {
		return nil
	}
	topic := channel.NewTopic[value.Value](producers)
	d.SetChannel(topic)
	return topic
}

// PublishChannel appends n values to name's topic and reserves them, for a
// producer vertex's Process to call instead of Context.Emit.
func (g *Graph) PublishChannel(name string, values ...value.Value) {
	d, ok := g.data[name]
	if !ok {
		return
	}
	topic, ok := d.topic.(*channel.Topic[value.Value])
	if !ok {
		return
	}
	topic.PublishN(len(values), func(set func(i int, v value.Value)) {
		for i, v := range values {
			set(i, v)
		}
	})
}

// ReadChannel returns name's backing topic for direct consumption, or nil
// if name was never declared as a channel.
func (g *Graph) ReadChannel(name string) *channel.Topic[value.Value] {
	d, ok := g.data[name]
	if !ok {
		return nil
	}
	topic, _ := d.topic.(*channel.Topic[value.Value])
	return topic
}
