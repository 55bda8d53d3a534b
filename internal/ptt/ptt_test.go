package ptt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDCDMatrixORsAcrossSlicersAndSubChannels(t *testing.T) {
	m := NewDCDMatrix(2, 3)
	assert.False(t, m.Any())

	m.Set(1, 2, true)
	assert.True(t, m.Any())

	m.Set(1, 2, false)
	assert.False(t, m.Any())

	m.Set(0, 0, true)
	assert.True(t, m.DataDetectAny(0))
}

func TestNoopOutputNeverErrors(t *testing.T) {
	o := NewNoop()
	assert.NoError(t, o.Set(true))
	assert.NoError(t, o.Set(false))
	assert.NoError(t, o.Close())
}

func TestNoopInputNeverAsserted(t *testing.T) {
	in := NewNoopInput()
	on, err := in.Get()
	assert.NoError(t, err)
	assert.False(t, on)
	assert.NoError(t, in.Close())
}

type fakeInput struct{ asserted bool }

func (f *fakeInput) Get() (bool, error) { return f.asserted, nil }
func (f *fakeInput) Close() error       { return nil }

func TestDCDMatrixORsInTransmitInhibit(t *testing.T) {
	m := NewDCDMatrix(1, 1)
	inh := &fakeInput{}
	m.SetInhibit(inh)
	assert.False(t, m.Any(), "no slicer busy and inhibit deasserted")

	inh.asserted = true
	assert.True(t, m.Any(), "inhibit line alone must mark the channel busy")

	inh.asserted = false
	m.Set(0, 0, true)
	assert.True(t, m.Any())
}
