package eventjournal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtbexchange/router/postauction"
)

type fakeSink struct {
	recorded []postauction.Emitted
	failWith error
	closed   bool
}

func (f *fakeSink) Record(e postauction.Emitted) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.recorded = append(f.recorded, e)
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestMultiSinkFansOutToEverySink(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	m := NewMultiSink(a, b)

	ev := postauction.Emitted{RequestID: "req-1", Type: postauction.EventWin}
	require.NoError(t, m.Record(ev))

	require.Len(t, a.recorded, 1)
	require.Len(t, b.recorded, 1)
}

func TestMultiSinkReturnsFirstErrorButStillCallsEveryone(t *testing.T) {
	a := &fakeSink{failWith: errors.New("boom")}
	b := &fakeSink{}
	m := NewMultiSink(a, b)

	err := m.Record(postauction.Emitted{RequestID: "req-1"})
	require.Error(t, err)
	require.Len(t, b.recorded, 1, "a failing sink must not stop the fan-out to the rest")
}

func TestMultiSinkCloseClosesEverySink(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	m := NewMultiSink(a, b)
	require.NoError(t, m.Close())
	require.True(t, a.closed)
	require.True(t, b.closed)
}

func TestEmitAdapterCallsOnFailOnRecordError(t *testing.T) {
	fail := errors.New("write failed")
	sink := &fakeSink{failWith: fail}

	var gotErr error
	var gotEvent postauction.Emitted
	a := &EmitAdapter{Sink: sink, OnFail: func(e postauction.Emitted, err error) {
		gotEvent = e
		gotErr = err
	}}

	ev := postauction.Emitted{RequestID: "req-1", Type: postauction.EventWin}
	a.Emit(ev)

	require.Equal(t, fail, gotErr)
	require.Equal(t, ev, gotEvent)
}

func TestEmitAdapterSilentOnSuccess(t *testing.T) {
	sink := &fakeSink{}
	called := false
	a := &EmitAdapter{Sink: sink, OnFail: func(postauction.Emitted, error) { called = true }}

	a.Emit(postauction.Emitted{RequestID: "req-1"})
	require.False(t, called)
	require.Len(t, sink.recorded, 1)
}
