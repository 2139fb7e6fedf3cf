package fake

import (
	"go.dedis.ch/optreg/serde"
	"golang.org/x/xerrors"
)

const (
	// GoodFormat is the format name of a format engine that succeeds.
	GoodFormat = serde.Format("FakeGood")
	// BadFormat is the format name of a format engine that fails.
	BadFormat = serde.Format("FakeBad")
)

var fakeFormatValue = []byte("fake format")

// GetFakeFormatValue returns the value returned by the fake format.
func GetFakeFormatValue() []byte {
	return append([]byte{}, fakeFormatValue...)
}

// Message is a fake implementation of a message.
//
// - implements serde.Message
type Message struct {
	Digest []byte
}

// Serialize implements serde.Message.
func (m Message) Serialize(serde.Context) ([]byte, error) {
	return GetFakeFormatValue(), nil
}

// Format is a fake format engine which returns the message it holds, or the
// error.
//
// - implements serde.FormatEngine
type Format struct {
	Msg  serde.Message
	Call *Call
	err  error
}

// NewBadFormat returns a format that always returns an error.
func NewBadFormat() Format {
	return Format{err: fakeErr}
}

// Encode implements serde.FormatEngine.
func (f Format) Encode(ctx serde.Context, m serde.Message) ([]byte, error) {
	f.Call.Add(ctx, m)

	if f.err != nil {
		return nil, f.err
	}

	return GetFakeFormatValue(), nil
}

// Decode implements serde.FormatEngine.
func (f Format) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	f.Call.Add(ctx, data)

	return f.Msg, f.err
}

// ContextEngine is a fake implementation of a context engine using JSON-like
// canned values.
//
// - implements serde.ContextEngine
type ContextEngine struct {
	Count  *Counter
	format serde.Format
	err    error
}

// NewContext returns a new fake context.
func NewContext() serde.Context {
	return serde.NewContext(ContextEngine{format: GoodFormat})
}

// NewContextWithFormat returns a new fake context with a specific format.
func NewContextWithFormat(f serde.Format) serde.Context {
	return serde.NewContext(ContextEngine{format: f})
}

// NewBadContext returns a new fake context that fails with the bad format.
func NewBadContext() serde.Context {
	return serde.NewContext(ContextEngine{format: BadFormat, err: fakeErr})
}

// GetFormat implements serde.ContextEngine.
func (ctx ContextEngine) GetFormat() serde.Format {
	return ctx.format
}

// Marshal implements serde.ContextEngine.
func (ctx ContextEngine) Marshal(interface{}) ([]byte, error) {
	if !ctx.Count.Done() {
		ctx.Count.Decrease()
		return []byte("{}"), nil
	}

	if ctx.err != nil {
		return nil, ctx.err
	}

	return []byte("{}"), nil
}

// Unmarshal implements serde.ContextEngine.
func (ctx ContextEngine) Unmarshal([]byte, interface{}) error {
	if ctx.err != nil {
		return xerrors.Errorf("unmarshal: %v", ctx.err)
	}

	return nil
}
