package factory_test

import (
	"bytes"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-forge/factory"
)

// ── Basic resolution ──────────────────────────────────────────────────────────

func TestFinder_ExactMatch(t *testing.T) {
	f, err := factory.New().WithProvider(func(s string) int { return len(s) })
	require.NoError(t, err)

	c, ok := f.Find(0, "")
	require.True(t, ok)

	out, err := c.Invoke("hello")
	require.NoError(t, err)
	assert.Equal(t, 5, out)
}

func TestFinder_NoProvider(t *testing.T) {
	_, err := factory.New().FindOrFail(0)
	var missing *factory.NoSuchProviderError
	require.ErrorAs(t, err, &missing)
}

func TestFinder_NewestRegistrationShadows(t *testing.T) {
	f, err := factory.New().WithProvider(func() string { return "old" })
	require.NoError(t, err)
	f, err = f.WithProvider(func() string { return "new" })
	require.NoError(t, err)

	c, ok := f.Find("")
	require.True(t, ok)

	out, err := c.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "new", out)
}

func TestFinder_RegistrationIsImmutable(t *testing.T) {
	base := factory.New()
	_, err := base.WithProvider(func() string { return "x" })
	require.NoError(t, err)

	// The original Finder still cannot resolve the new provider's shape.
	_, ok := base.Find("")
	assert.False(t, ok)
}

func TestFinder_NilArgumentMeansZero(t *testing.T) {
	f, err := factory.New().WithProvider(func(s string) int { return len(s) })
	require.NoError(t, err)

	c, ok := f.Find(0, "")
	require.True(t, ok)

	out, err := c.Invoke(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out)
}

func TestFinder_InvokeArityChecked(t *testing.T) {
	f, err := factory.New().WithProvider(func(s string) int { return len(s) })
	require.NoError(t, err)

	c, ok := f.Find(0, "")
	require.True(t, ok)

	_, err = c.Invoke("a", "b")
	var mismatched *factory.MismatchedSignatureError
	require.ErrorAs(t, err, &mismatched)
}

// ── Default constructor fallback ──────────────────────────────────────────────

type widget struct {
	Name string
}

func TestFinder_DefaultConstructor_FreshInstancePerCall(t *testing.T) {
	c, ok := factory.New().Find((*widget)(nil))
	require.True(t, ok)

	a, err := c.Invoke()
	require.NoError(t, err)
	b, err := c.Invoke()
	require.NoError(t, err)

	require.NotNil(t, a)
	assert.NotSame(t, a.(*widget), b.(*widget))
}

func TestFinder_DefaultConstructor_Collections(t *testing.T) {
	f := factory.New()

	c, ok := f.Find(map[string]int{})
	require.True(t, ok)
	m, err := c.Invoke()
	require.NoError(t, err)
	assert.NotNil(t, m.(map[string]int))

	c, ok = f.Find([]string{})
	require.True(t, ok)
	s, err := c.Invoke()
	require.NoError(t, err)
	assert.Len(t, s.([]string), 0)
}

func TestFinder_DefaultConstructor_NotForScalars(t *testing.T) {
	_, ok := factory.New().Find(0)
	assert.False(t, ok)
}

// ── Allow-listed providers ────────────────────────────────────────────────────

func TestFinder_WithProviderFor_RestrictsToAcceptedTypes(t *testing.T) {
	f, err := factory.New().WithProviderFor(
		func() *bytes.Buffer { return bytes.NewBufferString("listed") },
		(*io.Reader)(nil),
	)
	require.NoError(t, err)

	c, ok := f.Find((*io.Reader)(nil))
	require.True(t, ok)
	out, err := c.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "listed", out.(*bytes.Buffer).String())

	// io.Writer is satisfiable by the return type but not accepted.
	_, ok = f.Find((*io.Writer)(nil))
	assert.False(t, ok)
}

func TestFinder_WithProviderFor_RejectsUnrelatedType(t *testing.T) {
	_, err := factory.New().WithProviderFor(func() *bytes.Buffer { return nil }, 0)
	var mismatched *factory.MismatchedSignatureError
	require.ErrorAs(t, err, &mismatched)
}

// ── Requested-type parameter ──────────────────────────────────────────────────

type named interface{ Name() string }

type cat struct{}

func (cat) Name() string { return "cat" }

type dog struct{}

func (dog) Name() string { return "dog" }

func TestFinder_RequestedTypeParameter(t *testing.T) {
	f, err := factory.New().WithProvider(func(t reflect.Type) named {
		return reflect.New(t).Elem().Interface().(named)
	})
	require.NoError(t, err)

	c, ok := f.Find(cat{})
	require.True(t, ok)
	out, err := c.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "cat", out.(named).Name())

	c, ok = f.Find(dog{})
	require.True(t, ok)
	out, err = c.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "dog", out.(named).Name())

	// Types outside the declared upper bound are not admitted.
	_, ok = f.Find("")
	assert.False(t, ok)
}

// ── Optional providers ────────────────────────────────────────────────────────

func TestFinder_OptionalProvider_NilDelegates(t *testing.T) {
	f, err := factory.New().WithProvider(func() *widget { return &widget{Name: "base"} })
	require.NoError(t, err)

	f, err = f.WithOptionalProvider(func() *widget { return nil })
	require.NoError(t, err)

	c, ok := f.Find((*widget)(nil))
	require.True(t, ok)
	out, err := c.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "base", out.(*widget).Name)
}

func TestFinder_OptionalProvider_ValueWins(t *testing.T) {
	f, err := factory.New().WithProvider(func() *widget { return &widget{Name: "base"} })
	require.NoError(t, err)

	f, err = f.WithOptionalProvider(func() *widget { return &widget{Name: "override"} })
	require.NoError(t, err)

	c, ok := f.Find((*widget)(nil))
	require.True(t, ok)
	out, err := c.Invoke()
	require.NoError(t, err)
	assert.Equal(t, "override", out.(*widget).Name)
}

func TestFinder_OptionalProvider_DefaultConstructorFallback(t *testing.T) {
	f, err := factory.New().WithOptionalProvider(func() *widget { return nil })
	require.NoError(t, err)

	c, ok := f.Find((*widget)(nil))
	require.True(t, ok)
	out, err := c.Invoke()
	require.NoError(t, err)
	assert.NotNil(t, out.(*widget))
}

func TestFinder_OptionalProvider_NoFallbackRejectedAtRegistration(t *testing.T) {
	_, err := factory.New().WithOptionalProvider(func(s string) io.Reader { return nil })
	var mismatched *factory.MismatchedSignatureError
	require.ErrorAs(t, err, &mismatched)
}

func TestFinder_OptionalProvider_NonNilableReturnRejected(t *testing.T) {
	_, err := factory.New().WithOptionalProvider(func() int { return 0 })
	var mismatched *factory.MismatchedSignatureError
	require.ErrorAs(t, err, &mismatched)
}

// ── Factory containers ────────────────────────────────────────────────────────

type stringFactory struct {
	prefix string
}

func (sf *stringFactory) ProvideGreeting() string { return sf.prefix + "hello" }
func (sf *stringFactory) ProvideCount() int       { return len(sf.prefix) }

func TestFinder_WithFactory_Instance(t *testing.T) {
	f, err := factory.New().WithFactory(&stringFactory{prefix: ">> "})
	require.NoError(t, err)

	c, ok := f.Find("")
	require.True(t, ok)
	out, err := c.Invoke()
	require.NoError(t, err)
	assert.Equal(t, ">> hello", out)

	c, ok = f.Find(0)
	require.True(t, ok)
	out, err = c.Invoke()
	require.NoError(t, err)
	assert.Equal(t, 3, out)
}

var containerBuilds atomic.Int32

type countedFactory struct {
	id int32
}

func (cf *countedFactory) ProvideLabel() string { return "built" }
func (cf *countedFactory) ProvideID() int32     { return cf.id }

func TestFinder_WithFactory_TypeToken_ReceiverBuiltOnce(t *testing.T) {
	containerBuilds.Store(0)

	f, err := factory.New().WithProvider(func() *countedFactory {
		return &countedFactory{id: containerBuilds.Add(1)}
	})
	require.NoError(t, err)

	f, err = f.WithFactory(reflect.TypeOf((*countedFactory)(nil)))
	require.NoError(t, err)

	label, ok := f.Find("")
	require.True(t, ok)
	id, ok := f.Find(int32(0))
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := label.Invoke()
			assert.NoError(t, err)
			assert.Equal(t, "built", out)
		}()
	}
	wg.Wait()

	out, err := id.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(1), out)
	assert.Equal(t, int32(1), containerBuilds.Load())
}

func TestFinder_WithFactory_NoProviderMethods(t *testing.T) {
	_, err := factory.New().WithFactory(&widget{})
	var mismatched *factory.MismatchedSignatureError
	require.ErrorAs(t, err, &mismatched)
}

type loopFactory struct{}

func (lf *loopFactory) ProvideSelf() *loopFactory { return lf }

func TestFinder_WithFactory_RecursiveReceiverRejected(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	f, err := factory.New(factory.WithLogger(zap.New(core))).
		WithFactory(reflect.TypeOf((*loopFactory)(nil)))
	require.NoError(t, err)

	c, ok := f.Find((*loopFactory)(nil))
	require.True(t, ok)

	_, err = c.Invoke()
	require.ErrorIs(t, err, factory.ErrRecursiveConstruction)
	assert.Equal(t, 1, logs.FilterMessage("recursive receiver construction rejected").Len())
}

// ── Converter-backed resolution ───────────────────────────────────────────────

func TestFinder_WithConverter_BridgesParameter(t *testing.T) {
	f, err := factory.New().WithProvider(func(n int) string {
		return string(rune('a' + n))
	})
	require.NoError(t, err)

	f, err = f.WithConverter(func(s string) int { return len(s) })
	require.NoError(t, err)

	// A string argument reaches the int parameter through the converter.
	c, ok := f.Find("", "")
	require.True(t, ok)
	out, err := c.Invoke("xx")
	require.NoError(t, err)
	assert.Equal(t, "c", out)
}

// ── Concurrent use ────────────────────────────────────────────────────────────

func TestFinder_ConcurrentFindAndInvoke(t *testing.T) {
	f, err := factory.New().WithProvider(func(s string) int { return len(s) })
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, ok := f.Find(0, "")
			if !ok {
				t.Error("resolution failed")
				return
			}
			out, err := c.Invoke("abc")
			assert.NoError(t, err)
			assert.Equal(t, 3, out)
		}()
	}
	wg.Wait()
}
