package xerrors

import (
	"errors"
	"runtime"
	"strings"
	"testing"
)

var errSentinel = errors.New("sentinel")

type stackCarrier interface{ StackPCs() []uintptr }

func stackContains(pcs []uintptr, substr string) bool {
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if strings.Contains(fr.Function, substr) {
			return true
		}
		if !more {
			return false
		}
	}
}

func TestNew_MessageAndStack(t *testing.T) {
	err := New("something broke")
	if err.Error() != "something broke" {
		t.Fatalf("Error() = %q", err.Error())
	}
	var hs stackCarrier
	if !errors.As(err, &hs) || len(hs.StackPCs()) == 0 {
		t.Fatal("New error should carry a stack")
	}
	if !stackContains(hs.StackPCs(), "TestNew_MessageAndStack") {
		t.Fatal("stack should contain the calling test")
	}
}

func TestNewf_WrapsWithPercentW(t *testing.T) {
	err := Newf("open %s: %w", "cms.db", errSentinel)
	if !errors.Is(err, errSentinel) {
		t.Fatal("errors.Is should find sentinel through Newf")
	}
	if want := "open cms.db: sentinel"; err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "x %d", 1) != nil {
		t.Fatal("Wrapf(nil) should be nil")
	}
	if WithStack(nil) != nil {
		t.Fatal("WithStack(nil) should be nil")
	}
	if EnsureTrace(nil) != nil {
		t.Fatal("EnsureTrace(nil) should be nil")
	}
}

func TestWrap_MessageUnwrapAndPC(t *testing.T) {
	err := Wrapf(errSentinel, "insert row page=%s", "home")
	if want := "insert row page=home: sentinel"; err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, errSentinel) {
		t.Fatal("Wrapf should unwrap to sentinel")
	}
	hp, ok := err.(interface{ PC() uintptr })
	if !ok || hp.PC() == 0 {
		t.Fatal("Wrapf should record a caller pc")
	}
	fn := runtime.FuncForPC(hp.PC())
	if fn == nil || !strings.Contains(fn.Name(), "TestWrap_MessageUnwrapAndPC") {
		t.Fatalf("pc should point at the test, got %v", fn)
	}
}

func TestEnsureTrace_AddsOnce(t *testing.T) {
	plain := errors.New("plain")
	traced := EnsureTrace(plain)
	var hs stackCarrier
	if !errors.As(traced, &hs) {
		t.Fatal("EnsureTrace should add a stack to a plain error")
	}
	if again := EnsureTrace(traced); again != traced {
		t.Fatal("EnsureTrace should not re-wrap an already traced error")
	}
	if wrappedTraced := Wrap(traced, "outer"); EnsureTrace(wrappedTraced) != wrappedTraced {
		t.Fatal("EnsureTrace should see a stack deeper in the chain")
	}
}

func TestWrappersMarkThemselves(t *testing.T) {
	for _, err := range []error{New("a"), Wrap(errSentinel, "b"), WithStack(errSentinel)} {
		if _, ok := err.(interface{ IsXerrorsWrapper() }); !ok {
			t.Errorf("%T should implement IsXerrorsWrapper", err)
		}
	}
}
