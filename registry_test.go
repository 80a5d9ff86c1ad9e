package goplug_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

func passThrough(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (message.Message, error) {
	return next(ctx, msg)
}

func TestRegistry(t *testing.T) {
	t.Run("register and lookup", func(t *testing.T) {
		reg := goplug.NewRegistry()
		reg.Register("pass", goplug.NewPlug(passThrough))

		if _, ok := reg.Lookup("pass"); !ok {
			t.Errorf("Lookup(pass) missed a registered plug")
		}
		if _, ok := reg.Lookup("absent"); ok {
			t.Errorf("Lookup(absent) found a plug")
		}
	})

	t.Run("names are sorted", func(t *testing.T) {
		reg := goplug.NewRegistry()
		reg.Register("zeta", goplug.NewPlug(passThrough))
		reg.Register("alpha", goplug.NewPlug(passThrough))

		want := []string{"alpha", "zeta"}
		if got := reg.Names(); !reflect.DeepEqual(got, want) {
			t.Errorf("Names() = %v, want %v", got, want)
		}
	})

	t.Run("duplicate registration panics", func(t *testing.T) {
		reg := goplug.NewRegistry()
		reg.Register("dup", goplug.NewPlug(passThrough))

		defer func() {
			if recover() == nil {
				t.Errorf("duplicate Register did not panic")
			}
		}()
		reg.Register("dup", goplug.NewPlug(passThrough))
	})

	t.Run("empty name panics", func(t *testing.T) {
		reg := goplug.NewRegistry()
		defer func() {
			if recover() == nil {
				t.Errorf("empty-name Register did not panic")
			}
		}()
		reg.Register("", goplug.NewPlug(passThrough))
	})

	t.Run("nil plug panics", func(t *testing.T) {
		reg := goplug.NewRegistry()
		defer func() {
			if recover() == nil {
				t.Errorf("nil-plug Register did not panic")
			}
		}()
		reg.Register("nil", nil)
	})
}
