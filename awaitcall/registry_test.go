package awaitcall

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
)

func constHandler(v interface{}) Handler {
	return HandlerFunc(func(context.Context, json.RawMessage) (interface{}, error) {
		return v, nil
	})
}

func TestRegistry(t *testing.T) {
	r := Registry{}

	if _, ok := r.Lookup("a"); ok {
		t.Errorf("empty registry returned a handler")
	}
	// Unregistering an unknown name is a no-op
	r.Unregister("a")

	r.Register("b", constHandler("b1"))
	r.Register("a", constHandler("a1"))
	r.Register("b", constHandler("b2"))

	if want, got := []string{"a", "b"}, r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("got: %q; want %q", got, want)
	}

	h, ok := r.Lookup("b")
	if !ok {
		t.Fatal("missing handler for b")
	}
	got, err := h.Invoke(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := "b2"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}

	r.Unregister("b")
	if _, ok := r.Lookup("b"); ok {
		t.Errorf("b is still registered")
	}
	if want, got := []string{"a"}, r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("got: %q; want %q", got, want)
	}
}
