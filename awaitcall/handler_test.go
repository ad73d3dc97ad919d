package awaitcall

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"testing"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func TestFunc(t *testing.T) {
	ctx := context.WithValue(context.Background(), contextKey("test"), "value")

	cases := []struct {
		Fn   interface{}
		Args string
		Want interface{}
	}{
		{func(x, y int) int { return x + y }, `[2,3]`, 5},
		{func() string { return "none" }, `[]`, "none"},
		{func() string { return "none" }, ``, "none"},
		{func() {}, `[]`, nil},
		{func() error { return nil }, `[]`, nil},
		{func(s string) (string, error) { return s + "!", nil }, `["hi"]`, "hi!"},
		{func(p point) int { return p.X * p.Y }, `[{"x":3,"y":4}]`, 12},
		{func(p *point) bool { return p == nil }, `[null]`, true},
		{func(a, b int) int { return a - b }, `[5]`, 5},
		{func(v interface{}) interface{} { return v }, `[[1,"a"]]`, []interface{}{float64(1), "a"}},
		{func(ctx context.Context, n int) (string, error) {
			return ctx.Value(contextKey("test")).(string), nil
		}, `[1]`, "value"},
	}

	for i, tc := range cases {
		h, err := Func(tc.Fn)
		if err != nil {
			t.Errorf("case #%d: %s", i, err)
			continue
		}
		got, err := h.Invoke(ctx, json.RawMessage(tc.Args))
		if err != nil {
			t.Errorf("case #%d: unexpected error: %s", i, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.Want) {
			t.Errorf("case #%d: got: %#v; want %#v", i, got, tc.Want)
		}
	}
}

func TestFuncInvalidParams(t *testing.T) {
	h, err := Func(func(x, y int) int { return x + y })
	if err != nil {
		t.Fatal(err)
	}

	for i, args := range []string{`[1,2,3]`, `["a","b"]`, `{"x":1}`} {
		_, err := h.Invoke(context.Background(), json.RawMessage(args))
		if _, ok := err.(InvalidParamsError); !ok {
			t.Errorf("case #%d: got: %T %v; want InvalidParamsError", i, err, err)
		}
	}
}

func TestFuncInvalid(t *testing.T) {
	var nilFunc func()
	cases := []interface{}{
		nil,
		nilFunc,
		"not a function",
		func(...int) {},
		func(ch chan int) {},
		func(n int, ctx context.Context) {},
		func() (int, string) { return 0, "" },
		func() (int, string, error) { return 0, "", nil },
	}

	for i, fn := range cases {
		if _, err := Func(fn); err == nil {
			t.Errorf("case #%d: expected error for %T", i, fn)
		} else if _, ok := err.(ErrInvalidHandler); !ok {
			t.Errorf("case #%d: got: %T; want ErrInvalidHandler", i, err)
		}
	}
}

func TestFuncPassesHandlers(t *testing.T) {
	called := false
	fn := func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		called = true
		return string(args), nil
	}

	h, err := Func(fn)
	if err != nil {
		t.Fatal(err)
	}
	got, err := h.Invoke(context.Background(), json.RawMessage(`[1]`))
	if err != nil {
		t.Fatal(err)
	}
	if !called || got != "[1]" {
		t.Errorf("got: %v; want %q", got, "[1]")
	}
}

func TestMethods(t *testing.T) {
	handlers, err := Methods(&FruitService{})
	if err != nil {
		t.Fatal(err)
	}

	names := []string{}
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	if want := []string{"apple", "banana", "basket", "cherry", "durian"}; !reflect.DeepEqual(names, want) {
		t.Errorf("got: %q; want %q", names, want)
	}

	got, err := handlers["basket"].Invoke(context.Background(), json.RawMessage(`[["kiwi"],3]`))
	if err != nil {
		t.Fatal(err)
	}
	if want := map[string]int{"kiwi": 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("got: %v; want %v", got, want)
	}

	if _, err := handlers["durian"].Invoke(context.Background(), nil); err == nil || err.Error() != "durian failure" {
		t.Errorf("got: %v; want %q", err, "durian failure")
	}

	if _, err := Methods(&point{}); err == nil {
		t.Errorf("expected error for unexported receiver")
	}

	var nilService *FruitService
	for i, receiver := range []interface{}{nil, nilService} {
		if _, err := Methods(receiver); err == nil {
			t.Errorf("case #%d: expected error for nil receiver", i)
		} else if _, ok := err.(ErrInvalidHandler); !ok {
			t.Errorf("case #%d: got: %T; want ErrInvalidHandler", i, err)
		}
	}
}
