package pickle

import "testing"

func TestProxyRegistryLookupMissing(t *testing.T) {
	r := NewProxyRegistry()
	if _, err := r.Lookup("mod", "name"); errKind(err) != KindUnregisteredProxy {
		t.Fatalf("got %v, want UnregisteredProxy", err)
	}
}

func TestProxyRegistryRegisterAndLookup(t *testing.T) {
	r := NewProxyRegistry()
	factory := func(args []Value) (Object, error) { return &fakeObject{args: args}, nil }
	if err := r.Register("mod", "name", factory); err != nil {
		t.Fatal(err)
	}
	got, err := r.Lookup("mod", "name")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := got(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := obj.(*fakeObject); !ok {
		t.Fatalf("got %#v, want *fakeObject", obj)
	}
}

func TestProxyRegistryDuplicateRegistration(t *testing.T) {
	r := NewProxyRegistry()
	factory := func(args []Value) (Object, error) { return &fakeObject{}, nil }
	if err := r.Register("mod", "name", factory); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("mod", "name", factory); err == nil {
		t.Fatal("expected error registering a duplicate (module, name)")
	}
}

func TestProxyRegistryDistinctModulesDoNotCollide(t *testing.T) {
	r := NewProxyRegistry()
	factory := func(args []Value) (Object, error) { return &fakeObject{}, nil }
	if err := r.Register("mod1", "name", factory); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("mod2", "name", factory); err != nil {
		t.Fatalf("registering same name under a different module should succeed: %v", err)
	}
}
