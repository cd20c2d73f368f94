package core

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

type testObject struct {
	tag string
}

func (o *testObject) ObjectType() string { return o.tag }
func (o *testObject) EncodeFields(FieldSink) {}
func (o *testObject) DecodeField(string, any) error { return nil }

func TestValidateObjectType(t *testing.T) {
	reg := newTestRegistry()

	t.Run("scalar against native type", func(t *testing.T) {
		if err := ValidateObjectType(reg, "abc", "string"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if err := ValidateObjectType(reg, json.Number("12"), "int"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("nil value passes", func(t *testing.T) {
		if err := ValidateObjectType(reg, nil, "MediaEntry"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("object of expected type", func(t *testing.T) {
		if err := ValidateObjectType(reg, &testObject{tag: "MediaEntry"}, "MediaEntry"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("object of derived type", func(t *testing.T) {
		if err := ValidateObjectType(reg, &testObject{tag: "KalturaMediaEntry"}, "BaseEntry"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("object of unrelated type", func(t *testing.T) {
		err := ValidateObjectType(reg, &testObject{tag: "UploadToken"}, "MediaEntry")
		if !errors.Is(err, ErrInvalidObjectType) {
			t.Fatalf("expected ErrInvalidObjectType, got %v", err)
		}
		var clientErr *ClientError
		if !errors.As(err, &clientErr) || clientErr.Code != CodeInvalidObjectType {
			t.Fatalf("expected code %d, got %v", CodeInvalidObjectType, err)
		}
	})

	t.Run("enum value declared", func(t *testing.T) {
		if err := ValidateObjectType(reg, "2", "MediaType"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if err := ValidateObjectType(reg, json.Number("5"), "MediaType"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("enum value undeclared", func(t *testing.T) {
		err := ValidateObjectType(reg, "9", "MediaType")
		if !errors.Is(err, ErrInvalidEnumValue) {
			t.Fatalf("expected ErrInvalidEnumValue, got %v", err)
		}
	})

	t.Run("array elements", func(t *testing.T) {
		items := []any{&testObject{tag: "MediaEntry"}, &testObject{tag: "UploadToken"}}
		if err := ValidateObjectType(reg, items, "array"); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if err := ValidateObjectType(reg, items, "MediaEntry"); !errors.Is(err, ErrInvalidObjectType) {
			t.Fatalf("expected ErrInvalidObjectType, got %v", err)
		}
	})
}

func TestRegistryResolve(t *testing.T) {
	reg := newTestRegistry()
	if _, ok := reg.Resolve("KalturaMediaEntry"); !ok {
		t.Fatal("expected prefixed tag to resolve")
	}
	if _, ok := reg.Resolve("Missing"); ok {
		t.Fatal("expected unknown tag to fail")
	}
	if _, ok := reg.Resolve(""); ok {
		t.Fatal("expected empty tag to fail")
	}
}

func TestClientErrorIs(t *testing.T) {
	err := Errorf(CodeConnectionFailed, "connect refused")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if errors.Is(err, ErrFormatUnsupported) {
		t.Fatal("unexpected match on ErrFormatUnsupported")
	}
	wrapped := Wrap(CodeGeneric, ErrTransport, "status 500")
	if !errors.Is(wrapped, ErrTransport) {
		t.Fatalf("expected wrapped ErrTransport, got %v", wrapped)
	}
}

func TestAPIErrorArgs(t *testing.T) {
	apiErr := &APIError{Code: "ENTRY_ID_NOT_FOUND", Message: "Entry id not found", Args: map[string]string{"ENTRY_ID": "1_abc"}}
	if apiErr.Arg("ENTRY_ID") != "1_abc" {
		t.Fatalf("expected arg 1_abc, got %q", apiErr.Arg("ENTRY_ID"))
	}
	got, ok := AsAPIError(error(apiErr))
	if !ok || got.Code != "ENTRY_ID_NOT_FOUND" {
		t.Fatalf("expected APIError, got %v", got)
	}
}

func newTestRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("BaseEntry", "", func() Object { return &testObject{tag: "BaseEntry"} })
	reg.Register("MediaEntry", "BaseEntry", func() Object { return &testObject{tag: "MediaEntry"} })
	reg.Register("UploadToken", "", func() Object { return &testObject{tag: "UploadToken"} })
	reg.RegisterEnum("MediaType", "1", "2", "5", "201")
	return reg
}
