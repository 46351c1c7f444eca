package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeMalformedEvent, "no query document"),
			want: "MALFORMED_EVENT: no query document",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeCatalogUnavailable, "fetch failed", stderrors.New("timeout")),
			want: "CATALOG_UNAVAILABLE: fetch failed: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := stderrors.New("inner")
	err := Wrap(CodeInternal, "outer", inner)

	if !stderrors.Is(err, inner) {
		t.Error("errors.Is() should find the wrapped error")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"malformed matches", MalformedEvent("bad"), IsMalformedEvent, true},
		{"malformed rejects other code", ValidationError("bad"), IsMalformedEvent, false},
		{"catalog matches", CatalogUnavailable("db.coll", stderrors.New("down")), IsCatalogUnavailable, true},
		{"source matches", SourceUnavailable("open", stderrors.New("enoent")), IsSourceUnavailable, true},
		{"validation matches", ValidationError("bad"), IsValidation, true},
		{"plain error rejected", stderrors.New("plain"), IsMalformedEvent, false},
		{"nil rejected", nil, IsCatalogUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPredicates_WrappedChain(t *testing.T) {
	err := MalformedEvent("bad line")
	wrapped := stderrors.Join(stderrors.New("context"), err)

	if !IsMalformedEvent(wrapped) {
		t.Error("IsMalformedEvent() should see through a wrapped chain")
	}
}

func TestCatalogUnavailable_Details(t *testing.T) {
	err := CatalogUnavailable("shop.orders", stderrors.New("auth"))

	if err.Details["namespace"] != "shop.orders" {
		t.Errorf("Details[namespace] = %q, want shop.orders", err.Details["namespace"])
	}
	if !strings.Contains(err.Error(), "auth") {
		t.Errorf("Error() = %q, want cause included", err.Error())
	}
}

func TestTimeoutError(t *testing.T) {
	err := TimeoutError("watch run")
	if err.Code != CodeTimeout {
		t.Errorf("Code = %s, want %s", err.Code, CodeTimeout)
	}
	if !strings.Contains(err.Message, "watch run") {
		t.Errorf("Message = %q, want operation name included", err.Message)
	}
}
