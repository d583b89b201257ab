package storage

import "testing"

func TestObjectKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "plain file", filename: "cat.jpg", want: "ds-1/item-1/cat.jpg"},
		{name: "strips directories", filename: "../../etc/passwd", want: "ds-1/item-1/passwd"},
		{name: "windows path", filename: `C:\photos\dog.png`, want: "ds-1/item-1/dog.png"},
		{name: "empty name", filename: "  ", want: "ds-1/item-1/image"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ObjectKey("ds-1", "item-1", tt.filename); got != tt.want {
				t.Fatalf("ObjectKey(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
